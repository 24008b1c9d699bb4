package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-bnpl/utils"
)

// Key type for context
type contextKey string

const UserContextKey = contextKey("user")

// ClaimsFromContext returns the claims AuthMiddleware attached to ctx.
func ClaimsFromContext(ctx context.Context) (*utils.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*utils.Claims)
	return claims, ok
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// a websocket handshake, so a token query parameter is accepted there.
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" && isWebsocket(r) {
			return token, ""
		}
		return "", "Authorization header missing"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid Authorization header format"
	}
	return parts[1], ""
}

func isWebsocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// AuthMiddleware verifies JWT tokens and attaches user information to the context
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, problem := bearerToken(r)
		if problem != "" {
			http.Error(w, problem, http.StatusUnauthorized)
			return
		}

		claims, err := utils.ParseJWT(tokenStr)
		if err != nil || claims.UserID == "" {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminMiddleware ensures that the user has admin privileges
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || !claims.IsAdmin() {
			http.Error(w, "Forbidden: Admins only", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
