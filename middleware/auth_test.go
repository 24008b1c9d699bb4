package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go-bnpl/utils"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	utils.JwtKey = []byte("middleware-test-secret")
}

func whoami(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "no claims", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(claims.UserID))
}

func TestAuthMiddleware(t *testing.T) {
	token, err := utils.GenerateJWT("64b7f0c2a1b2c3d4e5f60718", "sana@example.com", "user")
	require.NoError(t, err)
	handler := AuthMiddleware(http.HandlerFunc(whoami))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"missing header", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) }, http.StatusUnauthorized},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"valid bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"query token on plain request", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", token)
			r.URL.RawQuery = q.Encode()
		}, http.StatusUnauthorized},
		{"query token on websocket handshake", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", token)
			r.URL.RawQuery = q.Encode()
			r.Header.Set("Upgrade", "websocket")
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/profile", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", rec.Body.String())
			}
		})
	}
}

func TestAdminMiddleware(t *testing.T) {
	handler := AuthMiddleware(AdminMiddleware(http.HandlerFunc(whoami)))

	for role, status := range map[string]int{"user": http.StatusForbidden, "admin": http.StatusOK} {
		token, err := utils.GenerateJWT("64b7f0c2a1b2c3d4e5f60718", "ops@example.com", role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, role)
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := mux.NewRouter()
	router.Use(RequestLogger(zap.New(core)))
	router.HandleFunc("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/42", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/orders/{id}", fields["route"])
	assert.Equal(t, int64(500), fields["status"])
}
