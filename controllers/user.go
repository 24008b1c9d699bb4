package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go-bnpl/models"
	"go-bnpl/repository"
	"go-bnpl/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserController handles user-related requests
type UserController struct {
	Users repository.UserStore
	// Mailer is nil when no email provider is configured; accounts are then
	// verified on registration.
	Mailer    utils.Mailer
	PublicURL string
	IsAdmin   func(email string) bool
	Log       *zap.Logger
}

func NewUserController(users repository.UserStore, mailer utils.Mailer, publicURL string, isAdmin func(string) bool, log *zap.Logger) *UserController {
	return &UserController{Users: users, Mailer: mailer, PublicURL: publicURL, IsAdmin: isAdmin, Log: log}
}

type registerRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Address  models.Address `json:"address"`
}

// Register handles user registration
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(req.Email, "@") || len(req.Password) < 6 {
		http.Error(w, "A valid email and a password of at least 6 characters are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error hashing password", http.StatusInternalServerError)
		return
	}

	user := models.User{
		Name:       strings.TrimSpace(req.Name),
		Email:      req.Email,
		Password:   string(hashedPassword),
		Address:    req.Address,
		Role:       models.RoleUser,
		IsVerified: uc.Mailer == nil,
		CreatedAt:  time.Now().UTC(),
	}
	if uc.IsAdmin != nil && uc.IsAdmin(user.Email) {
		user.Role = models.RoleAdmin
	}
	if uc.Mailer != nil {
		// Verification tokens carry no user id, so they cannot authenticate.
		token, err := utils.GenerateJWT("", user.Email, user.Role)
		if err != nil {
			http.Error(w, "Error generating verification token", http.StatusInternalServerError)
			return
		}
		user.VerificationToken = token
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := uc.Users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			http.Error(w, "User already exists", http.StatusBadRequest)
			return
		}
		writeError(w, uc.Log, err, "Error creating user")
		return
	}

	if uc.Mailer == nil {
		writeJSON(w, http.StatusCreated, "User registered successfully. You can now log in.")
		return
	}
	go func(email, token string) {
		subject, html := utils.VerificationEmail(uc.PublicURL, token)
		if err := uc.Mailer.SendEmail(email, subject, html); err != nil {
			uc.Log.Warn("failed to send verification email", zap.String("email", email), zap.Error(err))
		}
	}(user.Email, user.VerificationToken)
	writeJSON(w, http.StatusCreated, "User registered successfully. Please check your email to verify your account.")
}

// VerifyEmail handles email verification
func (uc *UserController) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Verification token missing", http.StatusBadRequest)
		return
	}
	if _, err := utils.ParseJWT(token); err != nil {
		http.Error(w, "Invalid token", http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := uc.Users.GetByVerificationToken(ctx, token)
	if err != nil {
		http.Error(w, "User not found or already verified", http.StatusBadRequest)
		return
	}
	if err := uc.Users.MarkVerified(ctx, user.ID); err != nil {
		writeError(w, uc.Log, err, "Error updating user verification status")
		return
	}
	writeJSON(w, http.StatusOK, "Email verified successfully. You can now log in.")
}

// Login handles user authentication
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &creds) {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := uc.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	if err != nil {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if !user.IsVerified {
		http.Error(w, "Email not verified", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	token, err := utils.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		http.Error(w, "Error generating token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": user.Role})
}

// GetProfile retrieves the authenticated user's profile
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := uc.Users.Get(ctx, actor.UserID)
	if err != nil {
		writeError(w, uc.Log, err, "Error loading profile")
		return
	}
	user.Password = ""
	user.VerificationToken = ""
	writeJSON(w, http.StatusOK, user)
}

// SetPushToken stores the Expo push token of the caller's device.
func (uc *UserController) SetPushToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token != "" && !utils.IsExpoToken(req.Token) {
		http.Error(w, "Invalid Expo push token", http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := uc.Users.SetPushToken(ctx, actor.UserID, req.Token); err != nil {
		writeError(w, uc.Log, err, "Error saving push token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
