package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pulsecrm/apiserver/internal/auth"
	"github.com/pulsecrm/apiserver/internal/services"
	"github.com/pulsecrm/apiserver/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler provides login, logout, and identity endpoints.
type AuthHandler struct {
	userService *services.UserService
	issuer      *auth.Issuer
	registry    *auth.Registry
}

func NewAuthHandler(userService *services.UserService, issuer *auth.Issuer, registry *auth.Registry) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		issuer:      issuer,
		registry:    registry,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, gate func(http.Handler) http.Handler) {
	r.Post("/login", handler.Login)
	r.With(gate).Post("/logout", handler.Logout)
	r.With(gate).Get("/me", handler.Me)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success bool          `json:"success"`
	Token   string        `json:"token"`
	User    auth.Identity `json:"user"`
}

// Login verifies credentials and returns a bearer token. Inactive
// accounts are rejected the same way as bad passwords; login must not
// leak which of the two it was.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "missing credentials")
		return
	}

	user, err := h.userService.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to authenticate")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "invalid credentials")
		return
	}

	if !user.Active {
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "invalid credentials")
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		User: auth.Identity{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	})
}

// Logout revokes the presented token. Signed tokens cannot be deleted,
// so revocation is the only way to invalidate one before it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenString, err := auth.BearerToken(r)
	if err != nil {
		writeAuthError(w, auth.ErrMissingCredential)
		return
	}

	// The gate already verified the token; its expiry bounds how long
	// the fingerprint needs to stay in the registry.
	expiresAt := h.issuer.ExpiryOf(tokenString)
	h.registry.Revoke(auth.Fingerprint(tokenString), expiresAt)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "logged out"})
}

// Me returns the authenticated caller's identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeAuthError(w, auth.ErrMissingCredential)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": identity})
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
