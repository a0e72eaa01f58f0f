package handler

import (
	"net/http"

	"github.com/loginguard/platform/internal/auth"
	"github.com/loginguard/platform/internal/service"
)

// AuthHandler handles registration, login and logout endpoints.
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := DecodeJSON(r, &input); err != nil {
		respondBadBody(w)
		return
	}

	acct, err := h.authSvc.Register(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, acct)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := DecodeJSON(r, &input); err != nil {
		respondBadBody(w)
		return
	}
	input.UserAgent = r.UserAgent()

	result, err := h.authSvc.AttemptLogin(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// Logout handles POST /auth/logout. Logging out a session that is no longer
// active succeeds without effect.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	loggedOut := h.authSvc.LogoutAs(r.Context(), auth.SubjectFromContext(r.Context()))
	RespondJSON(w, http.StatusOK, map[string]bool{"logged_out": loggedOut})
}

// State handles GET /auth/state.
func (h *AuthHandler) State(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.authSvc.State())
}
