package handler

import (
	"net/http"

	"github.com/loginguard/platform/internal/auth"
	"github.com/loginguard/platform/internal/domain"
	"github.com/loginguard/platform/internal/service"
)

// SessionHandler serves the active account's dashboard and stats export.
type SessionHandler struct {
	authSvc *service.AuthService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(authSvc *service.AuthService) *SessionHandler {
	return &SessionHandler{authSvc: authSvc}
}

// RequireActiveSession rejects account tokens whose subject no longer holds
// the session. Must run after auth.AuthenticateAccount.
func (h *SessionHandler) RequireActiveSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.authSvc.IsActive(auth.SubjectFromContext(r.Context())) {
			RespondError(w, domain.ErrUnauthorized("session is not active"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Dashboard handles GET /session/dashboard.
func (h *SessionHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.authSvc.Dashboard(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, d)
}

// Stats handles GET /session/stats, served as a download.
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.authSvc.Stats(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="stats-`+stats.Username+`.json"`)
	RespondJSON(w, http.StatusOK, stats)
}
