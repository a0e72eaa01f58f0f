package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/loginguard/platform/internal/handler"
	"github.com/loginguard/platform/internal/service"
)

// AccountAdminHandler lets operators inspect accounts and the session state.
type AccountAdminHandler struct {
	authSvc *service.AuthService
}

// NewAccountAdminHandler creates a new AccountAdminHandler.
func NewAccountAdminHandler(authSvc *service.AuthService) *AccountAdminHandler {
	return &AccountAdminHandler{authSvc: authSvc}
}

// GetAccount handles GET /admin/accounts/{username}.
func (h *AccountAdminHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.authSvc.Inspect(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, acct)
}

// GetSession handles GET /admin/session.
func (h *AccountAdminHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	handler.RespondJSON(w, http.StatusOK, h.authSvc.State())
}
