package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/loginguard/platform/internal/auth"
	"github.com/loginguard/platform/internal/domain"
	"github.com/loginguard/platform/internal/handler"
)

const operatorSubject = "operator"

// TokenHandler exchanges the shared operator key for an operator token.
type TokenHandler struct {
	jwtMgr *auth.JWTManager
	key    []byte
	logger *slog.Logger
}

// NewTokenHandler creates a TokenHandler. An empty key disables issuance.
func NewTokenHandler(jwtMgr *auth.JWTManager, operatorKey string, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{jwtMgr: jwtMgr, key: []byte(operatorKey), logger: logger}
}

type tokenRequest struct {
	Key  string `json:"key"`
	Role string `json:"role"`
}

// Issue handles POST /admin/token.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	if len(h.key) == 0 || subtle.ConstantTimeCompare([]byte(req.Key), h.key) != 1 {
		h.logger.Warn("operator token refused", "ip", handler.ClientIP(r))
		handler.RespondError(w, domain.ErrUnauthorized("invalid operator key"))
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleViewer
	}
	if !auth.ValidRole(req.Role) {
		handler.RespondError(w, domain.ErrValidation("unknown role: "+req.Role))
		return
	}

	token, err := h.jwtMgr.GenerateToken(auth.RealmOperator, operatorSubject, "", req.Role)
	if err != nil {
		handler.RespondError(w, domain.ErrInternal("generate token", err))
		return
	}
	h.logger.Info("operator token issued", "role", req.Role)
	handler.RespondJSON(w, http.StatusOK, map[string]string{"token": token, "role": req.Role})
}
