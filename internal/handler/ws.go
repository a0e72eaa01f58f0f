package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/loginguard/platform/internal/auth"
	"github.com/loginguard/platform/internal/domain"
	"github.com/loginguard/platform/internal/infra"
)

// VerdictStreamHandler upgrades /ws/verdicts to a WebSocket fed by the
// verdict hub. Operators receive every verdict; an account receives its own.
type VerdictStreamHandler struct {
	hub      *infra.VerdictHub
	jwtMgr   *auth.JWTManager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewVerdictStreamHandler creates a handler accepting the given
// comma-separated origins ("*" for any). Requests without an Origin header
// come from non-browser clients and are accepted.
func NewVerdictStreamHandler(hub *infra.VerdictHub, jwtMgr *auth.JWTManager, origins string, logger *slog.Logger) *VerdictStreamHandler {
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}

	h := &VerdictStreamHandler{hub: hub, jwtMgr: jwtMgr, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowed {
				if o == "*" || o == origin {
					return true
				}
			}
			logger.Warn("websocket origin rejected", "origin", origin)
			return false
		},
	}
	return h
}

// Stream handles GET /ws/verdicts. The bearer token comes from the
// Authorization header or the token query parameter.
func (h *VerdictStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		token = bearer
	}
	if token == "" {
		RespondError(w, domain.ErrUnauthorized("missing token"))
		return
	}

	claims, err := h.jwtMgr.ValidateToken(token)
	if err != nil {
		RespondError(w, domain.ErrUnauthorized("invalid token"))
		return
	}

	var room string
	switch claims.Realm {
	case auth.RealmOperator:
		room = infra.RoomOperators
	case auth.RealmAccount:
		room = infra.AccountRoom(claims.Subject)
	default:
		RespondError(w, domain.ErrUnauthorized("unknown realm"))
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.logger.Info("verdict stream opened", "room", room)
	h.hub.Serve(ws, room)
	h.logger.Info("verdict stream closed", "room", room)
}
