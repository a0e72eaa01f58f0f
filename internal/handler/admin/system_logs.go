package admin

import (
	"net/http"

	"github.com/loginguard/platform/internal/eventlog"
	"github.com/loginguard/platform/internal/handler"
)

// SystemLogHandler exposes the system log to operators.
type SystemLogHandler struct {
	log *eventlog.SystemLog
}

// NewSystemLogHandler creates a new SystemLogHandler.
func NewSystemLogHandler(log *eventlog.SystemLog) *SystemLogHandler {
	return &SystemLogHandler{log: log}
}

// View handles GET /admin/system-logs?filter=.
func (h *SystemLogHandler) View(w http.ResponseWriter, r *http.Request) {
	entries := h.log.View(r.URL.Query().Get("filter"))
	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// Export handles GET /admin/system-logs/export.
func (h *SystemLogHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="system-logs.txt"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.log.Export()))
}

// Count handles GET /admin/system-logs/count.
func (h *SystemLogHandler) Count(w http.ResponseWriter, r *http.Request) {
	handler.RespondJSON(w, http.StatusOK, map[string]int{"count": h.log.Count()})
}

// Clear handles DELETE /admin/system-logs.
func (h *SystemLogHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.log.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
