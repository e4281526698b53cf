package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler answers liveness probes.
type HealthHandler struct {
	logger *slog.Logger
}

func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// HealthCheck reports that the process is up.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "copybot",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
