package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/copybot/internal/service"
)

// PnLReporter defines the report view the handler requires.
type PnLReporter interface {
	TraderPnL(ctx context.Context, trader string) service.TraderReport
}

// PnLHandler serves PnL reports from the live queues.
type PnLHandler struct {
	reports PnLReporter
	logger  *slog.Logger
}

// NewPnLHandler creates a PnLHandler.
func NewPnLHandler(reports PnLReporter, logger *slog.Logger) *PnLHandler {
	return &PnLHandler{
		reports: reports,
		logger:  logger,
	}
}

// GetTraderPnL returns the full realized/unrealized breakdown for one
// trader.
// GET /api/pnl?trader=...
func (h *PnLHandler) GetTraderPnL(w http.ResponseWriter, r *http.Request) {
	trader := r.URL.Query().Get("trader")
	if trader == "" {
		writeError(w, http.StatusBadRequest, "trader query parameter required")
		return
	}

	writeJSON(w, http.StatusOK, h.reports.TraderPnL(r.Context(), trader))
}
