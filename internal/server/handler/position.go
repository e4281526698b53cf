package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// PositionReader defines the queue views the position handler requires.
type PositionReader interface {
	OpenPositions(ctx context.Context, trader string) []*domain.OpenPosition
	ClosedPositions(ctx context.Context, trader string) []*domain.OpenPosition
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	reports PositionReader
	logger  *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(reports PositionReader, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		reports: reports,
		logger:  logger,
	}
}

type listPositionsResponse struct {
	Positions []*domain.OpenPosition `json:"positions"`
}

// ListOpen returns a trader's live positions.
// GET /api/positions/open?trader=...
func (h *PositionHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	trader := r.URL.Query().Get("trader")
	if trader == "" {
		writeError(w, http.StatusBadRequest, "trader query parameter required")
		return
	}

	positions := h.reports.OpenPositions(r.Context(), trader)
	if positions == nil {
		positions = []*domain.OpenPosition{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// ListClosed returns a trader's archived positions.
// GET /api/positions/closed?trader=...
func (h *PositionHandler) ListClosed(w http.ResponseWriter, r *http.Request) {
	trader := r.URL.Query().Get("trader")
	if trader == "" {
		writeError(w, http.StatusBadRequest, "trader query parameter required")
		return
	}

	positions := h.reports.ClosedPositions(r.Context(), trader)
	if positions == nil {
		positions = []*domain.OpenPosition{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}
