package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/copybot/internal/admission"
	"github.com/alanyoungcy/copybot/internal/domain"
)

// TraderHandler serves the followed-trader list and per-trader activity.
type TraderHandler struct {
	admit   *admission.Controller
	journal domain.TradeJournal
	logger  *slog.Logger
}

// NewTraderHandler creates a TraderHandler.
func NewTraderHandler(admit *admission.Controller, journal domain.TradeJournal, logger *slog.Logger) *TraderHandler {
	return &TraderHandler{
		admit:   admit,
		journal: journal,
		logger:  logger,
	}
}

// ListTraders returns the followed-trader wallets.
// GET /api/traders
func (h *TraderHandler) ListTraders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"traders": h.admit.FollowedWallets(),
	})
}

// GetTraderActivity returns a trader's recent journal entries with their
// admission outcomes.
// GET /api/traders/{wallet}/activity
func (h *TraderHandler) GetTraderActivity(w http.ResponseWriter, r *http.Request) {
	wallet := pathParam(r, "wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet path parameter required")
		return
	}

	entries, err := h.journal.ListByTrader(r.Context(), wallet, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: trader activity failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}

	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ListActivity returns the most recent journal entries across all traders.
// GET /api/activity
func (h *TraderHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.journal.ListRecent(r.Context(), parseListOpts(r).Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: recent activity failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}

	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
