package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/copybot/internal/admission"
	"github.com/alanyoungcy/copybot/internal/balance"
	"github.com/alanyoungcy/copybot/internal/executor"
	"github.com/alanyoungcy/copybot/internal/queue"
)

// StatusHandler serves a point-in-time snapshot of the pipeline.
type StatusHandler struct {
	mode     string
	pending  *queue.PendingQueue
	analysis *queue.AnalysisQueue
	open     *queue.OpenQueue
	closed   *queue.ClosedQueue
	admit    *admission.Controller
	exec     *executor.Executor
	balances *balance.Manager
	started  time.Time
}

// NewStatusHandler creates a StatusHandler. mode is "live" or "dry_run".
func NewStatusHandler(
	mode string,
	pending *queue.PendingQueue,
	analysis *queue.AnalysisQueue,
	open *queue.OpenQueue,
	closed *queue.ClosedQueue,
	admit *admission.Controller,
	exec *executor.Executor,
	balances *balance.Manager,
) *StatusHandler {
	return &StatusHandler{
		mode:     mode,
		pending:  pending,
		analysis: analysis,
		open:     open,
		closed:   closed,
		admit:    admit,
		exec:     exec,
		balances: balances,
		started:  time.Now().UTC(),
	}
}

// GetStatus responds with queue depths, decision counters, and the cached
// wallet balance.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	admitStats := h.admit.Stats()
	executed, failed := h.exec.Stats()
	bal := h.balances.Snapshot()

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"queues": map[string]int{
			"pending":  h.pending.Len(),
			"analysis": h.analysis.Len(),
			"open":     h.open.Len(),
			"closed":   h.closed.Len(),
		},
		"admission": map[string]uint64{
			"accepted": admitStats.Accepted,
			"rejected": admitStats.Rejected,
		},
		"execution": map[string]uint64{
			"executed": executed,
			"failed":   failed,
		},
		"balance": map[string]any{
			"sol":    bal.SOL.String(),
			"tokens": len(bal.Tokens),
		},
	})
}
