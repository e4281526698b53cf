package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/copybot/internal/admission"
	"github.com/alanyoungcy/copybot/internal/balance"
	"github.com/alanyoungcy/copybot/internal/executor"
	"github.com/alanyoungcy/copybot/internal/lifecycle"
	"github.com/alanyoungcy/copybot/internal/queue"
)

// defaultStatsInterval is how often the stats snapshot is logged.
const defaultStatsInterval = time.Minute

// StatsLogger periodically logs a one-line snapshot of the whole pipeline:
// queue depths, admission and execution counters, closure matching, and the
// cached wallet balance.
type StatsLogger struct {
	pending  *queue.PendingQueue
	analysis *queue.AnalysisQueue
	open     *queue.OpenQueue
	closed   *queue.ClosedQueue
	admit    *admission.Controller
	exec     *executor.Executor
	closure  *lifecycle.ClosureEngine
	balances *balance.Manager

	interval time.Duration
	logger   *slog.Logger
}

// NewStatsLogger creates a StatsLogger. interval <= 0 selects the default.
func NewStatsLogger(
	pending *queue.PendingQueue,
	analysis *queue.AnalysisQueue,
	open *queue.OpenQueue,
	closed *queue.ClosedQueue,
	admit *admission.Controller,
	exec *executor.Executor,
	closure *lifecycle.ClosureEngine,
	balances *balance.Manager,
	interval time.Duration,
	logger *slog.Logger,
) *StatsLogger {
	if interval <= 0 {
		interval = defaultStatsInterval
	}
	return &StatsLogger{
		pending:  pending,
		analysis: analysis,
		open:     open,
		closed:   closed,
		admit:    admit,
		exec:     exec,
		closure:  closure,
		balances: balances,
		interval: interval,
		logger:   logger.With(slog.String("component", "stats")),
	}
}

// Run logs stats on the configured interval until ctx is cancelled.
func (s *StatsLogger) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.log()
		}
	}
}

func (s *StatsLogger) log() {
	pendingStats := s.pending.Stats()
	admitStats := s.admit.Stats()
	matchStats := s.closure.Stats()
	executed, failed := s.exec.Stats()
	bal := s.balances.Snapshot()

	s.logger.Info("pipeline stats",
		slog.Int("pending", pendingStats.Depth),
		slog.Int("analysis", s.analysis.Len()),
		slog.Int("open", s.open.Len()),
		slog.Int("closed", s.closed.Len()),
		slog.Uint64("admitted", admitStats.Accepted),
		slog.Uint64("rejected", admitStats.Rejected),
		slog.Uint64("executed", executed),
		slog.Uint64("exec_failed", failed),
		slog.Uint64("closes_matched", matchStats.Matched),
		slog.Uint64("closes_failed", matchStats.Failed),
		slog.String("sol_balance", bal.SOL.String()),
		slog.Int("token_holdings", len(bal.Tokens)),
	)
}
