package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/copybot/internal/balance"
	"github.com/alanyoungcy/copybot/internal/queue"
)

// defaultRefreshInterval is how often chain balances are re-read.
const defaultRefreshInterval = 30 * time.Second

// BalanceRefresher keeps the balance manager's cache warm by refreshing the
// wallet's SOL balance and the token balances of every mint with an open
// position.
type BalanceRefresher struct {
	balances *balance.Manager
	open     *queue.OpenQueue
	interval time.Duration
	logger   *slog.Logger
}

// NewBalanceRefresher creates a BalanceRefresher. interval <= 0 selects the
// default.
func NewBalanceRefresher(balances *balance.Manager, open *queue.OpenQueue, interval time.Duration, logger *slog.Logger) *BalanceRefresher {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &BalanceRefresher{
		balances: balances,
		open:     open,
		interval: interval,
		logger:   logger.With(slog.String("component", "balance_refresher")),
	}
}

// Run refreshes balances on the configured interval until ctx is cancelled.
func (r *BalanceRefresher) Run(ctx context.Context) error {
	// Prime the cache before the first tick.
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *BalanceRefresher) refresh(ctx context.Context) {
	if err := r.balances.Refresh(ctx, r.open.OpenMints()); err != nil {
		r.logger.Warn("balance refresh failed", slog.String("error", err.Error()))
	}
}
