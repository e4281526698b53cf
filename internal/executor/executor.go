// Package executor drains the pending queue and turns admitted copy trades
// into on-chain transactions.
package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/queue"
)

// TradePlacer submits a copy trade and returns the transaction signature and
// the expected entry price.
type TradePlacer interface {
	Place(ctx context.Context, trade domain.CopyTrade) (string, decimal.Decimal, error)
}

// Router receives successfully submitted trades for lifecycle tracking.
type Router interface {
	ProcessExecuted(ctx context.Context, trade domain.CopyTrade, signature string, entryPrice decimal.Decimal) (*domain.Position, error)
}

// SignatureWatcher registers a transaction signature for push confirmation.
type SignatureWatcher interface {
	WatchSignature(signature string) error
}

// Limiter paces outbound transaction submissions.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

const (
	// submitLimitKey is the rate-limiter key for outbound submissions.
	submitLimitKey = "exec:submit"

	// defaultPollInterval is how often the pending queue is drained.
	defaultPollInterval = 500 * time.Millisecond

	// defaultSubmitLimit caps submissions per window.
	defaultSubmitLimit  = 10
	defaultSubmitWindow = time.Second
)

// Executor reads admitted trades from the pending queue, deduplicates them by
// source signature, paces them through the rate limiter, and places them via
// the TradePlacer. Submitted trades are handed to the Router and their
// signatures registered with the SignatureWatcher.
type Executor struct {
	pending *queue.PendingQueue
	placer  TradePlacer
	router  Router
	watcher SignatureWatcher
	limiter Limiter
	dedup   *Dedup
	logger  *slog.Logger

	pollInterval    time.Duration
	cleanupInterval time.Duration
	submitLimit     int
	submitWindow    time.Duration

	mu       sync.Mutex
	executed uint64
	failed   uint64
}

// NewExecutor creates an Executor. The watcher and limiter may be nil; push
// confirmation and submission pacing are then skipped.
func NewExecutor(
	pending *queue.PendingQueue,
	placer TradePlacer,
	router Router,
	watcher SignatureWatcher,
	limiter Limiter,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		pending:         pending,
		placer:          placer,
		router:          router,
		watcher:         watcher,
		limiter:         limiter,
		dedup:           NewDedup(2 * time.Minute),
		logger:          logger.With(slog.String("component", "executor")),
		pollInterval:    defaultPollInterval,
		cleanupInterval: 30 * time.Second,
		submitLimit:     defaultSubmitLimit,
		submitWindow:    defaultSubmitWindow,
	}
}

// SetSubmitLimit configures the submission rate. Must be called before Run.
func (e *Executor) SetSubmitLimit(limit int, window time.Duration) {
	if limit > 0 {
		e.submitLimit = limit
	}
	if window > 0 {
		e.submitWindow = window
	}
}

// SetPollInterval configures the pending-queue drain cadence. Must be
// called before Run.
func (e *Executor) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		e.pollInterval = interval
	}
}

// SetDedupTTL replaces the dedup instance with a new one using the given TTL.
func (e *Executor) SetDedupTTL(ttl time.Duration) {
	e.dedup = NewDedup(ttl)
}

// Run drains the pending queue until the context is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor started")
	defer e.logger.Info("executor stopped")

	pollTicker := time.NewTicker(e.pollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(e.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-pollTicker.C:
			e.drainQueue(ctx)

		case <-cleanupTicker.C:
			e.dedup.Cleanup()
		}
	}
}

// drainQueue processes every trade currently buffered.
func (e *Executor) drainQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		trade, ok := e.pending.Next()
		if !ok {
			return
		}
		e.process(ctx, trade)
	}
}

// process handles a single admitted trade through dedup, pacing, and
// placement.
func (e *Executor) process(ctx context.Context, trade domain.CopyTrade) {
	log := e.logger.With(
		slog.String("signature", trade.Signature),
		slog.String("trader", trade.TraderWallet),
		slog.String("token", trade.TokenMint),
		slog.String("side", string(trade.Side)),
	)

	if e.dedup.IsDuplicate(trade.Signature) {
		log.Debug("trade deduplicated, skipping")
		return
	}

	if err := e.waitForSlot(ctx); err != nil {
		log.Warn("submission pacing aborted", slog.String("error", err.Error()))
		return
	}

	signature, entryPrice, err := e.placer.Place(ctx, trade)
	if err != nil {
		e.mu.Lock()
		e.failed++
		e.mu.Unlock()
		log.Error("trade placement failed", slog.String("error", err.Error()))
		return
	}

	if _, err := e.router.ProcessExecuted(ctx, trade, signature, entryPrice); err != nil {
		log.Error("position tracking failed",
			slog.String("tx_signature", signature),
			slog.String("error", err.Error()),
		)
		return
	}

	if e.watcher != nil {
		if err := e.watcher.WatchSignature(signature); err != nil {
			log.Debug("signature watch unavailable, relying on polling",
				slog.String("tx_signature", signature),
				slog.String("error", err.Error()),
			)
		}
	}

	e.mu.Lock()
	e.executed++
	e.mu.Unlock()

	log.Info("trade placed",
		slog.String("tx_signature", signature),
		slog.String("entry_price", entryPrice.String()),
	)
}

// waitForSlot blocks until the rate limiter admits a submission or the
// context is cancelled.
func (e *Executor) waitForSlot(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	for {
		allowed, err := e.limiter.Allow(ctx, submitLimitKey, e.submitLimit, e.submitWindow)
		if err != nil {
			// Limiter outage must not halt trading.
			e.logger.Warn("rate limiter unavailable", slog.String("error", err.Error()))
			return nil
		}
		if allowed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Stats reports lifetime execution counts.
func (e *Executor) Stats() (executed, failed uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executed, e.failed
}
