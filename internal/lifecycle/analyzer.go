package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/queue"
	"github.com/alanyoungcy/copybot/internal/retry"
)

// TxInspector reads transaction outcomes from the chain. Satisfied by the
// chain RPC client.
type TxInspector interface {
	SignatureStatuses(ctx context.Context, signatures []string) (map[string]domain.SignatureStatus, error)
	AnalyzeTransaction(ctx context.Context, signature, wallet, mint string) (domain.TradeAnalysis, error)
}

// AnalyzerConfig tunes the confirmation worker.
type AnalyzerConfig struct {
	// PollInterval is the cadence of the fallback status poller.
	PollInterval time.Duration
	// MinAge is how long a signature must wait before the poller queries
	// it, giving the push path first shot.
	MinAge time.Duration
	// Concurrency bounds how many transactions are analyzed at once.
	Concurrency int
	// Retry bounds each position's analysis attempts.
	Retry retry.Policy
}

// DefaultAnalyzerConfig matches the pipeline defaults: poll every 10s,
// positions older than 15s, four analyses in flight, three attempts backed
// off 1s/2s/4s.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		PollInterval: 10 * time.Second,
		MinAge:       15 * time.Second,
		Concurrency:  4,
		Retry:        retry.DefaultPolicy(),
	}
}

// Analyzer resolves executed positions: it consumes push confirmations and
// runs the fallback status poller, then classifies each settled
// transaction under a bounded-concurrency analysis pass and hands the
// result to the router.
type Analyzer struct {
	cfg       AnalyzerConfig
	analysis  *queue.AnalysisQueue
	inspector TxInspector
	router    *Router
	wallet    string
	logger    *slog.Logger

	events chan domain.SignatureEvent
	sem    chan struct{}
	wg     sync.WaitGroup
}

// NewAnalyzer wires the confirmation worker for the system wallet.
func NewAnalyzer(cfg AnalyzerConfig, analysis *queue.AnalysisQueue, inspector TxInspector, router *Router, wallet string, logger *slog.Logger) *Analyzer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	return &Analyzer{
		cfg:       cfg,
		analysis:  analysis,
		inspector: inspector,
		router:    router,
		wallet:    wallet,
		logger:    logger.With(slog.String("component", "analyzer")),
		events:    make(chan domain.SignatureEvent, 256),
		sem:       make(chan struct{}, cfg.Concurrency),
	}
}

// OnSignatureEvent is the push-path entry: the chain watcher calls it when
// a subscribed signature settles. It never blocks; events beyond the buffer
// are dropped and left for the poller to pick up.
func (a *Analyzer) OnSignatureEvent(ev domain.SignatureEvent) {
	select {
	case a.events <- ev:
	default:
		a.logger.Warn("signature event buffer full, deferring to poller",
			slog.String("signature", ev.Signature))
	}
}

// Run drives confirmation resolution until the context is cancelled. The
// push channel and the poll ticker race over the analysis queue; Take's
// idempotency makes it safe for both to fire for one signature.
func (a *Analyzer) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	a.logger.Info("analyzer started",
		slog.Duration("poll_interval", a.cfg.PollInterval),
		slog.Int("concurrency", a.cfg.Concurrency))

	for {
		select {
		case <-ctx.Done():
			a.wg.Wait()
			return ctx.Err()

		case ev := <-a.events:
			a.resolve(ctx, ev.Signature)

		case <-ticker.C:
			a.poll(ctx)
		}
	}
}

// poll batch-queries the status of every signature that has waited past
// MinAge and resolves the settled ones.
func (a *Analyzer) poll(ctx context.Context) {
	sigs := a.analysis.Unresolved(a.cfg.MinAge)
	if len(sigs) == 0 {
		return
	}

	statuses, err := a.inspector.SignatureStatuses(ctx, sigs)
	if err != nil {
		a.logger.Warn("signature status poll failed", slog.Any("error", err))
		return
	}

	for sig, status := range statuses {
		if status.Settled() {
			a.resolve(ctx, sig)
		}
	}
}

// resolve takes the position off the awaiting set (first resolver wins)
// and analyzes it on a bounded worker slot.
func (a *Analyzer) resolve(ctx context.Context, signature string) {
	pos, ok := a.analysis.Take(signature)
	if !ok {
		return
	}

	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		// Shutting down: put the position back so it persists with the
		// queue state and is retried on restart.
		if err := a.analysis.Add(pos); err != nil {
			a.logger.Error("could not requeue position during shutdown",
				slog.String("position_id", pos.ID), slog.Any("error", err))
		}
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() { <-a.sem }()
		a.analyze(ctx, pos)
	}()
}

// analyze classifies one settled transaction with the bounded retry
// policy. Definitive failure kinds abort the retries immediately; only
// ambiguous outcomes burn further attempts.
func (a *Analyzer) analyze(ctx context.Context, pos *domain.Position) {
	lastKind := domain.AnalysisErrUnknown

	result, err := retry.Do(ctx, a.cfg.Retry, func(ctx context.Context, attempt int) (domain.TradeAnalysis, error) {
		res, err := a.inspector.AnalyzeTransaction(ctx, pos.ExecutionSignature, a.wallet, pos.TokenMint())
		if err != nil {
			a.logger.Debug("analysis attempt failed",
				slog.String("position_id", pos.ID),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return domain.TradeAnalysis{}, err
		}
		if !res.Succeeded {
			lastKind = res.ErrorKind
			err := fmt.Errorf("transaction failed: %s", res.ErrorMessage)
			if !res.ErrorKind.Retryable() {
				return domain.TradeAnalysis{}, retry.Abort(err)
			}
			return domain.TradeAnalysis{}, err
		}
		return res, nil
	})

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		a.router.FailAnalysis(ctx, pos, lastKind, err.Error())
		return
	}

	if err := a.router.RouteAnalyzed(ctx, pos, result); err != nil {
		a.logger.Error("routing analyzed position failed",
			slog.String("position_id", pos.ID),
			slog.Any("error", err))
	}
}
