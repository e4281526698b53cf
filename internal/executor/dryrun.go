package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// DryRunPlacer is a TradePlacer that never touches the chain. It fabricates
// a signature and reports the trader's fill price as the entry price, so the
// rest of the pipeline can be exercised without spending funds.
type DryRunPlacer struct {
	logger *slog.Logger
}

// NewDryRunPlacer creates a placer for paper trading.
func NewDryRunPlacer(logger *slog.Logger) *DryRunPlacer {
	return &DryRunPlacer{
		logger: logger.With(slog.String("component", "dryrun_placer")),
	}
}

var _ TradePlacer = (*DryRunPlacer)(nil)

// Place logs the trade and returns a synthetic signature.
func (p *DryRunPlacer) Place(ctx context.Context, trade domain.CopyTrade) (string, decimal.Decimal, error) {
	signature := "dryrun-" + uuid.New().String()
	p.logger.Info("dry-run trade",
		slog.String("side", string(trade.Side)),
		slog.String("token", trade.TokenMint),
		slog.String("copy_sol", trade.CopyAmountSOL.String()),
		slog.String("tx_signature", signature),
	)
	return signature, trade.CopyPrice(), nil
}

// DryRunWatcher emits a synthetic finalized event for every watched
// signature so paper positions confirm without a chain connection.
type DryRunWatcher struct {
	emit func(domain.SignatureEvent)
}

// NewDryRunWatcher creates a watcher feeding the given sink, typically the
// analyzer's push channel.
func NewDryRunWatcher(emit func(domain.SignatureEvent)) *DryRunWatcher {
	return &DryRunWatcher{emit: emit}
}

var _ SignatureWatcher = (*DryRunWatcher)(nil)

// WatchSignature reports the signature as finalized immediately.
func (w *DryRunWatcher) WatchSignature(signature string) error {
	go w.emit(domain.SignatureEvent{
		Signature: signature,
		Status:    domain.SignatureStatusFinalized,
	})
	return nil
}

// DryRunInspector resolves every synthetic signature as a successful
// transaction with no balance deltas, so positions keep their intent
// amounts.
type DryRunInspector struct{}

// SignatureStatuses reports every signature finalized.
func (DryRunInspector) SignatureStatuses(_ context.Context, signatures []string) (map[string]domain.SignatureStatus, error) {
	out := make(map[string]domain.SignatureStatus, len(signatures))
	for _, sig := range signatures {
		out[sig] = domain.SignatureStatusFinalized
	}
	return out, nil
}

// AnalyzeTransaction fabricates a successful analysis.
func (DryRunInspector) AnalyzeTransaction(_ context.Context, signature, _, _ string) (domain.TradeAnalysis, error) {
	return domain.TradeAnalysis{
		Signature:  signature,
		Succeeded:  true,
		AnalyzedAt: time.Now(),
	}, nil
}
