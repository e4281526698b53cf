package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/balance"
	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/queue"
)

// Router owns the hand-offs between pipeline stages: executed trades enter
// the analysis queue, and analyzed positions land in the open queue (buys)
// or the closure matching engine (sells). Routing failures are terminal for
// the position; they are logged and notified, never retried.
type Router struct {
	analysis *queue.AnalysisQueue
	open     *queue.OpenQueue
	closed   *queue.ClosedQueue
	closure  *ClosureEngine
	balances *balance.Manager
	notifier domain.Notifier
	logger   *slog.Logger
}

// NewRouter wires the lifecycle router.
func NewRouter(
	analysis *queue.AnalysisQueue,
	open *queue.OpenQueue,
	closed *queue.ClosedQueue,
	closure *ClosureEngine,
	balances *balance.Manager,
	notifier domain.Notifier,
	logger *slog.Logger,
) *Router {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &Router{
		analysis: analysis,
		open:     open,
		closed:   closed,
		closure:  closure,
		balances: balances,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "lifecycle_router")),
	}
}

// ProcessExecuted registers a freshly executed trade: a position is created
// from the execution result, queued for confirmation analysis, and the
// token is marked analysis-pending so balance reads prefer the chain.
func (r *Router) ProcessExecuted(ctx context.Context, trade domain.CopyTrade, signature string, entryPrice decimal.Decimal) (*domain.Position, error) {
	pos := NewPosition(trade, signature, entryPrice)

	if err := r.analysis.Add(pos); err != nil {
		return nil, fmt.Errorf("lifecycle: enqueue position %s for analysis: %w", pos.ID, err)
	}
	r.balances.AddPendingAnalysis(trade.TokenMint)

	r.logger.Info("position awaiting confirmation",
		slog.String("position_id", pos.ID),
		slog.String("signature", signature),
		slog.String("side", string(trade.Side)))
	return pos, nil
}

// RouteAnalyzed applies a successful analysis to the position and sends it
// to its destination by trade side.
func (r *Router) RouteAnalyzed(ctx context.Context, pos *domain.Position, a domain.TradeAnalysis) error {
	applyAnalysis(pos, a)
	r.balances.RemovePendingAnalysis(pos.TokenMint())

	switch pos.Trade.Side {
	case domain.TradeSideBuy:
		return r.routeBuy(ctx, pos)
	case domain.TradeSideSell:
		return r.routeSell(ctx, pos)
	default:
		return fmt.Errorf("lifecycle: position %s has invalid side %q", pos.ID, pos.Trade.Side)
	}
}

func (r *Router) routeBuy(ctx context.Context, pos *domain.Position) error {
	r.balances.OnPositionOpened(pos.TotalCostSOL)
	r.balances.OnTokenReceived(pos.TokenMint(), pos.AmountTokens)

	open := newOpenPosition(pos)
	if err := r.open.Add(open); err != nil {
		if errors.Is(err, domain.ErrDuplicatePosition) {
			r.logger.Error("open queue rejected duplicate position",
				slog.String("position_id", pos.ID))
			return nil
		}
		return fmt.Errorf("lifecycle: add position %s to open queue: %w", pos.ID, err)
	}

	r.notifier.Notify(ctx, domain.NotificationEvent{
		Kind:         domain.NotifyPositionOpened,
		PositionID:   pos.ID,
		TraderWallet: pos.TraderWallet(),
		TokenMint:    pos.TokenMint(),
		Side:         domain.TradeSideBuy,
		AmountSOL:    pos.AmountSOL,
		AmountTokens: pos.AmountTokens,
		At:           time.Now(),
	})
	return nil
}

func (r *Router) routeSell(ctx context.Context, pos *domain.Position) error {
	r.balances.OnPositionClosed(pos.AmountSOL.Sub(pos.FeeSOL))
	r.balances.OnTokenSpent(pos.TokenMint(), pos.AmountTokens)

	close := newClosePosition(pos)
	if err := r.closure.Process(ctx, close); err != nil {
		return fmt.Errorf("lifecycle: match close %s: %w", close.ID, err)
	}
	return nil
}

// FailAnalysis marks a position terminally failed after its retry budget is
// exhausted, releases the balance markers, and notifies.
func (r *Router) FailAnalysis(ctx context.Context, pos *domain.Position, kind domain.AnalysisErrorKind, msg string) {
	pos.Analyzed = true
	pos.ErrorMessage = msg
	pos.SetMetadata("analysis_error_kind", string(kind))
	r.balances.RemovePendingAnalysis(pos.TokenMint())

	// Terminally failed positions are retained only in the archive.
	r.closed.Append(&domain.OpenPosition{
		Position: *pos,
		Status:   domain.PositionStatusFailed,
	})

	r.logger.Warn("position analysis failed",
		slog.String("position_id", pos.ID),
		slog.String("kind", string(kind)),
		slog.String("error", msg))

	r.notifier.Notify(ctx, domain.NotificationEvent{
		Kind:         domain.NotifyAnalysisFailed,
		PositionID:   pos.ID,
		TraderWallet: pos.TraderWallet(),
		TokenMint:    pos.TokenMint(),
		Side:         pos.Trade.Side,
		AmountSOL:    pos.AmountSOL,
		AmountTokens: pos.AmountTokens,
		Message:      msg,
		At:           time.Now(),
	})
}
