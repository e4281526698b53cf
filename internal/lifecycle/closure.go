package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/pnl"
	"github.com/alanyoungcy/copybot/internal/queue"
)

// ClosureEngine reconciles an incoming close against the open queue for the
// same (trader, token) pair, oldest first. A close larger than the oldest
// position is split into SubClose portions across as many positions as it
// takes; the unmatched remainder, if any, fails rather than being dropped
// silently.
type ClosureEngine struct {
	open     *queue.OpenQueue
	closed   *queue.ClosedQueue
	notifier domain.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	matched uint64
	failed  uint64
}

// NewClosureEngine wires the matching engine.
func NewClosureEngine(open *queue.OpenQueue, closed *queue.ClosedQueue, notifier domain.Notifier, logger *slog.Logger) *ClosureEngine {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &ClosureEngine{
		open:     open,
		closed:   closed,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "closure_engine")),
	}
}

// MatchStats reports how many closes resolved and how many carried an
// unmatched remainder.
type MatchStats struct {
	Matched uint64
	Failed  uint64
}

// Stats returns the engine's counters.
func (e *ClosureEngine) Stats() MatchStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return MatchStats{Matched: e.matched, Failed: e.failed}
}

// Process walks the open queue FIFO and applies the close. The close's
// terminal status is set on the passed value: SUCCESS when fully applied,
// FAILED when nothing could be matched. A close that consumed some
// positions but ran out of opens keeps PARTIAL status with the unmatched
// remainder recorded in its error message.
func (e *ClosureEngine) Process(ctx context.Context, close *domain.ClosePosition) error {
	trader := close.TraderWallet()
	token := close.TokenMint()

	remainingTokens := close.AmountTokensToClose
	remainingSOL := close.AmountSOLToClose

	for remainingTokens.IsPositive() {
		oldest, ok := e.open.First(trader, token)
		if !ok {
			e.failUnmatched(ctx, close, remainingTokens, remainingSOL)
			return nil
		}

		openRem := oldest.RemainingTokens()
		if openRem.IsZero() {
			// A fully consumed position still queued means a prior removal
			// did not land. Retire it and keep walking.
			e.retire(ctx, oldest)
			continue
		}

		switch {
		case remainingTokens.GreaterThan(openRem):
			sub := e.newSubClose(close, openRem, portionSOL(close, openRem), domain.CloseStatusSuccess)
			rec := domain.CloseRecord{Kind: domain.CloseKindSub, Close: close, Portion: sub}
			if err := oldest.AppendClose(rec); err != nil {
				return fmt.Errorf("lifecycle: split close %s onto %s: %w", close.ID, oldest.ID, err)
			}
			e.retire(ctx, oldest)
			close.Status = domain.CloseStatusPartial
			remainingTokens = remainingTokens.Sub(openRem)
			remainingSOL = remainingSOL.Sub(sub.AmountSOL)

		case remainingTokens.Equal(openRem):
			rec := e.finalRecord(close, remainingTokens, remainingSOL)
			if err := oldest.AppendClose(rec); err != nil {
				return fmt.Errorf("lifecycle: apply close %s onto %s: %w", close.ID, oldest.ID, err)
			}
			e.retire(ctx, oldest)
			close.Status = domain.CloseStatusSuccess
			e.bumpMatched()
			return nil

		default: // remainingTokens < openRem
			rec := e.finalRecord(close, remainingTokens, remainingSOL)
			if err := oldest.AppendClose(rec); err != nil {
				return fmt.Errorf("lifecycle: apply close %s onto %s: %w", close.ID, oldest.ID, err)
			}
			// The position stays in the queue partially closed.
			close.Status = domain.CloseStatusSuccess
			e.bumpMatched()
			e.notifyPartial(ctx, oldest, rec)
			return nil
		}
	}

	close.Status = domain.CloseStatusSuccess
	e.bumpMatched()
	return nil
}

// finalRecord builds the record for the last application of a close: the
// close itself when it was never split, or its final SubClose portion when
// earlier positions already consumed part of it.
func (e *ClosureEngine) finalRecord(close *domain.ClosePosition, tokens, sol decimal.Decimal) domain.CloseRecord {
	if close.Status == domain.CloseStatusPartial {
		sub := e.newSubClose(close, tokens, sol, domain.CloseStatusSuccess)
		return domain.CloseRecord{Kind: domain.CloseKindSub, Close: close, Portion: sub}
	}
	return domain.CloseRecord{Kind: domain.CloseKindFull, Close: close}
}

func (e *ClosureEngine) newSubClose(close *domain.ClosePosition, tokens, sol decimal.Decimal, status domain.CloseStatus) *domain.SubClose {
	return &domain.SubClose{
		ID:            uuid.New().String(),
		ParentCloseID: close.ID,
		AmountSOL:     sol,
		AmountTokens:  tokens,
		Status:        status,
		CreatedAt:     time.Now(),
	}
}

// portionSOL allocates the close's SOL proportionally to the consumed token
// amount. Multiplication happens before the division so an exact ratio stays
// exact instead of passing through a truncated quotient.
func portionSOL(close *domain.ClosePosition, tokens decimal.Decimal) decimal.Decimal {
	if close.AmountTokensToClose.IsZero() {
		return decimal.Zero
	}
	return close.AmountSOLToClose.Mul(tokens).Div(close.AmountTokensToClose)
}

// retire moves a fully closed position from the open queue to the archive
// and reports its realized PnL.
func (e *ClosureEngine) retire(ctx context.Context, pos *domain.OpenPosition) {
	pos.Status = domain.PositionStatusClosed
	if !e.open.Remove(pos.TraderWallet(), pos.TokenMint(), pos.ID) {
		e.logger.Warn("closed position was not in open queue",
			slog.String("position_id", pos.ID))
	}
	e.closed.Append(pos)

	realized := pnl.RealizedPnL(pos, true)
	e.notifier.Notify(ctx, domain.NotificationEvent{
		Kind:         domain.NotifyPositionClosed,
		PositionID:   pos.ID,
		TraderWallet: pos.TraderWallet(),
		TokenMint:    pos.TokenMint(),
		Side:         domain.TradeSideSell,
		AmountSOL:    pos.ClosedSOL(),
		AmountTokens: pos.AmountTokens,
		PnLSOL:       &realized,
		At:           time.Now(),
	})

	e.logger.Info("position closed",
		slog.String("position_id", pos.ID),
		slog.String("trader", pos.TraderWallet()),
		slog.String("token", pos.TokenMint()),
		slog.String("realized_pnl", realized.String()))
}

func (e *ClosureEngine) notifyPartial(ctx context.Context, pos *domain.OpenPosition, rec domain.CloseRecord) {
	e.notifier.Notify(ctx, domain.NotificationEvent{
		Kind:         domain.NotifyPartialClose,
		PositionID:   pos.ID,
		TraderWallet: pos.TraderWallet(),
		TokenMint:    pos.TokenMint(),
		Side:         domain.TradeSideSell,
		AmountSOL:    rec.AmountSOL(),
		AmountTokens: rec.AmountTokens(),
		At:           time.Now(),
	})
}

// failUnmatched records that no open position could absorb the remainder.
// A close that matched nothing fails outright; one that was partially
// satisfied keeps its PARTIAL status and the shortfall is reported as a
// failed SubClose portion.
func (e *ClosureEngine) failUnmatched(ctx context.Context, close *domain.ClosePosition, tokens, sol decimal.Decimal) {
	msg := fmt.Sprintf("no open position for remaining %s tokens", tokens.String())

	if close.Status == domain.CloseStatusPartial {
		sub := e.newSubClose(close, tokens, sol, domain.CloseStatusFailed)
		close.ErrorMessage = msg
		e.logger.Warn("close partially unmatched",
			slog.String("close_id", close.ID),
			slog.String("unmatched_tokens", sub.AmountTokens.String()))
	} else {
		close.Status = domain.CloseStatusFailed
		close.ErrorMessage = msg
		e.logger.Warn("close unmatched",
			slog.String("close_id", close.ID),
			slog.String("trader", close.TraderWallet()),
			slog.String("token", close.TokenMint()))
	}

	e.bumpFailed()
	e.notifier.Notify(ctx, domain.NotificationEvent{
		Kind:         domain.NotifyCloseFailed,
		PositionID:   close.ID,
		TraderWallet: close.TraderWallet(),
		TokenMint:    close.TokenMint(),
		Side:         domain.TradeSideSell,
		AmountSOL:    sol,
		AmountTokens: tokens,
		Message:      msg,
		At:           time.Now(),
	})
}

func (e *ClosureEngine) bumpMatched() {
	e.mu.Lock()
	e.matched++
	e.mu.Unlock()
}

func (e *ClosureEngine) bumpFailed() {
	e.mu.Lock()
	e.failed++
	e.mu.Unlock()
}
