package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/queue"
)

const (
	testTrader = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testToken  = "J7dN3fP1mX2qYvR8sT4uW6aB9cE1gH3iK5mO7qS9uWyZ"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type captureNotifier struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (n *captureNotifier) Notify(_ context.Context, ev domain.NotificationEvent) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *captureNotifier) kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NotificationKind, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Kind
	}
	return out
}

func newTestEngine(t *testing.T) (*ClosureEngine, *queue.OpenQueue, *queue.ClosedQueue, *captureNotifier) {
	t.Helper()
	logger := testLogger()
	open := queue.NewOpenQueue(10, nil, logger)
	closed := queue.NewClosedQueue(nil, logger)
	notifier := &captureNotifier{}
	return NewClosureEngine(open, closed, notifier, logger), open, closed, notifier
}

func openPosition(t *testing.T, sol, tokens string) *domain.OpenPosition {
	t.Helper()
	amountSOL := decimal.RequireFromString(sol)
	amountTokens := decimal.RequireFromString(tokens)
	return &domain.OpenPosition{
		Position: domain.Position{
			ID: uuid.New().String(),
			Trade: domain.CopyTrade{
				TraderTrade: domain.TraderTrade{
					TraderWallet: testTrader,
					Side:         domain.TradeSideBuy,
					TokenMint:    testToken,
				},
			},
			AmountSOL:    amountSOL,
			AmountTokens: amountTokens,
			EntryPrice:   amountSOL.Div(amountTokens),
			CreatedAt:    time.Now(),
		},
		Status: domain.PositionStatusOpen,
	}
}

func closePosition(t *testing.T, sol, tokens string) *domain.ClosePosition {
	t.Helper()
	return &domain.ClosePosition{
		Position: domain.Position{
			ID: uuid.New().String(),
			Trade: domain.CopyTrade{
				TraderTrade: domain.TraderTrade{
					TraderWallet: testTrader,
					Side:         domain.TradeSideSell,
					TokenMint:    testToken,
				},
			},
			CreatedAt: time.Now(),
		},
		Status:              domain.CloseStatusPending,
		AmountSOLToClose:    decimal.RequireFromString(sol),
		AmountTokensToClose: decimal.RequireFromString(tokens),
	}
}

func TestProcessExactMatch(t *testing.T) {
	engine, open, closed, notifier := newTestEngine(t)
	pos := openPosition(t, "1", "1000")
	require.NoError(t, open.Add(pos))

	close := closePosition(t, "1.2", "1000")
	require.NoError(t, engine.Process(context.Background(), close))

	require.Equal(t, domain.CloseStatusSuccess, close.Status)
	require.Equal(t, 0, open.Len())
	require.Equal(t, 1, closed.Len())
	require.Equal(t, domain.PositionStatusClosed, pos.Status)

	require.Len(t, pos.CloseHistory, 1)
	rec := pos.CloseHistory[0]
	require.Equal(t, domain.CloseKindFull, rec.Kind)
	require.True(t, rec.AmountTokens().Equal(decimal.RequireFromString("1000")))
	require.True(t, rec.AmountSOL().Equal(decimal.RequireFromString("1.2")))

	require.Equal(t, []domain.NotificationKind{domain.NotifyPositionClosed}, notifier.kinds())
	require.Equal(t, MatchStats{Matched: 1}, engine.Stats())
}

func TestProcessSmallCloseLeavesPositionOpen(t *testing.T) {
	engine, open, closed, notifier := newTestEngine(t)
	pos := openPosition(t, "1", "1000")
	require.NoError(t, open.Add(pos))

	close := closePosition(t, "0.5", "400")
	require.NoError(t, engine.Process(context.Background(), close))

	require.Equal(t, domain.CloseStatusSuccess, close.Status)
	require.Equal(t, 1, open.Len())
	require.Equal(t, 0, closed.Len())
	require.Equal(t, domain.PositionStatusPartiallyClosed, pos.Status)
	require.True(t, pos.RemainingTokens().Equal(decimal.RequireFromString("600")))

	// A close that fits one position intact is recorded whole, not sliced.
	require.Len(t, pos.CloseHistory, 1)
	require.Equal(t, domain.CloseKindFull, pos.CloseHistory[0].Kind)

	require.Equal(t, []domain.NotificationKind{domain.NotifyPartialClose}, notifier.kinds())
	require.Equal(t, MatchStats{Matched: 1}, engine.Stats())
}

func TestProcessSpansMultiplePositions(t *testing.T) {
	engine, open, closed, _ := newTestEngine(t)
	first := openPosition(t, "1", "1000")
	second := openPosition(t, "2", "2000")
	require.NoError(t, open.Add(first))
	require.NoError(t, open.Add(second))

	close := closePosition(t, "3", "1500")
	require.NoError(t, engine.Process(context.Background(), close))

	require.Equal(t, domain.CloseStatusSuccess, close.Status)
	require.Equal(t, 1, closed.Len())
	require.Equal(t, domain.PositionStatusClosed, first.Status)
	require.Equal(t, domain.PositionStatusPartiallyClosed, second.Status)
	require.True(t, second.RemainingTokens().Equal(decimal.RequireFromString("1500")))

	// First position absorbed 1000 of 1500 tokens as a subclose, with SOL
	// allocated proportionally: 3 * 1000/1500 = 2.
	require.Len(t, first.CloseHistory, 1)
	sub := first.CloseHistory[0]
	require.Equal(t, domain.CloseKindSub, sub.Kind)
	require.Equal(t, close.ID, sub.Portion.ParentCloseID)
	require.True(t, sub.AmountTokens().Equal(decimal.RequireFromString("1000")))
	require.True(t, sub.AmountSOL().Equal(decimal.RequireFromString("2")))

	// The remainder landed on the second position as the final subclose.
	require.Len(t, second.CloseHistory, 1)
	tail := second.CloseHistory[0]
	require.Equal(t, domain.CloseKindSub, tail.Kind)
	require.True(t, tail.AmountTokens().Equal(decimal.RequireFromString("500")))
	require.True(t, tail.AmountSOL().Equal(decimal.RequireFromString("1")))

	// Token and SOL totals are conserved across the split.
	total := sub.AmountTokens().Add(tail.AmountTokens())
	require.True(t, total.Equal(close.AmountTokensToClose))
	sol := sub.AmountSOL().Add(tail.AmountSOL())
	require.True(t, sol.Equal(close.AmountSOLToClose))
}

func TestProcessUnmatchedCloseFails(t *testing.T) {
	engine, _, closed, notifier := newTestEngine(t)

	close := closePosition(t, "1", "1000")
	require.NoError(t, engine.Process(context.Background(), close))

	require.Equal(t, domain.CloseStatusFailed, close.Status)
	require.NotEmpty(t, close.ErrorMessage)
	require.Equal(t, 0, closed.Len())
	require.Equal(t, []domain.NotificationKind{domain.NotifyCloseFailed}, notifier.kinds())
	require.Equal(t, MatchStats{Failed: 1}, engine.Stats())
}

func TestProcessPartiallyMatchedCloseStaysPartial(t *testing.T) {
	engine, open, closed, notifier := newTestEngine(t)
	pos := openPosition(t, "1", "1000")
	require.NoError(t, open.Add(pos))

	close := closePosition(t, "3", "1500")
	require.NoError(t, engine.Process(context.Background(), close))

	// The only open position absorbed 1000 tokens; the remaining 500 had
	// nowhere to go, so the close keeps its partial status with the
	// shortfall in the error message.
	require.Equal(t, domain.CloseStatusPartial, close.Status)
	require.Contains(t, close.ErrorMessage, "500")
	require.Equal(t, 1, closed.Len())
	require.Equal(t, domain.PositionStatusClosed, pos.Status)

	require.Equal(t, []domain.NotificationKind{
		domain.NotifyPositionClosed,
		domain.NotifyCloseFailed,
	}, notifier.kinds())
	require.Equal(t, MatchStats{Failed: 1}, engine.Stats())
}

func TestProcessSkipsDrainedPosition(t *testing.T) {
	engine, open, closed, _ := newTestEngine(t)

	drained := openPosition(t, "1", "1000")
	require.NoError(t, open.Add(drained))
	full := closePosition(t, "1", "1000")
	full.Status = domain.CloseStatusSuccess
	require.NoError(t, drained.AppendClose(domain.CloseRecord{Kind: domain.CloseKindFull, Close: full}))

	live := openPosition(t, "1", "800")
	require.NoError(t, open.Add(live))

	close := closePosition(t, "1", "800")
	require.NoError(t, engine.Process(context.Background(), close))

	require.Equal(t, domain.CloseStatusSuccess, close.Status)
	require.Equal(t, 2, closed.Len())
	require.Equal(t, 0, open.Len())
	require.Len(t, live.CloseHistory, 1)
}
