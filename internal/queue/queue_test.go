package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intent(trader, token, sig string) domain.CopyTrade {
	return domain.CopyTrade{
		TraderTrade: domain.TraderTrade{
			TraderWallet: trader,
			Side:         domain.TradeSideBuy,
			TokenMint:    token,
			Signature:    sig,
			AmountSOL:    dec("1"),
			TokenAmount:  dec("1000"),
			Timestamp:    time.Now(),
		},
		CopyAmountSOL:   dec("1"),
		CopyTokenAmount: dec("1000"),
	}
}

func open(id, trader, token, sol, tokens string) *domain.OpenPosition {
	return &domain.OpenPosition{
		Position: domain.Position{
			ID: id,
			Trade: domain.CopyTrade{
				TraderTrade: domain.TraderTrade{
					TraderWallet: trader,
					TokenMint:    token,
				},
			},
			AmountSOL:    dec(sol),
			AmountTokens: dec(tokens),
		},
		Status: domain.PositionStatusOpen,
	}
}

func TestPendingQueueFIFO(t *testing.T) {
	q := NewPendingQueue(10, nil, testLogger())

	require.NoError(t, q.Add(intent("t1", "m1", "sig-1")))
	require.NoError(t, q.Add(intent("t1", "m2", "sig-2")))
	require.Equal(t, 2, q.Len())

	first, ok := q.Next()
	require.True(t, ok)
	require.Equal(t, "sig-1", first.Signature)

	second, ok := q.Next()
	require.True(t, ok)
	require.Equal(t, "sig-2", second.Signature)

	_, ok = q.Next()
	require.False(t, ok)
}

func TestPendingQueueRejectsWhenFull(t *testing.T) {
	q := NewPendingQueue(2, nil, testLogger())

	require.NoError(t, q.Add(intent("t1", "m1", "sig-1")))
	require.NoError(t, q.Add(intent("t1", "m2", "sig-2")))
	require.ErrorIs(t, q.Add(intent("t1", "m3", "sig-3")), domain.ErrQueueFull)

	stats := q.Stats()
	require.Equal(t, 2, stats.Depth)
	require.Equal(t, uint64(2), stats.Added)
	require.Equal(t, uint64(1), stats.Rejected)
}

func TestOpenQueueAddAndLookups(t *testing.T) {
	q := NewOpenQueue(10, nil, testLogger())

	require.NoError(t, q.Add(open("p1", "t1", "m1", "1", "1000")))
	require.NoError(t, q.Add(open("p2", "t1", "m1", "2", "2000")))
	require.NoError(t, q.Add(open("p3", "t1", "m2", "0.5", "500")))
	require.NoError(t, q.Add(open("p4", "t2", "m1", "1", "1000")))

	require.Equal(t, 4, q.Len())
	require.Equal(t, 2, q.TraderCount("m1"))
	require.Equal(t, 2, q.TokenCount("t1"))
	require.Equal(t, 2, q.PositionCount("t1", "m1"))
	require.True(t, q.HasPosition("t1", "m2"))
	require.False(t, q.HasPosition("t2", "m2"))

	first, ok := q.First("t1", "m1")
	require.True(t, ok)
	require.Equal(t, "p1", first.ID)

	require.True(t, q.OpenSOL("t1").Equal(dec("3.5")))
	require.True(t, q.TotalOpenSOL().Equal(dec("4.5")))
	require.ElementsMatch(t, []string{"m1", "m2"}, q.OpenMints())
}

func TestOpenQueueRejectsDuplicateID(t *testing.T) {
	q := NewOpenQueue(10, nil, testLogger())
	require.NoError(t, q.Add(open("p1", "t1", "m1", "1", "1000")))
	require.ErrorIs(t, q.Add(open("p1", "t1", "m1", "1", "1000")), domain.ErrDuplicatePosition)
}

func TestOpenQueueEvictsOldestAtCapacity(t *testing.T) {
	q := NewOpenQueue(2, nil, testLogger())
	require.NoError(t, q.Add(open("p1", "t1", "m1", "1", "1000")))
	require.NoError(t, q.Add(open("p2", "t1", "m1", "1", "1000")))
	require.NoError(t, q.Add(open("p3", "t1", "m1", "1", "1000")))

	require.Equal(t, 2, q.PositionCount("t1", "m1"))
	first, ok := q.First("t1", "m1")
	require.True(t, ok)
	require.Equal(t, "p2", first.ID)
	// The evicted id may be reused.
	require.NoError(t, q.Add(open("p1", "t1", "m1", "1", "1000")))
}

func TestOpenQueueRemove(t *testing.T) {
	q := NewOpenQueue(10, nil, testLogger())
	require.NoError(t, q.Add(open("p1", "t1", "m1", "1", "1000")))
	require.NoError(t, q.Add(open("p2", "t1", "m1", "1", "1000")))

	require.True(t, q.Remove("t1", "m1", "p1"))
	require.False(t, q.Remove("t1", "m1", "p1"))
	require.Equal(t, 1, q.Len())

	require.True(t, q.Remove("t1", "m1", "p2"))
	// Emptied pairs no longer count toward the trader's open tokens.
	require.Equal(t, 0, q.TokenCount("t1"))
	require.Equal(t, 0, q.TraderCount("m1"))
}

func TestOpenQueueRemainingSOLAfterPartialClose(t *testing.T) {
	q := NewOpenQueue(10, nil, testLogger())
	pos := open("p1", "t1", "m1", "2", "2000")
	require.NoError(t, q.Add(pos))

	rec := domain.CloseRecord{
		Kind: domain.CloseKindFull,
		Close: &domain.ClosePosition{
			Position:            domain.Position{ID: "c1"},
			Status:              domain.CloseStatusSuccess,
			AmountSOLToClose:    dec("0.5"),
			AmountTokensToClose: dec("500"),
		},
	}
	require.NoError(t, pos.AppendClose(rec))

	require.True(t, q.OpenSOL("t1").Equal(dec("1.5")))
}

func TestClosedQueueAppendAndAggregates(t *testing.T) {
	q := NewClosedQueue(nil, testLogger())

	p1 := open("p1", "t1", "m1", "1", "1000")
	require.NoError(t, p1.AppendClose(domain.CloseRecord{
		Kind: domain.CloseKindFull,
		Close: &domain.ClosePosition{
			Position:            domain.Position{ID: "c1"},
			Status:              domain.CloseStatusSuccess,
			AmountSOLToClose:    dec("1.4"),
			AmountTokensToClose: dec("1000"),
		},
	}))
	q.Append(p1)
	q.Append(open("p2", "t1", "m2", "2", "500"))

	require.Equal(t, 2, q.Len())
	require.Len(t, q.PositionsFor("t1", "m1"), 1)
	require.Len(t, q.PositionsForTrader("t1"), 2)

	// p1 realized 0.4, p2 closed nothing so contributes -2.
	require.True(t, q.RealizedSOL("t1").Equal(dec("-1.6")))

	doc := q.Snapshot()
	require.Len(t, doc["t1"]["m1"], 1)
	require.Len(t, doc["t1"]["m2"], 1)
}

func TestAnalysisQueueTakeIsIdempotent(t *testing.T) {
	q := NewAnalysisQueue(10, nil, testLogger())

	pos := &domain.Position{ID: "p1", ExecutionSignature: "sig-1"}
	require.NoError(t, q.Add(pos))
	require.Equal(t, 1, q.Len())

	got, ok := q.Take("sig-1")
	require.True(t, ok)
	require.Equal(t, "p1", got.ID)

	// The racing resolver finds the signature already gone.
	_, ok = q.Take("sig-1")
	require.False(t, ok)
	require.Equal(t, 0, q.Len())
}

func TestAnalysisQueueRejections(t *testing.T) {
	q := NewAnalysisQueue(2, nil, testLogger())

	require.Error(t, q.Add(&domain.Position{ID: "p1"}))
	require.NoError(t, q.Add(&domain.Position{ID: "p1", ExecutionSignature: "sig-1"}))
	require.ErrorIs(t, q.Add(&domain.Position{ID: "p2", ExecutionSignature: "sig-1"}), domain.ErrDuplicatePosition)
	require.NoError(t, q.Add(&domain.Position{ID: "p2", ExecutionSignature: "sig-2"}))
	require.ErrorIs(t, q.Add(&domain.Position{ID: "p3", ExecutionSignature: "sig-3"}), domain.ErrQueueFull)
}

func TestAnalysisQueueUnresolved(t *testing.T) {
	q := NewAnalysisQueue(10, nil, testLogger())
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Add(&domain.Position{
			ID:                 fmt.Sprintf("p%d", i),
			ExecutionSignature: fmt.Sprintf("sig-%d", i),
		}))
	}

	// Everything was added just now, so nothing is older than a minute.
	require.Empty(t, q.Unresolved(time.Minute))

	// With no minimum age everything qualifies, oldest first.
	require.Equal(t, []string{"sig-0", "sig-1", "sig-2"}, q.Unresolved(-time.Second))

	q.Take("sig-1")
	require.Equal(t, []string{"sig-0", "sig-2"}, q.Unresolved(-time.Second))
}

type memoryPendingStore struct {
	saved []domain.CopyTrade
}

func (s *memoryPendingStore) Save(_ context.Context, intents []domain.CopyTrade) error {
	s.saved = append(s.saved[:0], intents...)
	return nil
}

func (s *memoryPendingStore) Load(context.Context) ([]domain.CopyTrade, error) {
	out := make([]domain.CopyTrade, len(s.saved))
	copy(out, s.saved)
	return out, nil
}

func TestPendingQueueSaveLoadRoundTrip(t *testing.T) {
	store := &memoryPendingStore{}
	q := NewPendingQueue(10, store, testLogger())
	require.NoError(t, q.Add(intent("t1", "m1", "sig-1")))
	require.NoError(t, q.Add(intent("t1", "m2", "sig-2")))
	require.NoError(t, q.SaveState(context.Background()))

	restored := NewPendingQueue(10, store, testLogger())
	require.NoError(t, restored.LoadState(context.Background()))
	require.Equal(t, 2, restored.Len())

	first, ok := restored.Next()
	require.True(t, ok)
	require.Equal(t, "sig-1", first.Signature)
}
