package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// ClosedQueue is the append-only archive of fully closed and terminally
// failed positions, in the same trader → token → ordered-list shape as the
// open queue. Positions are never removed; historical PnL queries read from
// here.
type ClosedQueue struct {
	mu       sync.RWMutex
	byTrader map[string]map[string][]*domain.OpenPosition
	count    int

	store  domain.ClosedQueueStore
	logger *slog.Logger
}

// NewClosedQueue creates an empty archive.
func NewClosedQueue(store domain.ClosedQueueStore, logger *slog.Logger) *ClosedQueue {
	return &ClosedQueue{
		byTrader: make(map[string]map[string][]*domain.OpenPosition),
		store:    store,
		logger:   logger.With(slog.String("component", "closed_queue")),
	}
}

// Append archives a position under its (trader, token) pair.
func (q *ClosedQueue) Append(pos *domain.OpenPosition) {
	trader := pos.TraderWallet()
	token := pos.TokenMint()

	q.mu.Lock()
	defer q.mu.Unlock()

	tokens, ok := q.byTrader[trader]
	if !ok {
		tokens = make(map[string][]*domain.OpenPosition)
		q.byTrader[trader] = tokens
	}
	tokens[token] = append(tokens[token], pos)
	q.count++
}

// PositionsFor returns a copy of the archived positions for the pair,
// oldest first.
func (q *ClosedQueue) PositionsFor(trader, token string) []*domain.OpenPosition {
	q.mu.RLock()
	defer q.mu.RUnlock()

	list := q.byTrader[trader][token]
	out := make([]*domain.OpenPosition, len(list))
	copy(out, list)
	return out
}

// PositionsForTrader returns every archived position for the trader across
// all tokens.
func (q *ClosedQueue) PositionsForTrader(trader string) []*domain.OpenPosition {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []*domain.OpenPosition
	for _, list := range q.byTrader[trader] {
		out = append(out, list...)
	}
	return out
}

// RealizedSOL sums net realized proceeds (closed SOL minus entry SOL) over
// the trader's archive. History endpoints use the pnl package for detailed
// breakdowns; this is the cheap aggregate.
func (q *ClosedQueue) RealizedSOL(trader string) decimal.Decimal {
	q.mu.RLock()
	defer q.mu.RUnlock()

	total := decimal.Zero
	for _, list := range q.byTrader[trader] {
		for _, pos := range list {
			total = total.Add(pos.ClosedSOL().Sub(pos.AmountSOL))
		}
	}
	return total
}

// Len returns the total number of archived positions.
func (q *ClosedQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.count
}

// Snapshot returns a deep-ish copy of the archive document for export.
func (q *ClosedQueue) Snapshot() domain.ClosedQueueDocument {
	q.mu.RLock()
	defer q.mu.RUnlock()

	doc := make(domain.ClosedQueueDocument, len(q.byTrader))
	for trader, tokens := range q.byTrader {
		doc[trader] = make(map[string][]*domain.OpenPosition, len(tokens))
		for token, list := range tokens {
			cp := make([]*domain.OpenPosition, len(list))
			copy(cp, list)
			doc[trader][token] = cp
		}
	}
	return doc
}

// SaveState persists the archive document.
func (q *ClosedQueue) SaveState(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	doc := q.Snapshot()
	if err := q.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("queue: save closed state: %w", err)
	}
	return nil
}

// LoadState replaces the archive with the persisted document.
func (q *ClosedQueue) LoadState(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	doc, err := q.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("queue: load closed state: %w", err)
	}

	q.mu.Lock()
	q.byTrader = make(map[string]map[string][]*domain.OpenPosition, len(doc))
	q.count = 0
	for trader, tokens := range doc {
		q.byTrader[trader] = make(map[string][]*domain.OpenPosition, len(tokens))
		for token, list := range tokens {
			q.byTrader[trader][token] = list
			q.count += len(list)
		}
	}
	q.mu.Unlock()

	q.logger.Info("closed queue restored", slog.Int("positions", q.Len()))
	return nil
}
