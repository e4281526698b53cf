package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// OpenQueue holds every open position as trader wallet → token mint →
// ordered list, oldest first. Each (trader, token) list is bounded; adding
// past the bound evicts the oldest entry. Besides the FIFO operations the
// queue answers the authoritative membership counts the admission layer
// cross-checks its fast-path counters against.
type OpenQueue struct {
	mu       sync.RWMutex
	byTrader map[string]map[string][]*domain.OpenPosition
	ids      map[string]struct{}

	maxPerPair int
	store      domain.OpenQueueStore
	logger     *slog.Logger

	added   uint64
	evicted uint64
	removed uint64
}

// NewOpenQueue creates an open queue bounding each (trader, token) list at
// maxPerPair positions. A non-positive bound falls back to 100.
func NewOpenQueue(maxPerPair int, store domain.OpenQueueStore, logger *slog.Logger) *OpenQueue {
	if maxPerPair <= 0 {
		maxPerPair = 100
	}
	return &OpenQueue{
		byTrader:   make(map[string]map[string][]*domain.OpenPosition),
		ids:        make(map[string]struct{}),
		maxPerPair: maxPerPair,
		store:      store,
		logger:     logger.With(slog.String("component", "open_queue")),
	}
}

// Add appends a position under its (trader, token) pair. A position id seen
// before is rejected with domain.ErrDuplicatePosition. When the pair's list
// is at its bound the oldest position is evicted to make room.
func (q *OpenQueue) Add(pos *domain.OpenPosition) error {
	trader := pos.TraderWallet()
	token := pos.TokenMint()

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.ids[pos.ID]; dup {
		return domain.ErrDuplicatePosition
	}

	tokens, ok := q.byTrader[trader]
	if !ok {
		tokens = make(map[string][]*domain.OpenPosition)
		q.byTrader[trader] = tokens
	}

	list := tokens[token]
	if len(list) >= q.maxPerPair {
		oldest := list[0]
		list = append(list[:0], list[1:]...)
		delete(q.ids, oldest.ID)
		q.evicted++
		q.logger.Warn("open queue pair at capacity, evicting oldest",
			slog.String("trader", trader),
			slog.String("token", token),
			slog.String("evicted_id", oldest.ID))
	}

	tokens[token] = append(list, pos)
	q.ids[pos.ID] = struct{}{}
	q.added++
	return nil
}

// First peeks the oldest open position for the pair without removing it.
func (q *OpenQueue) First(trader, token string) (*domain.OpenPosition, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	list := q.byTrader[trader][token]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// Remove deletes the position with the given id from the pair's list. It
// reports whether the position was present.
func (q *OpenQueue) Remove(trader, token, id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.byTrader[trader][token]
	for i, pos := range list {
		if pos.ID != id {
			continue
		}
		q.byTrader[trader][token] = append(list[:i], list[i+1:]...)
		delete(q.ids, id)
		q.removed++
		if len(q.byTrader[trader][token]) == 0 {
			delete(q.byTrader[trader], token)
			if len(q.byTrader[trader]) == 0 {
				delete(q.byTrader, trader)
			}
		}
		return true
	}
	return false
}

// PositionsFor returns a copy of the pair's list, oldest first.
func (q *OpenQueue) PositionsFor(trader, token string) []*domain.OpenPosition {
	q.mu.RLock()
	defer q.mu.RUnlock()

	list := q.byTrader[trader][token]
	out := make([]*domain.OpenPosition, len(list))
	copy(out, list)
	return out
}

// TraderCount returns how many distinct traders currently hold the token.
func (q *OpenQueue) TraderCount(token string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	n := 0
	for _, tokens := range q.byTrader {
		if len(tokens[token]) > 0 {
			n++
		}
	}
	return n
}

// HasPosition reports whether the trader holds any open position in the
// token.
func (q *OpenQueue) HasPosition(trader, token string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.byTrader[trader][token]) > 0
}

// TokenCount returns how many distinct tokens the trader holds open
// positions in.
func (q *OpenQueue) TokenCount(trader string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.byTrader[trader])
}

// PositionCount returns the number of open positions for the pair.
func (q *OpenQueue) PositionCount(trader, token string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.byTrader[trader][token])
}

// OpenSOL sums the remaining SOL across all of a trader's open positions.
// The admission budget checks read this.
func (q *OpenQueue) OpenSOL(trader string) decimal.Decimal {
	q.mu.RLock()
	defer q.mu.RUnlock()

	total := decimal.Zero
	for _, list := range q.byTrader[trader] {
		for _, pos := range list {
			total = total.Add(pos.RemainingSOL())
		}
	}
	return total
}

// TotalOpenSOL sums remaining SOL across every trader, for the global
// budget check.
func (q *OpenQueue) TotalOpenSOL() decimal.Decimal {
	q.mu.RLock()
	defer q.mu.RUnlock()

	total := decimal.Zero
	for _, tokens := range q.byTrader {
		for _, list := range tokens {
			for _, pos := range list {
				total = total.Add(pos.RemainingSOL())
			}
		}
	}
	return total
}

// OpenMints returns the distinct token mints with at least one open
// position, across all traders.
func (q *OpenQueue) OpenMints() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, tokens := range q.byTrader {
		for token, list := range tokens {
			if len(list) > 0 {
				seen[token] = struct{}{}
			}
		}
	}
	mints := make([]string, 0, len(seen))
	for token := range seen {
		mints = append(mints, token)
	}
	return mints
}

// Len returns the total number of open positions.
func (q *OpenQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.ids)
}

func (q *OpenQueue) snapshot() domain.OpenQueueDocument {
	doc := make(domain.OpenQueueDocument, len(q.byTrader))
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

// SaveState persists the full trader→token→positions document.
func (q *OpenQueue) SaveState(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	q.mu.RLock()
	doc := q.snapshot()
	q.mu.RUnlock()

	if err := q.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("queue: save open state: %w", err)
	}
	return nil
}

// LoadState replaces the in-memory structure with the persisted document.
func (q *OpenQueue) LoadState(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	doc, err := q.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("queue: load open state: %w", err)
	}

	q.mu.Lock()
	q.byTrader = make(map[string]map[string][]*domain.OpenPosition, len(doc))
	q.ids = make(map[string]struct{})
	count := 0
	for trader, tokens := range doc {
		q.byTrader[trader] = make(map[string][]*domain.OpenPosition, len(tokens))
		for token, list := range tokens {
			if len(list) > q.maxPerPair {
				list = list[len(list)-q.maxPerPair:]
			}
			q.byTrader[trader][token] = list
			for _, pos := range list {
				q.ids[pos.ID] = struct{}{}
				count++
			}
		}
	}
	q.mu.Unlock()

	q.logger.Info("open queue restored", slog.Int("positions", count))
	return nil
}
