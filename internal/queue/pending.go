// Package queue implements the four pipeline stages a copied trade moves
// through: Pending, Analysis, Open, and Closed. Each queue owns its state
// behind one mutex, never blocks producers (full queues reject), and
// serializes itself through an injected store for crash recovery.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// PendingStats is a point-in-time snapshot of the pending queue.
type PendingStats struct {
	Depth    int
	Capacity int
	Added    uint64
	Rejected uint64
	Taken    uint64
}

// PendingQueue is a bounded FIFO of trade intents awaiting execution. Add is
// non-blocking: when the queue is full the intent is rejected immediately
// and the caller decides whether to drop or resubmit.
type PendingQueue struct {
	mu    sync.Mutex
	items []domain.CopyTrade

	capacity int
	store    domain.PendingStore
	logger   *slog.Logger

	added    uint64
	rejected uint64
	taken    uint64
}

// NewPendingQueue creates a pending queue holding at most capacity intents.
// A non-positive capacity falls back to 1000.
func NewPendingQueue(capacity int, store domain.PendingStore, logger *slog.Logger) *PendingQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &PendingQueue{
		capacity: capacity,
		store:    store,
		logger:   logger.With(slog.String("component", "pending_queue")),
	}
}

// Add appends an intent, rejecting with domain.ErrQueueFull when the queue
// is at capacity.
func (q *PendingQueue) Add(intent domain.CopyTrade) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		q.rejected++
		q.logger.Warn("pending queue full, rejecting intent",
			slog.String("trader", intent.TraderWallet),
			slog.String("token", intent.TokenMint),
			slog.Int("capacity", q.capacity))
		return domain.ErrQueueFull
	}

	q.items = append(q.items, intent)
	q.added++
	return nil
}

// Next pops the oldest intent. The second return is false when the queue is
// empty.
func (q *PendingQueue) Next() (domain.CopyTrade, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return domain.CopyTrade{}, false
	}
	intent := q.items[0]
	q.items = append(q.items[:0], q.items[1:]...)
	q.taken++
	return intent, true
}

// Len returns the current depth.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of the queue's counters.
func (q *PendingQueue) Stats() PendingStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return PendingStats{
		Depth:    len(q.items),
		Capacity: q.capacity,
		Added:    q.added,
		Rejected: q.rejected,
		Taken:    q.taken,
	}
}

// SaveState persists the current intent list in order.
func (q *PendingQueue) SaveState(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	q.mu.Lock()
	snapshot := make([]domain.CopyTrade, len(q.items))
	copy(snapshot, q.items)
	q.mu.Unlock()

	if err := q.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("queue: save pending state: %w", err)
	}
	return nil
}

// LoadState replaces the in-memory list with the persisted one, truncating
// to capacity if the stored list is larger.
func (q *PendingQueue) LoadState(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	items, err := q.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("queue: load pending state: %w", err)
	}
	if len(items) > q.capacity {
		items = items[:q.capacity]
	}

	q.mu.Lock()
	q.items = items
	q.mu.Unlock()

	q.logger.Info("pending queue restored", slog.Int("depth", len(items)))
	return nil
}
