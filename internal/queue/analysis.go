package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// AnalysisQueue holds executed positions whose on-chain outcome is not yet
// known, keyed by execution signature. Two resolvers race over it: the
// push-based signature subscription and the pull-based status poller.
// Whichever calls Take first wins; the loser finds the signature gone and
// does nothing.
type AnalysisQueue struct {
	mu       sync.Mutex
	awaiting map[string]*awaitingEntry
	order    []string

	capacity int
	store    domain.AnalysisStore
	logger   *slog.Logger
}

type awaitingEntry struct {
	pos     *domain.Position
	addedAt time.Time
}

// NewAnalysisQueue creates an analysis queue holding at most capacity
// unresolved positions. A non-positive capacity falls back to 1000.
func NewAnalysisQueue(capacity int, store domain.AnalysisStore, logger *slog.Logger) *AnalysisQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &AnalysisQueue{
		awaiting: make(map[string]*awaitingEntry),
		capacity: capacity,
		store:    store,
		logger:   logger.With(slog.String("component", "analysis_queue")),
	}
}

// Add registers an executed position under its signature. Positions without
// a signature cannot be resolved and are rejected outright; a full queue
// rejects with domain.ErrQueueFull, a known signature with
// domain.ErrDuplicatePosition.
func (q *AnalysisQueue) Add(pos *domain.Position) error {
	if pos.ExecutionSignature == "" {
		return fmt.Errorf("queue: position %s has no execution signature", pos.ID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.awaiting) >= q.capacity {
		q.logger.Warn("analysis queue full, rejecting position",
			slog.String("position_id", pos.ID),
			slog.Int("capacity", q.capacity))
		return domain.ErrQueueFull
	}
	if _, dup := q.awaiting[pos.ExecutionSignature]; dup {
		return domain.ErrDuplicatePosition
	}

	q.awaiting[pos.ExecutionSignature] = &awaitingEntry{pos: pos, addedAt: time.Now()}
	q.order = append(q.order, pos.ExecutionSignature)
	return nil
}

// Take removes and returns the position awaiting the signature. The second
// return is false when the signature is unknown or already resolved, which
// is how the push and pull paths stay idempotent against each other.
func (q *AnalysisQueue) Take(signature string) (*domain.Position, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.awaiting[signature]
	if !ok {
		return nil, false
	}
	delete(q.awaiting, signature)
	for i, sig := range q.order {
		if sig == signature {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return entry.pos, true
}

// Unresolved returns the signatures that have been waiting longer than
// minAge, oldest first, for the fallback status poller to batch-query.
func (q *AnalysisQueue) Unresolved(minAge time.Duration) []string {
	cutoff := time.Now().Add(-minAge)

	q.mu.Lock()
	defer q.mu.Unlock()

	var out []string
	for _, sig := range q.order {
		if entry, ok := q.awaiting[sig]; ok && entry.addedAt.Before(cutoff) {
			out = append(out, sig)
		}
	}
	return out
}

// Len returns the number of unresolved positions.
func (q *AnalysisQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.awaiting)
}

// SaveState persists the unresolved positions as a flat ordered list.
func (q *AnalysisQueue) SaveState(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	q.mu.Lock()
	positions := make([]*domain.Position, 0, len(q.order))
	for _, sig := range q.order {
		if entry, ok := q.awaiting[sig]; ok {
			positions = append(positions, entry.pos)
		}
	}
	q.mu.Unlock()

	if err := q.store.Save(ctx, positions); err != nil {
		return fmt.Errorf("queue: save analysis state: %w", err)
	}
	return nil
}

// LoadState restores the unresolved set. Restored entries are treated as
// freshly added; the poller will pick them up on its next pass.
func (q *AnalysisQueue) LoadState(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	positions, err := q.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("queue: load analysis state: %w", err)
	}

	now := time.Now()
	q.mu.Lock()
	q.awaiting = make(map[string]*awaitingEntry, len(positions))
	q.order = q.order[:0]
	for _, pos := range positions {
		if pos.ExecutionSignature == "" {
			continue
		}
		if len(q.awaiting) >= q.capacity {
			break
		}
		q.awaiting[pos.ExecutionSignature] = &awaitingEntry{pos: pos, addedAt: now}
		q.order = append(q.order, pos.ExecutionSignature)
	}
	restored := len(q.awaiting)
	q.mu.Unlock()

	q.logger.Info("analysis queue restored", slog.Int("positions", restored))
	return nil
}
