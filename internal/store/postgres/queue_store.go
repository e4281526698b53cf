package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// Queue document row names.
const (
	docOpenQueue     = "open_queue"
	docClosedQueue   = "closed_queue"
	docPendingQueue  = "pending_queue"
	docAnalysisQueue = "analysis_queue"
)

// saveDocument upserts a queue snapshot as a single JSONB row.
func saveDocument(ctx context.Context, pool *pgxpool.Pool, name string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("postgres: marshal %s: %w", name, err)
	}

	const query = `
		INSERT INTO queue_documents (name, doc, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`

	if _, err := pool.Exec(ctx, query, name, data); err != nil {
		return fmt.Errorf("postgres: save %s: %w", name, err)
	}
	return nil
}

// loadDocument reads a queue snapshot into out. A missing row leaves out
// untouched and returns false.
func loadDocument(ctx context.Context, pool *pgxpool.Pool, name string, out any) (bool, error) {
	var data []byte
	err := pool.QueryRow(ctx,
		"SELECT doc FROM queue_documents WHERE name = $1", name,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: load %s: %w", name, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("postgres: decode %s: %w", name, err)
	}
	return true, nil
}

// OpenQueueStore persists the open queue document.
type OpenQueueStore struct {
	pool *pgxpool.Pool
}

// NewOpenQueueStore creates an OpenQueueStore backed by the given pool.
func NewOpenQueueStore(pool *pgxpool.Pool) *OpenQueueStore {
	return &OpenQueueStore{pool: pool}
}

var _ domain.OpenQueueStore = (*OpenQueueStore)(nil)

func (s *OpenQueueStore) Save(ctx context.Context, doc domain.OpenQueueDocument) error {
	return saveDocument(ctx, s.pool, docOpenQueue, doc)
}

func (s *OpenQueueStore) Load(ctx context.Context) (domain.OpenQueueDocument, error) {
	doc := domain.OpenQueueDocument{}
	if _, err := loadDocument(ctx, s.pool, docOpenQueue, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ClosedQueueStore persists the closed queue document.
type ClosedQueueStore struct {
	pool *pgxpool.Pool
}

// NewClosedQueueStore creates a ClosedQueueStore backed by the given pool.
func NewClosedQueueStore(pool *pgxpool.Pool) *ClosedQueueStore {
	return &ClosedQueueStore{pool: pool}
}

var _ domain.ClosedQueueStore = (*ClosedQueueStore)(nil)

func (s *ClosedQueueStore) Save(ctx context.Context, doc domain.ClosedQueueDocument) error {
	return saveDocument(ctx, s.pool, docClosedQueue, doc)
}

func (s *ClosedQueueStore) Load(ctx context.Context) (domain.ClosedQueueDocument, error) {
	doc := domain.ClosedQueueDocument{}
	if _, err := loadDocument(ctx, s.pool, docClosedQueue, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// PendingStore persists the pending queue as a flat ordered list.
type PendingStore struct {
	pool *pgxpool.Pool
}

// NewPendingStore creates a PendingStore backed by the given pool.
func NewPendingStore(pool *pgxpool.Pool) *PendingStore {
	return &PendingStore{pool: pool}
}

var _ domain.PendingStore = (*PendingStore)(nil)

func (s *PendingStore) Save(ctx context.Context, intents []domain.CopyTrade) error {
	if intents == nil {
		intents = []domain.CopyTrade{}
	}
	return saveDocument(ctx, s.pool, docPendingQueue, intents)
}

func (s *PendingStore) Load(ctx context.Context) ([]domain.CopyTrade, error) {
	var intents []domain.CopyTrade
	if _, err := loadDocument(ctx, s.pool, docPendingQueue, &intents); err != nil {
		return nil, err
	}
	return intents, nil
}

// AnalysisStore persists the analysis queue as a flat ordered list.
type AnalysisStore struct {
	pool *pgxpool.Pool
}

// NewAnalysisStore creates an AnalysisStore backed by the given pool.
func NewAnalysisStore(pool *pgxpool.Pool) *AnalysisStore {
	return &AnalysisStore{pool: pool}
}

var _ domain.AnalysisStore = (*AnalysisStore)(nil)

func (s *AnalysisStore) Save(ctx context.Context, positions []*domain.Position) error {
	if positions == nil {
		positions = []*domain.Position{}
	}
	return saveDocument(ctx, s.pool, docAnalysisQueue, positions)
}

func (s *AnalysisStore) Load(ctx context.Context) ([]*domain.Position, error) {
	var positions []*domain.Position
	if _, err := loadDocument(ctx, s.pool, docAnalysisQueue, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}
