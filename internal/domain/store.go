package domain

import (
	"context"
	"time"
)

// OpenQueueDocument is the persisted shape of the open queue: trader wallet
// to token mint to the ordered list of open positions, oldest first.
type OpenQueueDocument map[string]map[string][]*OpenPosition

// ClosedQueueDocument shares the open queue's nested shape; positions are
// appended when fully closed or terminally failed and never removed.
type ClosedQueueDocument map[string]map[string][]*OpenPosition

// OpenQueueStore persists the open queue document.
type OpenQueueStore interface {
	Save(ctx context.Context, doc OpenQueueDocument) error
	Load(ctx context.Context) (OpenQueueDocument, error)
}

// ClosedQueueStore persists the closed queue document.
type ClosedQueueStore interface {
	Save(ctx context.Context, doc ClosedQueueDocument) error
	Load(ctx context.Context) (ClosedQueueDocument, error)
}

// PendingStore persists the pending queue as a flat ordered list of trade
// intents awaiting execution.
type PendingStore interface {
	Save(ctx context.Context, intents []CopyTrade) error
	Load(ctx context.Context) ([]CopyTrade, error)
}

// AnalysisStore persists the analysis queue as a flat ordered list of
// executed positions whose confirmation is still outstanding.
type AnalysisStore interface {
	Save(ctx context.Context, positions []*Position) error
	Load(ctx context.Context) ([]*Position, error)
}

// JournalEntry is one admission decision recorded for audit.
type JournalEntry struct {
	ID        int64
	Trade     TraderTrade
	Accepted  bool
	Reason    string
	CreatedAt time.Time
}

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeJournal persists every observed trade together with its admission
// outcome.
type TradeJournal interface {
	Insert(ctx context.Context, trade TraderTrade, accepted bool, reason string) error
	ListByTrader(ctx context.Context, wallet string, opts ListOpts) ([]JournalEntry, error)
	ListAll(ctx context.Context, opts ListOpts) ([]JournalEntry, error)
	ListRecent(ctx context.Context, limit int) ([]JournalEntry, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
