package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// JournalStore implements domain.TradeJournal using PostgreSQL. Amounts are
// stored as exact decimal strings.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a JournalStore backed by the given connection pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

var _ domain.TradeJournal = (*JournalStore)(nil)

const journalSelectCols = `id, trader_wallet, side, token_mint,
	sol_amount, token_amount, signature, accepted, reason, created_at`

func scanJournalRows(rows pgx.Rows) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var side, solAmount, tokenAmount string

		if err := rows.Scan(
			&e.ID, &e.Trade.TraderWallet, &side, &e.Trade.TokenMint,
			&solAmount, &tokenAmount, &e.Trade.Signature,
			&e.Accepted, &e.Reason, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Trade.Side = domain.TradeSide(side)
		if v, err := decimal.NewFromString(solAmount); err == nil {
			e.Trade.AmountSOL = v
		}
		if v, err := decimal.NewFromString(tokenAmount); err == nil {
			e.Trade.TokenAmount = v
		}
		e.Trade.Timestamp = e.CreatedAt
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Insert records an observed trade and its admission outcome.
func (s *JournalStore) Insert(ctx context.Context, trade domain.TraderTrade, accepted bool, reason string) error {
	const query = `
		INSERT INTO trade_journal (
			trader_wallet, side, token_mint, sol_amount, token_amount,
			signature, accepted, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		trade.TraderWallet, string(trade.Side), trade.TokenMint,
		trade.AmountSOL.String(), trade.TokenAmount.String(),
		trade.Signature, accepted, reason,
	)
	if err != nil {
		return fmt.Errorf("postgres: journal insert %s: %w", trade.Signature, err)
	}
	return nil
}

// ListByTrader returns journal entries for one trader, newest first.
func (s *JournalStore) ListByTrader(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.JournalEntry, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + journalSelectCols + " FROM trade_journal WHERE trader_wallet = $1")

	args := []any{wallet}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&sb, " AND created_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		fmt.Fprintf(&sb, " AND created_at < $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: journal list by trader %s: %w", wallet, err)
	}
	defer rows.Close()

	return scanJournalRows(rows)
}

// ListAll returns journal entries across all traders, newest first.
func (s *JournalStore) ListAll(ctx context.Context, opts domain.ListOpts) ([]domain.JournalEntry, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + journalSelectCols + " FROM trade_journal WHERE TRUE")

	var args []any
	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&sb, " AND created_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		fmt.Fprintf(&sb, " AND created_at < $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: journal list all: %w", err)
	}
	defer rows.Close()

	return scanJournalRows(rows)
}

// ListRecent returns the most recent journal entries across all traders.
func (s *JournalStore) ListRecent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT ` + journalSelectCols + `
		FROM trade_journal
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: journal list recent: %w", err)
	}
	defer rows.Close()

	return scanJournalRows(rows)
}

// CountSince returns the number of journal entries recorded at or after the
// given time.
func (s *JournalStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM trade_journal WHERE created_at >= $1", since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: journal count since: %w", err)
	}
	return count, nil
}
