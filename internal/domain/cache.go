package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AdmissionCounters are the fast-path, time-expiring counters behind the
// admission rate limiter. They are ephemeral: entries expire after
// their TTL window and the authoritative state stays with the open queue.
type AdmissionCounters interface {
	// RecordBuy registers an accepted buy: last-buy timestamp for the
	// trader, trader presence on the token, token presence for the trader,
	// and the per-(trader, token) position count.
	RecordBuy(ctx context.Context, trader, token string) error

	// RecordSell decrements the same counters, floored at zero, so a sell
	// keeps the fast path consistent with the close that follows.
	RecordSell(ctx context.Context, trader, token string) error

	LastBuyAt(ctx context.Context, trader string) (time.Time, bool, error)
	TraderCountForToken(ctx context.Context, token string) (int64, error)
	TraderHoldsToken(ctx context.Context, token, trader string) (bool, error)
	TokenCountForTrader(ctx context.Context, trader string) (int64, error)
	PositionCount(ctx context.Context, trader, token string) (int64, error)

	// AddDailyVolume accumulates SOL opened today for the trader; the
	// counter expires at the end of the UTC day.
	AddDailyVolume(ctx context.Context, trader string, amount decimal.Decimal) error
	DailyVolume(ctx context.Context, trader string) (decimal.Decimal, error)
}

// RateLimiter provides distributed rate limiting over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// PriceCache provides fast access to the latest observed token prices.
type PriceCache interface {
	SetPrice(ctx context.Context, mint string, price decimal.Decimal, ts time.Time) error
	GetPrice(ctx context.Context, mint string) (decimal.Decimal, time.Time, error)
	GetPrices(ctx context.Context, mints []string) (map[string]decimal.Decimal, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
