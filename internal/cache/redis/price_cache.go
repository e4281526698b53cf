package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each token's
// latest observed price is stored at "price:{mint}" with fields "price"
// (exact decimal string) and "ts" (Unix nanosecond timestamp). The feed
// writes every observed trade's price here; unrealized PnL and slippage
// reads consume it.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(mint string) string {
	return "price:" + mint
}

// SetPrice stores the latest price and timestamp for a token.
func (pc *PriceCache) SetPrice(ctx context.Context, mint string, price decimal.Decimal, ts time.Time) error {
	fields := map[string]interface{}{
		"price": price.String(),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(mint), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", mint, err)
	}
	return nil
}

// GetPrice retrieves the latest price and timestamp for a token. It returns
// domain.ErrNotFound when no price has been observed.
func (pc *PriceCache) GetPrice(ctx context.Context, mint string) (decimal.Decimal, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(mint)).Result()
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get price %s: %w", mint, err)
	}
	if len(vals) == 0 {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse price %s: %w", mint, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", mint, err)
	}

	return price, time.Unix(0, tsNano), nil
}

// GetPrices retrieves the latest prices for multiple tokens using one
// pipeline. Tokens without an observed price are omitted from the result.
func (pc *PriceCache) GetPrices(ctx context.Context, mints []string) (map[string]decimal.Decimal, error) {
	if len(mints) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(mints))
	for _, mint := range mints {
		cmds[mint] = pipe.HGetAll(ctx, priceKey(mint))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[string]decimal.Decimal, len(mints))
	for mint, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		priceStr, ok := vals["price"]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			continue
		}
		result[mint] = price
	}

	return result, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
