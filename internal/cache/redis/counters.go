package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// decrFloorLua decrements a counter but never below zero, deleting the key
// once it reaches zero so sells fully undo buys.
const decrFloorLua = `
local v = redis.call('GET', KEYS[1])
if not v or tonumber(v) <= 1 then
    redis.call('DEL', KEYS[1])
    return 0
end
return redis.call('DECR', KEYS[1])
`

// CountersConfig sets the expiry windows of the admission fast path.
type CountersConfig struct {
	// Window expires the per-pair position counters and last-buy marks.
	Window time.Duration
	// TokenTTL expires the token → traders presence sets.
	TokenTTL time.Duration
	// TraderTTL expires the trader → tokens presence sets.
	TraderTTL time.Duration
}

// DefaultCountersConfig matches the admission defaults: 60s counters, 300s
// token presence, 600s trader presence.
func DefaultCountersConfig() CountersConfig {
	return CountersConfig{
		Window:    60 * time.Second,
		TokenTTL:  5 * time.Minute,
		TraderTTL: 10 * time.Minute,
	}
}

// Counters implements domain.AdmissionCounters on Redis. Everything here is
// an expiring heuristic: the open queue remains authoritative, these keys
// only let admission short-circuit cheaply.
type Counters struct {
	rdb    *redis.Client
	cfg    CountersConfig
	decrSc *redis.Script
}

// NewCounters creates the counters on the shared client.
func NewCounters(c *Client, cfg CountersConfig) *Counters {
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Second
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 5 * time.Minute
	}
	if cfg.TraderTTL <= 0 {
		cfg.TraderTTL = 10 * time.Minute
	}
	return &Counters{rdb: c.Underlying(), cfg: cfg, decrSc: redis.NewScript(decrFloorLua)}
}

func lastBuyKey(trader string) string        { return "adm:lastbuy:" + trader }
func tokenTradersKey(token string) string    { return "adm:token:" + token }
func traderTokensKey(trader string) string   { return "adm:trader:" + trader }
func pairKey(trader, token string) string    { return "adm:pair:" + trader + ":" + token }
func dailyVolumeKey(trader string, day string) string {
	return "adm:dayvol:" + day + ":" + trader
}

// RecordBuy registers an accepted buy across all counters in one pipeline.
func (c *Counters) RecordBuy(ctx context.Context, trader, token string) error {
	now := time.Now()
	pipe := c.rdb.Pipeline()

	pipe.Set(ctx, lastBuyKey(trader), now.UnixNano(), c.cfg.Window)

	pipe.SAdd(ctx, tokenTradersKey(token), trader)
	pipe.Expire(ctx, tokenTradersKey(token), c.cfg.TokenTTL)

	pipe.SAdd(ctx, traderTokensKey(trader), token)
	pipe.Expire(ctx, traderTokensKey(trader), c.cfg.TraderTTL)

	pipe.Incr(ctx, pairKey(trader, token))
	pipe.Expire(ctx, pairKey(trader, token), c.cfg.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: record buy %s/%s: %w", trader, token, err)
	}
	return nil
}

// RecordSell undoes one buy's worth of counters, floored at zero. Once the
// pair count hits zero the presence sets drop the pair as well, restoring
// the exact pre-buy state.
func (c *Counters) RecordSell(ctx context.Context, trader, token string) error {
	left, err := c.decrSc.Run(ctx, c.rdb, []string{pairKey(trader, token)}).Int64()
	if err != nil {
		return fmt.Errorf("redis: record sell %s/%s: %w", trader, token, err)
	}
	if left > 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	pipe.SRem(ctx, tokenTradersKey(token), trader)
	pipe.SRem(ctx, traderTokensKey(trader), token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: clear presence %s/%s: %w", trader, token, err)
	}
	return nil
}

// LastBuyAt returns when the trader's last accepted buy was recorded. The
// second return is false when no buy is inside the window.
func (c *Counters) LastBuyAt(ctx context.Context, trader string) (time.Time, bool, error) {
	nanos, err := c.rdb.Get(ctx, lastBuyKey(trader)).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis: last buy %s: %w", trader, err)
	}
	return time.Unix(0, nanos), true, nil
}

// TraderCountForToken counts distinct traders recently buying the token.
func (c *Counters) TraderCountForToken(ctx context.Context, token string) (int64, error) {
	n, err := c.rdb.SCard(ctx, tokenTradersKey(token)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: trader count for %s: %w", token, err)
	}
	return n, nil
}

// TraderHoldsToken reports whether the trader recently bought the token.
func (c *Counters) TraderHoldsToken(ctx context.Context, token, trader string) (bool, error) {
	ok, err := c.rdb.SIsMember(ctx, tokenTradersKey(token), trader).Result()
	if err != nil {
		return false, fmt.Errorf("redis: trader holds %s: %w", token, err)
	}
	return ok, nil
}

// TokenCountForTrader counts distinct tokens the trader recently bought.
func (c *Counters) TokenCountForTrader(ctx context.Context, trader string) (int64, error) {
	n, err := c.rdb.SCard(ctx, traderTokensKey(trader)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: token count for %s: %w", trader, err)
	}
	return n, nil
}

// PositionCount returns the recent buy count for the pair.
func (c *Counters) PositionCount(ctx context.Context, trader, token string) (int64, error) {
	n, err := c.rdb.Get(ctx, pairKey(trader, token)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: position count %s/%s: %w", trader, token, err)
	}
	return n, nil
}

// AddDailyVolume accumulates SOL opened today; the key expires at the next
// UTC midnight. The float increment is fine here: the counter gates the
// daily cap, it is not an accounting value.
func (c *Counters) AddDailyVolume(ctx context.Context, trader string, amount decimal.Decimal) error {
	now := time.Now().UTC()
	key := dailyVolumeKey(trader, now.Format("2006-01-02"))
	f, _ := amount.Float64()

	pipe := c.rdb.Pipeline()
	pipe.IncrByFloat(ctx, key, f)
	midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	pipe.ExpireAt(ctx, key, midnight)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: add daily volume %s: %w", trader, err)
	}
	return nil
}

// DailyVolume returns the SOL opened today for the trader.
func (c *Counters) DailyVolume(ctx context.Context, trader string) (decimal.Decimal, error) {
	key := dailyVolumeKey(trader, time.Now().UTC().Format("2006-01-02"))
	s, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis: daily volume %s: %w", trader, err)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis: parse daily volume %s: %w", trader, err)
	}
	return d, nil
}

// Compile-time interface check.
var _ domain.AdmissionCounters = (*Counters)(nil)
