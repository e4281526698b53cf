package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// releaseLua deletes the lock key only when it still carries the holder's
// token, so an expired-and-reacquired lock is never released by the old
// holder.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager is a SETNX+TTL distributed lock. The archive exporter takes
// it so two instances sharing a bucket cannot export the same window twice.
type LockManager struct {
	rdb     *redis.Client
	release *redis.Script
}

var _ domain.LockManager = (*LockManager)(nil)

func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:     c.Underlying(),
		release: redis.NewScript(releaseLua),
	}
}

// Acquire takes the lock for key, returning an idempotent release func, or
// domain.ErrLockHeld when another holder has it.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := "lock:" + key

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		// Release must work even after the caller's context is cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lm.release.Run(rctx, lm.rdb, []string{lk}, token).Err()
	}, nil
}
