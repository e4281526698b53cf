// Package retry provides a bounded retry combinator with exponential
// backoff, shared by every component that re-attempts transient work.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds a retried operation. Delay for attempt n (1-based) is
// BaseDelay << (n-1); a zero MaxDelay leaves delays uncapped.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy matches the pipeline-wide analysis retry budget: three
// attempts backed off 1s, 2s, 4s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Permanent wraps an error to tell Do that further attempts cannot change
// the outcome.
type Permanent struct {
	Err error
}

func (p Permanent) Error() string { return p.Err.Error() }
func (p Permanent) Unwrap() error { return p.Err }

// Abort marks err as non-retryable.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return Permanent{Err: err}
}

// Do runs fn up to p.MaxAttempts times, sleeping between attempts, and
// returns fn's first success. It stops early on context cancellation or a
// Permanent error. The returned error wraps the last attempt's error.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		return zero, fmt.Errorf("retry: invalid max attempts %d", p.MaxAttempts)
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.delay(attempt - 1)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		var perm Permanent
		if errors.As(err, &perm) {
			return zero, perm.Err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		lastErr = err
	}

	return zero, fmt.Errorf("retry: %d attempts exhausted: %w", p.MaxAttempts, lastErr)
}

// delay returns the backoff before attempt n+1, given n completed attempts.
func (p Policy) delay(n int) time.Duration {
	d := p.BaseDelay << (n - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
