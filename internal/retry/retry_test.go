package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	got, err := Do(context.Background(), p, func(_ context.Context, attempt int) (int, error) {
		calls++
		require.Equal(t, calls, attempt)
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
	require.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	got, err := Do(context.Background(), p, func(_ context.Context, _ int) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	sentinel := errors.New("still broken")

	calls := 0
	_, err := Do(context.Background(), p, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnAbort(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	sentinel := errors.New("bad request")

	calls := 0
	_, err := Do(context.Background(), p, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, Abort(sentinel)
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, calls)
	// Abort unwraps to the original error, not the Permanent wrapper.
	require.False(t, errors.As(err, &Permanent{}))
}

func TestDoStopsOnContextCancel(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, p, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestDoRejectsZeroAttempts(t *testing.T) {
	_, err := Do(context.Background(), Policy{}, func(_ context.Context, _ int) (int, error) {
		return 0, nil
	})
	require.Error(t, err)
}

func TestAbortNil(t *testing.T) {
	require.NoError(t, Abort(nil))
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 3 * time.Second}

	tests := []struct {
		completed int
		want      time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
		{4, 3 * time.Second},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, p.delay(tt.completed), "after %d attempts", tt.completed)
	}
}
