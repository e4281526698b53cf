package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDedupWithinTTL(t *testing.T) {
	d := NewDedup(time.Minute)

	require.False(t, d.IsDuplicate("sig-1"))
	require.True(t, d.IsDuplicate("sig-1"))
	require.False(t, d.IsDuplicate("sig-2"))
}

func TestDedupExpires(t *testing.T) {
	d := NewDedup(50 * time.Millisecond)

	require.False(t, d.IsDuplicate("sig-1"))
	time.Sleep(100 * time.Millisecond)
	require.False(t, d.IsDuplicate("sig-1"))
}

func TestDedupCleanup(t *testing.T) {
	d := NewDedup(50 * time.Millisecond)

	d.IsDuplicate("sig-1")
	d.IsDuplicate("sig-2")
	time.Sleep(100 * time.Millisecond)
	d.IsDuplicate("sig-3")

	d.Cleanup()

	d.mu.Lock()
	defer d.mu.Unlock()
	require.Len(t, d.seen, 1)
	_, ok := d.seen["sig-3"]
	require.True(t, ok)
}
