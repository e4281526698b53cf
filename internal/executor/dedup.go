package executor

import (
	"sync"
	"time"
)

// Dedup prevents the same source trade from being copied more than once
// within a configurable time-to-live window. Keys are the trader's
// transaction signatures. It is safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time // signature -> last seen time
	ttl  time.Duration
	mu   sync.Mutex
}

// NewDedup creates a Dedup instance that considers a signature a duplicate
// if it has been seen within the given ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// IsDuplicate returns true if the signature has been seen within the TTL
// window. If it has not been seen (or has expired), it is recorded and false
// is returned.
func (d *Dedup) IsDuplicate(signature string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if lastSeen, ok := d.seen[signature]; ok {
		if now.Sub(lastSeen) < d.ttl {
			return true
		}
	}

	d.seen[signature] = now
	return false
}

// Cleanup removes entries that have expired beyond the TTL. This should be
// called periodically to prevent unbounded memory growth.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for sig, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, sig)
		}
	}
}
