package memory

import (
	"context"
	"sync"
	"time"
)

// DedupStore is a TTL-bounded check-and-mark cache of provider message ids.
// Entry count is capped so rotating ids cannot exhaust memory; eviction
// prefers expired entries, then oldest.
type DedupStore struct {
	mu         sync.Mutex
	entries    map[string]time.Time // id -> marked-at
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewDedupStore creates a dedup store with the given retention and cap.
func NewDedupStore(ttl time.Duration, maxEntries int) *DedupStore {
	return &DedupStore{
		entries:    make(map[string]time.Time),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Seen atomically checks-and-marks an id. Returns false on first sight
// within the TTL, true for re-deliveries.
func (d *DedupStore) Seen(ctx context.Context, providerMessageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()

	if markedAt, ok := d.entries[providerMessageID]; ok {
		if now.Sub(markedAt) < d.ttl {
			return true, nil
		}
		// Expired entry: re-mark as fresh.
		d.entries[providerMessageID] = now
		return false, nil
	}

	if len(d.entries) >= d.maxEntries {
		d.evictLocked(now)
	}

	d.entries[providerMessageID] = now
	return false, nil
}

func (d *DedupStore) evictLocked(now time.Time) {
	for id, markedAt := range d.entries {
		if now.Sub(markedAt) >= d.ttl {
			delete(d.entries, id)
		}
	}
	// Still at cap: drop oldest entries until under.
	for len(d.entries) >= d.maxEntries {
		var oldestID string
		var oldestAt time.Time
		for id, markedAt := range d.entries {
			if oldestID == "" || markedAt.Before(oldestAt) {
				oldestID, oldestAt = id, markedAt
			}
		}
		delete(d.entries, oldestID)
	}
}
