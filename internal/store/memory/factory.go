// Package memory implements all stores in-process. Used for standalone
// single-instance deployments and tests; managed deployments use the pg
// backend so multiple coordinator instances can share the atomic
// primitives.
package memory

import (
	"time"

	"github.com/leadpulsehq/leadpulse/internal/store"
)

const (
	defaultDedupTTL        = 20 * time.Minute
	defaultDedupMaxEntries = 5000
)

// NewStores creates the full in-memory store set.
func NewStores(cfg store.Config) *store.Stores {
	ttl := cfg.DedupTTL
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	maxEntries := cfg.DedupMaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultDedupMaxEntries
	}

	return &store.Stores{
		Contacts:      NewContactStore(),
		Conversations: NewConversationStore(),
		Messages:      NewMessageStore(),
		Dedup:         NewDedupStore(ttl, maxEntries),
		Locks:         NewLockStore(),
		Windows:       NewWindowStore(),
		Queue:         NewQueueStore(),
	}
}
