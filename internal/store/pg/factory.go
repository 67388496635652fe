package pg

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/leadpulsehq/leadpulse/internal/store"
)

const defaultDedupTTL = 20 * time.Minute

// NewPGStores creates all stores backed by Postgres (managed mode).
func NewPGStores(cfg store.Config) (*store.Stores, error) {
	db, err := OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPGStoresWithDB(db, cfg), nil
}

// NewPGStoresWithDB wires all stores onto an existing connection pool.
func NewPGStoresWithDB(db *sql.DB, cfg store.Config) *store.Stores {
	ttl := cfg.DedupTTL
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}

	return &store.Stores{
		Contacts:      NewPGContactStore(db),
		Conversations: NewPGConversationStore(db),
		Messages:      NewPGMessageStore(db),
		Dedup:         NewPGDedupStore(db, ttl),
		Locks:         NewPGLockStore(db),
		Windows:       NewPGWindowStore(db),
		Queue:         NewPGQueueStore(db),
	}
}
