package store

import (
	"context"
	"time"

	"github.com/leadpulsehq/leadpulse/internal/bus"
	"github.com/leadpulsehq/leadpulse/internal/qualify"
)

// DedupStore tracks recently-seen provider message ids.
type DedupStore interface {
	// Seen atomically checks-and-marks an id. First call within the
	// retention period returns false; subsequent calls return true.
	Seen(ctx context.Context, providerMessageID string) (bool, error)
}

// LockStore serializes the drain-and-reply cycle per conversation.
type LockStore interface {
	// Acquire is an atomic set-if-absent with expiry. The TTL is a backstop
	// against crashed holders, not the primary release mechanism.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// WindowStore holds the debounce window expiry per conversation.
type WindowStore interface {
	// OpenOrExtend opens a new window (none exists, or the existing one
	// already expired) and returns isNew=true, or returns the open window's
	// expiry unchanged with isNew=false.
	OpenOrExtend(ctx context.Context, key string, delay time.Duration) (isNew bool, expiresAt time.Time, err error)
	Clear(ctx context.Context, key string) error
}

// QueueStore buffers not-yet-processed inbound messages per conversation.
type QueueStore interface {
	// Append preserves arrival order.
	Append(ctx context.Context, key string, msg bus.PendingMessage) error
	// DrainAll atomically empties the queue, returning prior contents in
	// chronological order. A second drain returns nothing.
	DrainAll(ctx context.Context, key string) ([]bus.PendingMessage, error)
	// Requeue prepends a failed batch ahead of any newer arrivals.
	Requeue(ctx context.Context, key string, msgs []bus.PendingMessage) error
	// Size reports how many messages are currently buffered.
	Size(ctx context.Context, key string) (int, error)
}

// ContactStore persists external chat identities.
type ContactStore interface {
	// FindOrCreate is idempotent per (orgID, externalID).
	FindOrCreate(ctx context.Context, orgID, externalID, displayName string) (*Contact, error)
}

// ConversationStore persists conversation aggregates and their
// qualification state.
type ConversationStore interface {
	// FindOrCreate is idempotent per key. New conversations start active at
	// the initial stage.
	FindOrCreate(ctx context.Context, orgID, key, contactID string) (*Conversation, error)
	Get(ctx context.Context, key string) (*Conversation, error)
	// UpdateState replaces the qualification snapshot and bumps
	// last-activity.
	UpdateState(ctx context.Context, key string, snap qualify.Snapshot) error
	SetStatus(ctx context.Context, key string, status ConversationStatus) error
}

// MessageStore persists the permanent conversation transcript.
type MessageStore interface {
	AppendInbound(ctx context.Context, conversationKey string, msg bus.PendingMessage) error
	AppendOutbound(ctx context.Context, conversationKey, text string) (*MessageRecord, error)
	// History returns the most recent records in chronological order.
	History(ctx context.Context, conversationKey string, limit int) ([]MessageRecord, error)
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Contacts      ContactStore
	Conversations ConversationStore
	Messages      MessageStore
	Dedup         DedupStore
	Locks         LockStore
	Windows       WindowStore
	Queue         QueueStore
}

// Config selects and tunes a storage backend.
type Config struct {
	PostgresDSN     string        // empty = in-memory standalone mode
	DedupTTL        time.Duration // retention for seen message ids
	DedupMaxEntries int           // memory-mode cap on tracked ids
}
