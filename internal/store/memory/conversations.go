package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadpulsehq/leadpulse/internal/qualify"
	"github.com/leadpulsehq/leadpulse/internal/store"
)

// ConversationStore keeps conversation aggregates in-process.
type ConversationStore struct {
	mu            sync.Mutex
	conversations map[string]*store.Conversation
}

// NewConversationStore creates an empty conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{conversations: make(map[string]*store.Conversation)}
}

// FindOrCreate returns the existing conversation or creates one at the
// initial qualification stage. Idempotent per key.
func (c *ConversationStore) FindOrCreate(ctx context.Context, orgID, key, contactID string) (*store.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.conversations[key]; ok {
		return copyConversation(existing), nil
	}

	now := time.Now()
	conv := &store.Conversation{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Key:            key,
		OrgID:          orgID,
		ContactID:      contactID,
		Status:         store.StatusActive,
		State:          qualify.NewMachine().Snapshot(),
		LastActivityAt: now,
		CreatedAt:      now,
	}
	c.conversations[key] = conv
	return copyConversation(conv), nil
}

// Get returns a copy of the conversation or store.ErrNotFound.
func (c *ConversationStore) Get(ctx context.Context, key string) (*store.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.conversations[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyConversation(conv), nil
}

// UpdateState replaces the qualification snapshot and bumps last-activity.
func (c *ConversationStore) UpdateState(ctx context.Context, key string, snap qualify.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.conversations[key]
	if !ok {
		return store.ErrNotFound
	}
	conv.State = snap
	conv.LastActivityAt = time.Now()
	return nil
}

// SetStatus updates the conversation lifecycle status.
func (c *ConversationStore) SetStatus(ctx context.Context, key string, status store.ConversationStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.conversations[key]
	if !ok {
		return store.ErrNotFound
	}
	conv.Status = status
	return nil
}

func copyConversation(conv *store.Conversation) *store.Conversation {
	cp := *conv
	cp.State = qualify.Restore(conv.State).Snapshot()
	return &cp
}
