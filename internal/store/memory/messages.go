package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadpulsehq/leadpulse/internal/bus"
	"github.com/leadpulsehq/leadpulse/internal/store"
)

// MessageStore keeps the permanent transcript in-process.
type MessageStore struct {
	mu       sync.Mutex
	messages map[string][]store.MessageRecord
}

// NewMessageStore creates an empty message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string][]store.MessageRecord)}
}

// AppendInbound records a received message.
func (m *MessageStore) AppendInbound(ctx context.Context, conversationKey string, msg bus.PendingMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages[conversationKey] = append(m.messages[conversationKey], store.MessageRecord{
		ID:                msg.ID,
		ConversationKey:   conversationKey,
		Direction:         store.DirectionInbound,
		ProviderMessageID: msg.ProviderMessageID,
		Text:              msg.Text,
		SenderDisplayName: msg.SenderDisplayName,
		CreatedAt:         msg.ArrivedAt,
	})
	return nil
}

// AppendOutbound records a sent reply and returns the stored record.
func (m *MessageStore) AppendOutbound(ctx context.Context, conversationKey, text string) (*store.MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := store.MessageRecord{
		ID:              uuid.Must(uuid.NewV7()).String(),
		ConversationKey: conversationKey,
		Direction:       store.DirectionOutbound,
		Text:            text,
		CreatedAt:       time.Now(),
	}
	m.messages[conversationKey] = append(m.messages[conversationKey], rec)
	return &rec, nil
}

// History returns up to limit most recent records in chronological order.
// limit <= 0 returns everything.
func (m *MessageStore) History(ctx context.Context, conversationKey string, limit int) ([]store.MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.messages[conversationKey]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]store.MessageRecord, len(msgs))
	copy(out, msgs)
	return out, nil
}
