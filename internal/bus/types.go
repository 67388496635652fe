package bus

import "time"

// InboundEvent is the canonical inbound message produced by the
// webhook-parsing layer, provider-agnostic.
type InboundEvent struct {
	ConversationKey   string            `json:"conversation_key"`
	ContactExternalID string            `json:"contact_external_id"`
	ProviderMessageID string            `json:"provider_message_id"`
	Text              string            `json:"text"`
	TimestampMs       int64             `json:"timestamp_ms"`
	SenderDisplayName string            `json:"sender_display_name,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Timestamp returns the event arrival time.
func (e InboundEvent) Timestamp() time.Time {
	return time.UnixMilli(e.TimestampMs)
}

// PendingMessage is one not-yet-drained inbound message buffered for a
// conversation's current reply cycle.
type PendingMessage struct {
	ID                string    `json:"id"`
	ProviderMessageID string    `json:"provider_message_id"`
	Text              string    `json:"text"`
	SenderDisplayName string    `json:"sender_display_name,omitempty"`
	ArrivedAt         time.Time `json:"arrived_at"`
}

// OutboundReply carries a generated reply back to the provider.
type OutboundReply struct {
	ConversationKey string            `json:"conversation_key"`
	Text            string            `json:"text"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// IngestStatus classifies the outcome of one ingested event.
type IngestStatus string

const (
	StatusDuplicate IngestStatus = "duplicate" // dropped before any state mutation
	StatusScheduled IngestStatus = "scheduled" // opened a new batch window
	StatusCoalesced IngestStatus = "coalesced" // joined an already-open window
)

// IngestResult is returned to the webhook layer for each event.
type IngestResult struct {
	Status    IngestStatus `json:"status"`
	ExpiresAt time.Time    `json:"expires_at,omitempty"` // batch window expiry (scheduled/coalesced)
}
