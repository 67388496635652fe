package store

import (
	"errors"
	"time"

	"github.com/leadpulsehq/leadpulse/internal/qualify"
)

// ErrUnavailable wraps backend failures so callers can fail closed instead
// of risking double-processing.
var ErrUnavailable = errors.New("store unavailable")

// ErrNotFound is returned for lookups of unknown conversations.
var ErrNotFound = errors.New("conversation not found")

// ConversationStatus gates reply delivery. Closed or paused conversations
// still persist inbound messages but never trigger replies.
type ConversationStatus string

const (
	StatusActive ConversationStatus = "active"
	StatusPaused ConversationStatus = "paused"
	StatusClosed ConversationStatus = "closed"
)

// Contact is one external chat identity within an organization.
type Contact struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	ExternalID  string    `json:"external_id"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Conversation is the aggregate root tracked per contact. Never deleted;
// a closed conversation is superseded by a new one.
type Conversation struct {
	ID             string             `json:"id"`
	Key            string             `json:"key"` // org + external contact id, stable
	OrgID          string             `json:"org_id"`
	ContactID      string             `json:"contact_id"`
	Status         ConversationStatus `json:"status"`
	State          qualify.Snapshot   `json:"state"`
	LastActivityAt time.Time          `json:"last_activity_at,omitzero"`
	CreatedAt      time.Time          `json:"created_at"`
}

// MessageDirection distinguishes inbound from outbound records.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "in"
	DirectionOutbound MessageDirection = "out"
)

// MessageRecord is one permanently persisted conversation message.
type MessageRecord struct {
	ID                string           `json:"id"`
	ConversationKey   string           `json:"conversation_key"`
	Direction         MessageDirection `json:"direction"`
	ProviderMessageID string           `json:"provider_message_id,omitempty"`
	Text              string           `json:"text"`
	SenderDisplayName string           `json:"sender_display_name,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}
