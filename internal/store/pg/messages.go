package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadpulsehq/leadpulse/internal/bus"
	"github.com/leadpulsehq/leadpulse/internal/store"
)

// PGMessageStore implements store.MessageStore backed by Postgres.
type PGMessageStore struct {
	db *sql.DB
}

func NewPGMessageStore(db *sql.DB) *PGMessageStore {
	return &PGMessageStore{db: db}
}

// AppendInbound records a received message. Conflicts on the message id are
// ignored so provider redeliveries that slip past dedup stay idempotent.
func (m *PGMessageStore) AppendInbound(ctx context.Context, conversationKey string, msg bus.PendingMessage) error {
	if _, err := m.db.ExecContext(ctx,
		`INSERT INTO messages
		   (id, conversation_key, direction, provider_message_id, text, sender_display_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		msg.ID, conversationKey, store.DirectionInbound, msg.ProviderMessageID,
		msg.Text, msg.SenderDisplayName, msg.ArrivedAt,
	); err != nil {
		return fmt.Errorf("message append inbound: %w", err)
	}
	return nil
}

func (m *PGMessageStore) AppendOutbound(ctx context.Context, conversationKey, text string) (*store.MessageRecord, error) {
	rec := &store.MessageRecord{
		ID:              uuid.Must(uuid.NewV7()).String(),
		ConversationKey: conversationKey,
		Direction:       store.DirectionOutbound,
		Text:            text,
	}
	err := m.db.QueryRowContext(ctx,
		`INSERT INTO messages (id, conversation_key, direction, text, created_at)
		 VALUES ($1, $2, $3, $4, now())
		 RETURNING created_at`,
		rec.ID, conversationKey, store.DirectionOutbound, text,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("message append outbound: %w", err)
	}
	return rec, nil
}

// History returns up to limit most recent records, oldest first.
func (m *PGMessageStore) History(ctx context.Context, conversationKey string, limit int) ([]store.MessageRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, direction, provider_message_id, text, sender_display_name, created_at
		 FROM (
		   SELECT * FROM messages WHERE conversation_key = $1
		   ORDER BY created_at DESC LIMIT $2
		 ) recent
		 ORDER BY created_at ASC`,
		conversationKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("message history: %w", err)
	}
	defer rows.Close()

	var out []store.MessageRecord
	for rows.Next() {
		rec := store.MessageRecord{ConversationKey: conversationKey}
		var providerID, sender sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Direction, &providerID, &rec.Text, &sender, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("message history scan: %w", err)
		}
		rec.ProviderMessageID = providerID.String
		rec.SenderDisplayName = sender.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message history: %w", err)
	}
	return out, nil
}
