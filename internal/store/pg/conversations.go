package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadpulsehq/leadpulse/internal/qualify"
	"github.com/leadpulsehq/leadpulse/internal/store"
)

// PGConversationStore implements store.ConversationStore backed by
// Postgres. The qualification snapshot lives in a jsonb column.
type PGConversationStore struct {
	db *sql.DB
}

func NewPGConversationStore(db *sql.DB) *PGConversationStore {
	return &PGConversationStore{db: db}
}

// FindOrCreate inserts the conversation at the initial stage if absent.
func (c *PGConversationStore) FindOrCreate(ctx context.Context, orgID, key, contactID string) (*store.Conversation, error) {
	initial, err := json.Marshal(qualify.NewMachine().Snapshot())
	if err != nil {
		return nil, fmt.Errorf("conversation find-or-create: %w", err)
	}

	var (
		conv      store.Conversation
		stateJSON []byte
	)
	err = c.db.QueryRowContext(ctx,
		`WITH inserted AS (
		   INSERT INTO conversations
		     (id, conversation_key, org_id, contact_id, status, state, last_activity_at, created_at)
		   VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		   ON CONFLICT (conversation_key) DO NOTHING
		   RETURNING id, org_id, contact_id, status, state, last_activity_at, created_at
		 )
		 SELECT id, org_id, contact_id, status, state, last_activity_at, created_at FROM inserted
		 UNION ALL
		 SELECT id, org_id, contact_id, status, state, last_activity_at, created_at FROM conversations
		 WHERE conversation_key = $2 AND NOT EXISTS (SELECT 1 FROM inserted)`,
		uuid.Must(uuid.NewV7()), key, orgID, contactID, store.StatusActive, initial,
	).Scan(&conv.ID, &conv.OrgID, &conv.ContactID, &conv.Status, &stateJSON,
		&conv.LastActivityAt, &conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("conversation find-or-create: %w", err)
	}

	conv.Key = key
	if err := json.Unmarshal(stateJSON, &conv.State); err != nil {
		return nil, fmt.Errorf("conversation state decode: %w", err)
	}
	return &conv, nil
}

func (c *PGConversationStore) Get(ctx context.Context, key string) (*store.Conversation, error) {
	var (
		conv      store.Conversation
		stateJSON []byte
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT id, org_id, contact_id, status, state, last_activity_at, created_at
		 FROM conversations WHERE conversation_key = $1`,
		key,
	).Scan(&conv.ID, &conv.OrgID, &conv.ContactID, &conv.Status, &stateJSON,
		&conv.LastActivityAt, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation get: %w", err)
	}

	conv.Key = key
	if err := json.Unmarshal(stateJSON, &conv.State); err != nil {
		return nil, fmt.Errorf("conversation state decode: %w", err)
	}
	return &conv, nil
}

// UpdateState replaces the qualification snapshot and bumps last-activity.
func (c *PGConversationStore) UpdateState(ctx context.Context, key string, snap qualify.Snapshot) error {
	stateJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("conversation state encode: %w", err)
	}
	res, err := c.db.ExecContext(ctx,
		`UPDATE conversations SET state = $2, last_activity_at = now()
		 WHERE conversation_key = $1`,
		key, stateJSON,
	)
	if err != nil {
		return fmt.Errorf("conversation update state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *PGConversationStore) SetStatus(ctx context.Context, key string, status store.ConversationStatus) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE conversations SET status = $2 WHERE conversation_key = $1`,
		key, status,
	)
	if err != nil {
		return fmt.Errorf("conversation set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
