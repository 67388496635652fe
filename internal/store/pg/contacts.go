package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadpulsehq/leadpulse/internal/store"
)

// PGContactStore implements store.ContactStore backed by Postgres.
type PGContactStore struct {
	db *sql.DB
}

func NewPGContactStore(db *sql.DB) *PGContactStore {
	return &PGContactStore{db: db}
}

// FindOrCreate inserts the contact if absent and returns the winning row,
// whichever delivery created it.
func (c *PGContactStore) FindOrCreate(ctx context.Context, orgID, externalID, displayName string) (*store.Contact, error) {
	contact := &store.Contact{OrgID: orgID, ExternalID: externalID}
	err := c.db.QueryRowContext(ctx,
		`WITH inserted AS (
		   INSERT INTO contacts (id, org_id, external_id, display_name, created_at)
		   VALUES ($1, $2, $3, $4, now())
		   ON CONFLICT (org_id, external_id) DO NOTHING
		   RETURNING id, display_name, created_at
		 )
		 SELECT id, display_name, created_at FROM inserted
		 UNION ALL
		 SELECT id, display_name, created_at FROM contacts
		 WHERE org_id = $2 AND external_id = $3 AND NOT EXISTS (SELECT 1 FROM inserted)`,
		uuid.Must(uuid.NewV7()), orgID, externalID, displayName,
	).Scan(&contact.ID, &contact.DisplayName, &contact.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("contact find-or-create: %w", err)
	}
	return contact, nil
}
