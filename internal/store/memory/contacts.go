package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadpulsehq/leadpulse/internal/store"
)

// ContactStore keeps contacts in-process, keyed by (orgID, externalID).
type ContactStore struct {
	mu       sync.Mutex
	contacts map[string]*store.Contact
}

// NewContactStore creates an empty contact store.
func NewContactStore() *ContactStore {
	return &ContactStore{contacts: make(map[string]*store.Contact)}
}

// FindOrCreate returns the existing contact or creates one. Idempotent per
// (orgID, externalID).
func (c *ContactStore) FindOrCreate(ctx context.Context, orgID, externalID, displayName string) (*store.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := orgID + "|" + externalID
	if existing, ok := c.contacts[key]; ok {
		if displayName != "" && existing.DisplayName == "" {
			existing.DisplayName = displayName
		}
		cp := *existing
		return &cp, nil
	}

	contact := &store.Contact{
		ID:          uuid.Must(uuid.NewV7()).String(),
		OrgID:       orgID,
		ExternalID:  externalID,
		DisplayName: displayName,
		CreatedAt:   time.Now(),
	}
	c.contacts[key] = contact
	cp := *contact
	return &cp, nil
}
