package repository

import (
	"context"
	"sync"

	"github.com/noah-isme/crm-bridge/internal/models"
	appErrors "github.com/noah-isme/crm-bridge/pkg/errors"
)

// CredentialStore abstracts persistence of per-portal OAuth credentials
// so the backing store (in-memory, Redis, Postgres) is swappable and
// testable in isolation.
//
// CompareAndSwap replaces the stored record only when the current record's
// access token still matches old's; a nil old means "insert only if
// absent". It returns false, nil when the guard fails, which callers
// treat as "somebody else won the race".
type CredentialStore interface {
	Get(ctx context.Context, portalID string) (*models.CredentialRecord, error)
	Put(ctx context.Context, portalID string, record *models.CredentialRecord) error
	CompareAndSwap(ctx context.Context, portalID string, old, updated *models.CredentialRecord) (bool, error)
	Delete(ctx context.Context, portalID string) error
}

// MemoryCredentialStore keeps credentials in process memory. This is the
// default backing and is safe for concurrent use.
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	records map[string]models.CredentialRecord
}

// NewMemoryCredentialStore constructs an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{records: make(map[string]models.CredentialRecord)}
}

// Get returns a copy of the stored record or ErrNoCredential.
func (s *MemoryCredentialStore) Get(ctx context.Context, portalID string) (*models.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[portalID]
	if !ok {
		return nil, appErrors.ErrNoCredential
	}
	copied := record
	return &copied, nil
}

// Put stores the record unconditionally, replacing any existing one.
func (s *MemoryCredentialStore) Put(ctx context.Context, portalID string, record *models.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[portalID] = *record
	return nil
}

// CompareAndSwap implements the optimistic replacement described on the
// interface.
func (s *MemoryCredentialStore) CompareAndSwap(ctx context.Context, portalID string, old, updated *models.CredentialRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.records[portalID]
	if old == nil {
		if exists {
			return false, nil
		}
		s.records[portalID] = *updated
		return true, nil
	}
	if !exists || current.AccessToken != old.AccessToken {
		return false, nil
	}
	s.records[portalID] = *updated
	return true, nil
}

// Delete removes the record. Deleting an absent portal is not an error.
func (s *MemoryCredentialStore) Delete(ctx context.Context, portalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, portalID)
	return nil
}
