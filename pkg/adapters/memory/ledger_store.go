package memory

import (
	"context"
	"sync"

	"github.com/ravituringworks/agency/pkg/domain"
)

// LedgerStore implements ports.LedgerStore in memory.
// Safe for concurrent use.
type LedgerStore struct {
	data map[string]*domain.TransactionLedger
	mu   sync.RWMutex
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		data: make(map[string]*domain.TransactionLedger),
	}
}

// Save stores a copy of the ledger.
func (s *LedgerStore) Save(_ context.Context, ledger *domain.TransactionLedger) error {
	copied := ledger.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[ledger.ID] = copied
	return nil
}

// Load returns a copy so callers can't mutate the stored ledger through the pointer.
func (s *LedgerStore) Load(_ context.Context, id string) (*domain.TransactionLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger, ok := s.data[id]
	if !ok {
		return nil, domain.ErrLedgerNotFound
	}
	return ledger.Clone(), nil
}

// Delete removes the ledger.
func (s *LedgerStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns stored ledger IDs.
func (s *LedgerStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
