package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/ravituringworks/agency/pkg/domain"
)

// ConversationStore implements ports.ConversationStore in memory.
// Safe for concurrent use.
type ConversationStore struct {
	data map[string][]domain.Message
	mu   sync.RWMutex
}

// NewConversationStore creates a new in-memory conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		data: make(map[string][]domain.Message),
	}
}

// Save replaces the history of a session.
func (s *ConversationStore) Save(_ context.Context, sessionID string, messages []domain.Message) error {
	copied := slices.Clone(messages)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load returns a copy of the history.
func (s *ConversationStore) Load(_ context.Context, sessionID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return slices.Clone(messages), nil
}

// Delete removes the session.
func (s *ConversationStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns active sessions.
func (s *ConversationStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}
