package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ravituringworks/agency/internal/logging"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed holder keeps a distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates conversation access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.ConversationStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new session Manager over the given store.
func NewManager(store ports.ConversationStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// ActiveLocks reports how many sessions currently hold a local lock entry.
func (m *Manager) ActiveLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Load retrieves an existing history.
func (m *Manager) Load(ctx context.Context, sessionID string) ([]domain.Message, error) {
	var history []domain.Message
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		history, err = m.store.Load(ctx, sessionID)
		return err
	})
	return history, err
}

// LoadOrStart loads a history, or starts one seeded with the system prompt.
// An empty prompt starts an empty history.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID, systemPrompt string) ([]domain.Message, error) {
	var history []domain.Message
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		history, err = m.loadOrStart(ctx, sessionID, systemPrompt)
		return err
	})
	return history, err
}

func (m *Manager) loadOrStart(ctx context.Context, sessionID, systemPrompt string) ([]domain.Message, error) {
	history, err := m.store.Load(ctx, sessionID)
	if err == nil {
		return history, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to check session existence: %w", err)
	}

	history = []domain.Message{}
	if systemPrompt != "" {
		history = append(history, domain.SystemMessage(systemPrompt))
	}
	if err := m.store.Save(ctx, sessionID, history); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	m.logger.Debug("session started", "session_id", sessionID)
	return history, nil
}

// Turn runs fn over the history of sessionID while holding its lock and
// saves whatever fn returns. The history is started with systemPrompt if new.
func (m *Manager) Turn(ctx context.Context, sessionID, systemPrompt string, fn func(context.Context, []domain.Message) ([]domain.Message, error)) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		history, err := m.loadOrStart(ctx, sessionID, systemPrompt)
		if err != nil {
			return err
		}
		updated, err := fn(ctx, history)
		if err != nil {
			return err
		}
		return m.store.Save(ctx, sessionID, updated)
	})
}

// Save persists a history.
func (m *Manager) Save(ctx context.Context, sessionID string, history []domain.Message) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, history)
	})
}

// Clear drops every message except a leading system message.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		history, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		cleared := []domain.Message{}
		if len(history) > 0 && history[0].Role == domain.RoleSystem {
			cleared = append(cleared, history[0])
		}
		return m.store.Save(ctx, sessionID, cleared)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying conversation store.
func (m *Manager) Store() ports.ConversationStore {
	return m.store
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Limit trims history to the last max messages, keeping a leading system
// message in addition to them. max <= 0 disables trimming.
func Limit(history []domain.Message, max int) []domain.Message {
	if max <= 0 || len(history) <= max {
		return history
	}
	keepFrom := len(history) - max

	trimmed := make([]domain.Message, 0, max+1)
	if history[0].Role == domain.RoleSystem {
		trimmed = append(trimmed, history[0])
	}
	return append(trimmed, history[keepFrom:]...)
}
