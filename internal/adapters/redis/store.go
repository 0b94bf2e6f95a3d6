package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ravituringworks/agency/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// farFuture is the index score of entries without a TTL (2100-01-01).
const farFuture = 4102444800

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration of stored entries. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// Store keeps JSON documents in Redis under prefix+id, indexed by a sorted
// set scored with their expiry. It backs both the ledger and conversation stores.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

func newStore(client *backend.Client, prefix string, opts ...Option) *Store {
	s := &Store{client: client, prefix: prefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// indexKey sits beside the document namespace rather than inside it, so no
// ID can address it when the prefix ends with ":".
func (s *Store) indexKey() string {
	return strings.TrimSuffix(s.prefix, ":") + "#index"
}

func (s *Store) put(ctx context.Context, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(id), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// get decodes the document into v, returning notFound when the key is missing.
func (s *Store) get(ctx context.Context, id string, v any, notFound error) error {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return notFound
		}
		return fmt.Errorf("failed to get from redis: %w", err)
	}
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}
	return nil
}

// Delete removes an entry and its index member.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// List prunes expired index members, then returns the remaining IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired entries: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// LedgerStore implements ports.LedgerStore on Redis.
type LedgerStore struct {
	*Store
}

// NewLedgerStore creates a ledger store over an existing client.
// Keys default to "agency:ledger:<id>".
func NewLedgerStore(client *backend.Client, opts ...Option) *LedgerStore {
	return &LedgerStore{Store: newStore(client, "agency:ledger:", opts...)}
}

// Save persists the ledger.
func (s *LedgerStore) Save(ctx context.Context, ledger *domain.TransactionLedger) error {
	return s.put(ctx, ledger.ID, ledger)
}

// Load retrieves a ledger.
func (s *LedgerStore) Load(ctx context.Context, id string) (*domain.TransactionLedger, error) {
	var ledger domain.TransactionLedger
	if err := s.get(ctx, id, &ledger, domain.ErrLedgerNotFound); err != nil {
		return nil, err
	}
	return &ledger, nil
}

// ConversationStore implements ports.ConversationStore on Redis.
type ConversationStore struct {
	*Store
}

// NewConversationStore creates a conversation store over an existing client.
// Keys default to "agency:session:<id>".
func NewConversationStore(client *backend.Client, opts ...Option) *ConversationStore {
	return &ConversationStore{Store: newStore(client, "agency:session:", opts...)}
}

// Save replaces the history of a session.
func (s *ConversationStore) Save(ctx context.Context, sessionID string, messages []domain.Message) error {
	return s.put(ctx, sessionID, messages)
}

// Load retrieves the history of a session.
func (s *ConversationStore) Load(ctx context.Context, sessionID string) ([]domain.Message, error) {
	var messages []domain.Message
	if err := s.get(ctx, sessionID, &messages, domain.ErrSessionNotFound); err != nil {
		return nil, err
	}
	return messages, nil
}

// NewClient builds a go-redis client for the given address.
func NewClient(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}
