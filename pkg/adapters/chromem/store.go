// Package chromem implements ports.MemoryStore on an embedded chromem-go
// vector database.
package chromem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/ravituringworks/agency/internal/logging"
	"github.com/ravituringworks/agency/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ravituringworks/agency/pkg/adapters/chromem"

// DefaultCollection is the collection conversation memories are written to.
const DefaultCollection = "agency-memories"

// Reserved metadata keys holding entry timestamps.
const (
	createdAtKey = "_created_at"
	updatedAtKey = "_updated_at"
)

// Store is a MemoryStore over a single chromem collection.
type Store struct {
	collection    *chromem.Collection
	minSimilarity float32
	logger        *slog.Logger
	tracer        trace.Tracer
}

// Option configures the Store.
type Option func(*Store)

// WithMinSimilarity drops search results scoring below min.
func WithMinSimilarity(min float32) Option {
	return func(s *Store) {
		s.minSimilarity = min
	}
}

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithTracer overrides the global otel tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		s.tracer = tracer
	}
}

// New opens (or creates) the named collection in db. The embedding function
// must always be passed: chromem falls back to OpenAI when it is nil.
func New(db *chromem.DB, name string, embed chromem.EmbeddingFunc, opts ...Option) (*Store, error) {
	if embed == nil {
		return nil, fmt.Errorf("chromem: embedding function is required")
	}
	if name == "" {
		name = DefaultCollection
	}
	collection, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", name, err)
	}

	s := &Store{collection: collection}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s, nil
}

// NewInMemory creates a Store backed by a volatile database.
func NewInMemory(name string, embed chromem.EmbeddingFunc, opts ...Option) (*Store, error) {
	return New(chromem.NewDB(), name, embed, opts...)
}

// NewPersistent creates a Store whose database is written under path.
func NewPersistent(path string, compress bool, name string, embed chromem.EmbeddingFunc, opts ...Option) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem db at %s: %w", path, err)
	}
	return New(db, name, embed, opts...)
}

// Count returns the number of stored memories.
func (s *Store) Count() int {
	return s.collection.Count()
}

// Store embeds and saves entry. An entry carrying an embedding is stored as is.
func (s *Store) Store(ctx context.Context, entry domain.MemoryEntry) (string, error) {
	ctx, span := s.tracer.Start(ctx, "chromem.Store")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.CreatedAt
	}

	metadata := make(map[string]string, len(entry.Metadata)+2)
	for k, v := range entry.Metadata {
		metadata[k] = v
	}
	metadata[createdAtKey] = entry.CreatedAt.Format(time.RFC3339Nano)
	metadata[updatedAtKey] = entry.UpdatedAt.Format(time.RFC3339Nano)

	doc := chromem.Document{
		ID:        entry.ID,
		Content:   entry.Content,
		Metadata:  metadata,
		Embedding: entry.Embedding,
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add document failed")
		return "", fmt.Errorf("failed to store memory: %w", err)
	}

	span.SetAttributes(attribute.String("memory_id", entry.ID))
	s.logger.DebugContext(ctx, "memory stored", "memory_id", entry.ID)
	return entry.ID, nil
}

// Search returns up to limit memories ranked by cosine similarity to query.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "chromem.Search", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	// chromem rejects nResults above the document count.
	count := s.collection.Count()
	if count == 0 || limit <= 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	found, err := s.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("memory search failed: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(found))
	for _, r := range found {
		if r.Similarity < s.minSimilarity {
			continue
		}
		results = append(results, domain.SearchResult{
			Entry:      toEntry(r),
			Similarity: r.Similarity,
		})
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

func toEntry(r chromem.Result) domain.MemoryEntry {
	entry := domain.MemoryEntry{
		ID:        r.ID,
		Content:   r.Content,
		Embedding: r.Embedding,
	}
	for k, v := range r.Metadata {
		switch k {
		case createdAtKey:
			entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, v)
		case updatedAtKey:
			entry.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
		default:
			if entry.Metadata == nil {
				entry.Metadata = make(map[string]string)
			}
			entry.Metadata[k] = v
		}
	}
	return entry
}
