package chromem_test

import (
	"context"
	"testing"
	"time"

	"github.com/ravituringworks/agency/pkg/adapters/chromem"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newStore(t *testing.T, opts ...chromem.Option) *chromem.Store {
	t.Helper()
	s, err := chromem.NewInMemory("test", chromem.HashEmbedding(1024), opts...)
	require.NoError(t, err)
	return s
}

func TestStore_SearchEmpty(t *testing.T) {
	s := newStore(t)

	results, err := s.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_StoreAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id, err := s.Store(ctx, domain.MemoryEntry{
		Content:   "pizza margherita is my favourite pizza",
		Metadata:  map[string]string{"type": "conversation"},
		CreatedAt: created,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = s.Store(ctx, domain.MemoryEntry{ID: "weather", Content: "snow storm tomorrow morning"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count())

	// The limit is capped at the collection size.
	results, err := s.Search(ctx, "which pizza is my favourite", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	top := results[0]
	assert.Equal(t, id, top.Entry.ID)
	assert.Equal(t, map[string]string{"type": "conversation"}, top.Entry.Metadata)
	assert.True(t, top.Entry.CreatedAt.Equal(created))
	assert.Greater(t, top.Similarity, results[1].Similarity)
}

func TestStore_MinSimilarity(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, chromem.WithMinSimilarity(0.5))

	_, err := s.Store(ctx, domain.MemoryEntry{ID: "a", Content: "green tea"})
	require.NoError(t, err)
	_, err = s.Store(ctx, domain.MemoryEntry{ID: "b", Content: "quarterly revenue report"})
	require.NoError(t, err)

	results, err := s.Search(ctx, "green tea", 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Entry.ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 0.001)
}

func TestStore_RequiresEmbedding(t *testing.T) {
	_, err := chromem.NewInMemory("x", nil)
	assert.Error(t, err)
}

func TestStore_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	s := newStore(t, chromem.WithTracer(tp.Tracer("test")))

	_, err := s.Store(context.Background(), domain.MemoryEntry{Content: "hello"})
	require.NoError(t, err)
	_, err = s.Search(context.Background(), "hello", 1)
	require.NoError(t, err)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"chromem.Store", "chromem.Search"}, names)
}

func TestHashEmbedding_Normalized(t *testing.T) {
	embed := chromem.HashEmbedding(0)

	vec, err := embed(context.Background(), "Hello, hello world")
	require.NoError(t, err)
	assert.Len(t, vec, chromem.DefaultDimensions)

	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	assert.InDelta(t, 1.0, sum, 0.0001)

	empty, err := embed(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, float32(1), empty[0])
}
