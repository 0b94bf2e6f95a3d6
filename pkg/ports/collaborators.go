package ports

import (
	"context"

	"github.com/ravituringworks/agency/pkg/domain"
)

// ToolExecutor runs a single tool call on behalf of the host.
type ToolExecutor interface {
	// Tools lists the tool names this executor can serve.
	Tools(ctx context.Context) ([]string, error)

	// Execute runs the call. Returns domain.ErrUnknownTool for names it does not serve.
	Execute(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error)
}

// MemoryStore stores and searches conversation memories.
type MemoryStore interface {
	// Search returns up to limit entries ranked by similarity to the query.
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)

	// Store saves an entry; an empty ID is assigned by the store.
	Store(ctx context.Context, entry domain.MemoryEntry) (string, error)
}

// TextGenerator produces assistant text from a conversation.
type TextGenerator interface {
	Generate(ctx context.Context, messages []domain.Message) (string, error)
}

// Alerter notifies operators about sagas that could not be rolled back.
type Alerter interface {
	Alert(ctx context.Context, alert domain.SagaAlert) error
}
