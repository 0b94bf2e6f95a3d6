package ports

import (
	"context"

	"github.com/ravituringworks/agency/pkg/domain"
)

// LedgerStore defines the interface for persisting saga ledgers.
type LedgerStore interface {
	// Save persists the ledger under its ID, replacing any previous version.
	Save(ctx context.Context, ledger *domain.TransactionLedger) error

	// Load retrieves a ledger by ID.
	// Returns domain.ErrLedgerNotFound if the ledger does not exist.
	Load(ctx context.Context, id string) (*domain.TransactionLedger, error)

	// Delete removes a ledger. Deleting a missing ledger is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored ledgers.
	List(ctx context.Context) ([]string, error)
}

// ConversationStore defines the interface for persisting conversation history per session.
type ConversationStore interface {
	// Save replaces the history of a session.
	Save(ctx context.Context, sessionID string, messages []domain.Message) error

	// Load retrieves the history of a session.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) ([]domain.Message, error)

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// List returns all known session IDs.
	List(ctx context.Context) ([]string, error)
}
