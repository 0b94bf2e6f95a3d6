package saga

import (
	"context"

	"github.com/google/uuid"
	"github.com/ravituringworks/agency/pkg/domain"
)

// DefaultMaxRetries is the retry budget of a new step.
const DefaultMaxRetries = 3

// Action is the forward half of a step. The returned value is kept in the
// ledger and handed to the compensation if a later step fails.
type Action func(ctx context.Context, ec *domain.ExecutionContext) (any, error)

// Compensation undoes a completed Action given its result.
type Compensation func(ctx context.Context, ec *domain.ExecutionContext, result any) error

// TransactionStep is a forward action paired with its compensation.
type TransactionStep struct {
	ID           string
	Name         string
	Action       Action
	Compensation Compensation
	Retryable    bool
	MaxRetries   int
}

// NewStep builds a retryable step with DefaultMaxRetries. A nil compensation
// means the step has nothing to undo.
func NewStep(name string, action Action, compensation Compensation) TransactionStep {
	if compensation == nil {
		compensation = func(context.Context, *domain.ExecutionContext, any) error { return nil }
	}
	return TransactionStep{
		ID:           uuid.NewString(),
		Name:         name,
		Action:       action,
		Compensation: compensation,
		Retryable:    true,
		MaxRetries:   DefaultMaxRetries,
	}
}

// WithRetries returns a copy of the step with a different retry budget.
func (s TransactionStep) WithRetries(n int) TransactionStep {
	if n < 0 {
		n = 0
	}
	s.MaxRetries = n
	return s
}

// NonRetryable returns a copy of the step that is attempted exactly once.
func (s TransactionStep) NonRetryable() TransactionStep {
	s.Retryable = false
	return s
}

// Attempts is the number of times the action may run.
func (s TransactionStep) Attempts() int {
	if !s.Retryable {
		return 1
	}
	return 1 + s.MaxRetries
}
