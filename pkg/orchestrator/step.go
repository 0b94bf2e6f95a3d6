package orchestrator

import (
	"context"

	"github.com/ravituringworks/agency/pkg/domain"
)

// Step is one unit of orchestration logic.
//
// Execute may mutate the context it is given but must not perform external
// I/O; anything that talks to the outside world is requested through a pausing
// decision and handled by the caller.
type Step interface {
	Name() string
	Execute(ctx context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error)
}

// StepFunc adapts a plain function to the Step interface.
type StepFunc func(ctx context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error)

type funcStep struct {
	name string
	fn   StepFunc
}

// NewStep wraps fn as a named Step.
func NewStep(name string, fn StepFunc) Step {
	return &funcStep{name: name, fn: fn}
}

func (s *funcStep) Name() string { return s.name }

func (s *funcStep) Execute(ctx context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error) {
	return s.fn(ctx, ec)
}
