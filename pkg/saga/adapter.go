package saga

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ravituringworks/agency/pkg/domain"
)

// StepAdapter runs a whole saga as a single orchestrator step.
//
// Each Execute builds a fresh ledger over a copy of the incoming context and
// runs the coordinator. On success the JSON-encoded result is written to
// metadata["saga_result"] and the round continues. Rollbacks surface as
// *CompensatedError or *CompensationFailedError and fail the run; retries
// already happened inside the coordinator.
type StepAdapter struct {
	coordinator *Coordinator
	onLedger    func(*domain.TransactionLedger)
}

// AdapterOption configures a StepAdapter.
type AdapterOption func(*StepAdapter)

// WithLedgerObserver is called with every finished ledger.
func WithLedgerObserver(fn func(*domain.TransactionLedger)) AdapterOption {
	return func(a *StepAdapter) {
		a.onLedger = fn
	}
}

// NewStepAdapter wraps a coordinator as a step.
func NewStepAdapter(c *Coordinator, opts ...AdapterOption) *StepAdapter {
	a := &StepAdapter{coordinator: c}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the saga name.
func (a *StepAdapter) Name() string { return a.coordinator.Name() }

// Coordinator returns the wrapped coordinator.
func (a *StepAdapter) Coordinator() *Coordinator { return a.coordinator }

func (a *StepAdapter) Execute(ctx context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error) {
	ledger := a.coordinator.NewLedger(ec.Clone())

	res, err := a.coordinator.Run(ctx, ledger)
	if a.onLedger != nil {
		a.onLedger(ledger)
	}
	if err != nil {
		return domain.StepDecision{}, fmt.Errorf("saga %q: %w", a.Name(), err)
	}

	switch res.Outcome {
	case OutcomeCompleted:
		encoded, err := json.Marshal(res.Value)
		if err != nil {
			return domain.StepDecision{}, fmt.Errorf("saga %q: encode result: %w", a.Name(), err)
		}
		ec.SetMeta(domain.MetaSagaResult, string(encoded))
		return domain.Continue(), nil
	case OutcomeCompensated:
		return domain.StepDecision{}, &CompensatedError{Saga: a.Name(), Result: res}
	default:
		return domain.StepDecision{}, &CompensationFailedError{Saga: a.Name(), Result: res}
	}
}
