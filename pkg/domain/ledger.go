package domain

import (
	"fmt"
	"time"
)

// StepPhase is a position in the per-step saga state machine.
type StepPhase string

const (
	PhasePending            StepPhase = "pending"
	PhaseExecuting          StepPhase = "executing"
	PhaseCompleted          StepPhase = "completed"
	PhaseFailed             StepPhase = "failed"
	PhaseCompensating       StepPhase = "compensating"
	PhaseCompensated        StepPhase = "compensated"
	PhaseCompensationFailed StepPhase = "compensation_failed"
)

// transitions lists the allowed moves. Executing -> Executing is a retry attempt.
var transitions = map[StepPhase][]StepPhase{
	PhasePending:      {PhaseExecuting},
	PhaseExecuting:    {PhaseExecuting, PhaseCompleted, PhaseFailed},
	PhaseCompleted:    {PhaseCompensating},
	PhaseCompensating: {PhaseCompensated, PhaseCompensationFailed},
}

// CanTransition reports whether a step may move from one phase to another.
func CanTransition(from, to StepPhase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// StepState is the phase of a saga step plus the failure reason, if any.
type StepState struct {
	Phase  StepPhase `json:"phase" yaml:"phase"`
	Reason string    `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// StepRef names a saga step in declaration order.
type StepRef struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// TransactionLedger is the per-run bookkeeping of a saga.
type TransactionLedger struct {
	ID          string               `json:"id" yaml:"id"`
	Name        string               `json:"name" yaml:"name"`
	StartedAt   time.Time            `json:"started_at" yaml:"started_at"`
	EndedAt     *time.Time           `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Outcome     string               `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Steps       []StepRef            `json:"steps" yaml:"steps"`
	StepStates  map[string]StepState `json:"step_states" yaml:"step_states"`
	StepResults map[string]any       `json:"step_results" yaml:"step_results"`
	RetryCounts map[string]int       `json:"retry_counts" yaml:"retry_counts"`
	Context     *ExecutionContext    `json:"context" yaml:"context"`
}

// NewTransactionLedger creates an empty ledger around the given context.
func NewTransactionLedger(id, name string, ec *ExecutionContext) *TransactionLedger {
	if ec == nil {
		ec = NewExecutionContext(DefaultMaxSteps)
	}
	return &TransactionLedger{
		ID:          id,
		Name:        name,
		StartedAt:   time.Now().UTC(),
		StepStates:  make(map[string]StepState),
		StepResults: make(map[string]any),
		RetryCounts: make(map[string]int),
		Context:     ec,
	}
}

// State returns the state of a step; unknown steps are Pending.
func (l *TransactionLedger) State(stepID string) StepState {
	if s, ok := l.StepStates[stepID]; ok {
		return s
	}
	return StepState{Phase: PhasePending}
}

// Transition moves a step to a new phase, rejecting moves the state machine forbids.
func (l *TransactionLedger) Transition(stepID string, to StepPhase, reason string) error {
	from := l.State(stepID).Phase
	if !CanTransition(from, to) {
		return fmt.Errorf("saga step %s: illegal transition %s -> %s", stepID, from, to)
	}
	l.StepStates[stepID] = StepState{Phase: to, Reason: reason}
	return nil
}

// IsCompleted reports whether the step finished its forward action.
func (l *TransactionLedger) IsCompleted(stepID string) bool {
	return l.State(stepID).Phase == PhaseCompleted
}

// IncrementRetry bumps the retry counter of a step and returns the new value.
func (l *TransactionLedger) IncrementRetry(stepID string) int {
	l.RetryCounts[stepID]++
	return l.RetryCounts[stepID]
}

// Finish stamps the end time and outcome.
func (l *TransactionLedger) Finish(outcome string) {
	now := time.Now().UTC()
	l.EndedAt = &now
	l.Outcome = outcome
}

// Duration is the wall time of a finished ledger, or the time elapsed so far.
func (l *TransactionLedger) Duration() time.Duration {
	if l.EndedAt == nil {
		return time.Since(l.StartedAt)
	}
	return l.EndedAt.Sub(l.StartedAt)
}

// StepName resolves a step ID to its declared name.
func (l *TransactionLedger) StepName(stepID string) string {
	for _, s := range l.Steps {
		if s.ID == stepID {
			return s.Name
		}
	}
	return stepID
}

// Clone returns a deep copy. Step results are copied shallowly.
func (l *TransactionLedger) Clone() *TransactionLedger {
	if l == nil {
		return nil
	}
	out := *l
	if l.EndedAt != nil {
		t := *l.EndedAt
		out.EndedAt = &t
	}
	out.Steps = append([]StepRef(nil), l.Steps...)
	out.StepStates = make(map[string]StepState, len(l.StepStates))
	for k, v := range l.StepStates {
		out.StepStates[k] = v
	}
	out.StepResults = make(map[string]any, len(l.StepResults))
	for k, v := range l.StepResults {
		out.StepResults[k] = v
	}
	out.RetryCounts = make(map[string]int, len(l.RetryCounts))
	for k, v := range l.RetryCounts {
		out.RetryCounts[k] = v
	}
	out.Context = l.Context.Clone()
	return &out
}

// SagaAlert is raised when compensation fails and the system could not
// restore its prior state.
type SagaAlert struct {
	LedgerID          string    `json:"ledger_id"`
	Saga              string    `json:"saga"`
	FailedStep        string    `json:"failed_step"`
	FailureReason     string    `json:"failure_reason,omitempty"`
	FailedAtStep      string    `json:"failed_at_step"`
	CompensationError string    `json:"compensation_error"`
	CompensatedSteps  []string  `json:"compensated_steps,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
