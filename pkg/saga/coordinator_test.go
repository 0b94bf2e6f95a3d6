package saga_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ravituringworks/agency/pkg/adapters/memory"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journal records the order in which actions and compensations ran.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func okStep(j *journal, name string, compErr error) saga.TransactionStep {
	return saga.NewStep(name,
		func(context.Context, *domain.ExecutionContext) (any, error) {
			j.add("do:" + name)
			return name + "-result", nil
		},
		func(_ context.Context, _ *domain.ExecutionContext, result any) error {
			j.add("undo:" + name + ":" + result.(string))
			return compErr
		},
	)
}

func failingStep(j *journal, name string) saga.TransactionStep {
	return saga.NewStep(name,
		func(context.Context, *domain.ExecutionContext) (any, error) {
			j.add("do:" + name)
			return nil, errors.New(name + " exploded")
		},
		func(context.Context, *domain.ExecutionContext, any) error {
			j.add("undo:" + name)
			return nil
		},
	).NonRetryable()
}

type recordingAlerter struct {
	alerts []domain.SagaAlert
}

func (r *recordingAlerter) Alert(_ context.Context, a domain.SagaAlert) error {
	r.alerts = append(r.alerts, a)
	return nil
}

func run(t *testing.T, c *saga.Coordinator) (saga.Result, *domain.TransactionLedger) {
	t.Helper()
	ledger := c.NewLedger(domain.NewExecutionContext(3))
	res, err := c.Run(context.Background(), ledger)
	require.NoError(t, err)
	return res, ledger
}

func TestCoordinator_AllStepsComplete(t *testing.T) {
	j := &journal{}
	c := saga.NewCoordinator("order", []saga.TransactionStep{okStep(j, "A", nil), okStep(j, "B", nil)})

	res, ledger := run(t, c)

	assert.Equal(t, saga.OutcomeCompleted, res.Outcome)
	assert.Equal(t, "B-result", res.Value, "value of the last declared step")
	assert.Equal(t, []string{"do:A", "do:B"}, j.list())
	for _, s := range c.Steps() {
		assert.Equal(t, domain.PhaseCompleted, ledger.State(s.ID).Phase)
	}
	require.NotNil(t, ledger.EndedAt)
	assert.Equal(t, "completed", ledger.Outcome)
}

func TestCoordinator_NoSteps(t *testing.T) {
	res, _ := run(t, saga.NewCoordinator("empty", nil))
	assert.Equal(t, saga.OutcomeCompleted, res.Outcome)
	assert.Equal(t, map[string]any{}, res.Value)
}

// Scenario: [A, B, C] where C always fails. B then A are compensated, in
// exactly that order, and C's own compensation never runs.
func TestCoordinator_CompensatesInReverse(t *testing.T) {
	j := &journal{}
	steps := []saga.TransactionStep{okStep(j, "A", nil), okStep(j, "B", nil), failingStep(j, "C")}
	c := saga.NewCoordinator("order", steps)

	res, ledger := run(t, c)

	require.Equal(t, saga.OutcomeCompensated, res.Outcome)
	assert.Equal(t, "C", res.FailedStep)
	assert.Equal(t, "C exploded", res.FailureReason)
	assert.Equal(t, []string{"B", "A"}, res.CompensatedSteps)
	assert.Equal(t, []string{"do:A", "do:B", "do:C", "undo:B:B-result", "undo:A:A-result"}, j.list())

	assert.Equal(t, domain.PhaseCompensated, ledger.State(steps[0].ID).Phase)
	assert.Equal(t, domain.PhaseCompensated, ledger.State(steps[1].ID).Phase)
	failed := ledger.State(steps[2].ID)
	assert.Equal(t, domain.PhaseFailed, failed.Phase)
	assert.Equal(t, "C exploded", failed.Reason)
}

// Scenario: [A, B, C] where C fails and B's compensation fails. The rollback
// stops at B and A's compensation is never invoked.
func TestCoordinator_CompensationShortCircuits(t *testing.T) {
	j := &journal{}
	alerter := &recordingAlerter{}
	steps := []saga.TransactionStep{
		okStep(j, "A", nil),
		okStep(j, "B", errors.New("refund api down")),
		failingStep(j, "C"),
	}
	c := saga.NewCoordinator("order", steps, saga.WithAlerter(alerter))

	res, ledger := run(t, c)

	require.Equal(t, saga.OutcomeCompensationFailed, res.Outcome)
	assert.Equal(t, "C", res.FailedStep)
	assert.Equal(t, "B", res.FailedAtStep)
	assert.Equal(t, "refund api down", res.CompensationError)
	assert.NotContains(t, j.list(), "undo:A:A-result")
	assert.Equal(t, domain.PhaseCompleted, ledger.State(steps[0].ID).Phase, "A is left untouched")
	assert.Equal(t, domain.PhaseCompensationFailed, ledger.State(steps[1].ID).Phase)

	require.Len(t, alerter.alerts, 1)
	assert.Equal(t, ledger.ID, alerter.alerts[0].LedgerID)
	assert.Equal(t, "B", alerter.alerts[0].FailedAtStep)
}

// Scenario: retryable with two retries, fails twice then succeeds.
func TestCoordinator_RetryThenSucceed(t *testing.T) {
	attempts := 0
	step := saga.NewStep("flaky",
		func(context.Context, *domain.ExecutionContext) (any, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("transient")
			}
			return "third", nil
		}, nil).WithRetries(2)
	c := saga.NewCoordinator("retry", []saga.TransactionStep{step}, saga.WithBaseDelay(time.Millisecond))

	res, ledger := run(t, c)

	require.Equal(t, saga.OutcomeCompleted, res.Outcome)
	assert.Equal(t, "third", res.Value)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, ledger.RetryCounts[step.ID])
}

func TestCoordinator_RetriesExhausted(t *testing.T) {
	attempts := 0
	step := saga.NewStep("flaky",
		func(context.Context, *domain.ExecutionContext) (any, error) {
			attempts++
			return nil, errors.New("still down")
		}, nil).WithRetries(2)
	c := saga.NewCoordinator("retry", []saga.TransactionStep{step}, saga.WithBaseDelay(time.Millisecond))

	res, ledger := run(t, c)

	assert.Equal(t, saga.OutcomeCompensated, res.Outcome)
	assert.Empty(t, res.CompensatedSteps)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, ledger.RetryCounts[step.ID])
}

func TestCoordinator_NonRetryableRunsOnce(t *testing.T) {
	j := &journal{}
	step := failingStep(j, "once")
	res, ledger := run(t, saga.NewCoordinator("single", []saga.TransactionStep{step}))

	assert.Equal(t, saga.OutcomeCompensated, res.Outcome)
	assert.Equal(t, []string{"do:once"}, j.list())
	assert.Zero(t, ledger.RetryCounts[step.ID])
}

func TestCoordinator_CancelDuringBackoffStillCompensates(t *testing.T) {
	j := &journal{}
	ctx, cancel := context.WithCancel(context.Background())
	failing := saga.NewStep("slow",
		func(context.Context, *domain.ExecutionContext) (any, error) {
			cancel()
			return nil, errors.New("nope")
		}, nil)
	c := saga.NewCoordinator("cancel", []saga.TransactionStep{okStep(j, "A", nil), failing}, saga.WithBaseDelay(time.Hour))

	res, err := c.Run(ctx, c.NewLedger(domain.NewExecutionContext(1)))
	require.NoError(t, err)
	assert.Equal(t, saga.OutcomeCompensated, res.Outcome)
	assert.Contains(t, res.FailureReason, "context canceled")
	assert.Equal(t, []string{"A"}, res.CompensatedSteps)
}

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, saga.BackoffDelay(base, 1))
	assert.Equal(t, 200*time.Millisecond, saga.BackoffDelay(base, 2))
	assert.Equal(t, 400*time.Millisecond, saga.BackoffDelay(base, 3))
	assert.Equal(t, 100*time.Millisecond, saga.BackoffDelay(base, 0))

	// Large attempt counts saturate instead of wrapping around.
	for _, attempt := range []int{13, 37, 64, 1000} {
		assert.Equal(t, saga.MaxBackoffDelay, saga.BackoffDelay(base, attempt), "attempt %d", attempt)
	}
	assert.Equal(t, saga.MaxBackoffDelay, saga.BackoffDelay(time.Hour, 1))
	assert.Zero(t, saga.BackoffDelay(0, 5))
}

func TestCoordinator_PersistsLedger(t *testing.T) {
	j := &journal{}
	store := memory.NewLedgerStore()
	c := saga.NewCoordinator("persisted", []saga.TransactionStep{okStep(j, "A", nil), failingStep(j, "B")}, saga.WithStore(store))

	_, ledger := run(t, c)

	saved, err := store.Load(context.Background(), ledger.ID)
	require.NoError(t, err)
	assert.Equal(t, "compensated", saved.Outcome)
	assert.Equal(t, "persisted", saved.Name)
	assert.NotNil(t, saved.EndedAt)
}

func TestCoordinator_Hooks(t *testing.T) {
	j := &journal{}
	var phases []string
	var finished *domain.SagaEvent
	hooks := domain.LifecycleHooks{
		OnSagaStep:     func(_ context.Context, e *domain.SagaEvent) { phases = append(phases, e.Step+":"+e.Phase) },
		OnSagaFinished: func(_ context.Context, e *domain.SagaEvent) { finished = e },
	}
	c := saga.NewCoordinator("hooks", []saga.TransactionStep{okStep(j, "A", nil), failingStep(j, "B")}, saga.WithHooks(hooks))

	run(t, c)

	assert.Equal(t, []string{
		"A:executing", "A:completed",
		"B:executing", "B:failed",
		"A:compensating", "A:compensated",
	}, phases)
	require.NotNil(t, finished)
	assert.Equal(t, "compensated", finished.Outcome)
	assert.Equal(t, "B", finished.Step)
}

func TestStepBuilders(t *testing.T) {
	s := saga.NewStep("x", nil, nil)
	assert.True(t, s.Retryable)
	assert.Equal(t, saga.DefaultMaxRetries, s.MaxRetries)
	assert.Equal(t, 4, s.Attempts())
	assert.NotEmpty(t, s.ID)

	assert.Equal(t, 1, s.NonRetryable().Attempts())
	assert.Equal(t, 6, s.WithRetries(5).Attempts())
	assert.True(t, s.Retryable, "builders return copies")
	assert.NoError(t, s.Compensation(context.Background(), nil, nil), "nil compensation is a no-op")
}
