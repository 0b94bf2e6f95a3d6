package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// countingStep always continues and records how often it ran.
type countingStep struct {
	name  string
	calls int
}

func (s *countingStep) Name() string { return s.name }

func (s *countingStep) Execute(context.Context, *domain.ExecutionContext) (domain.StepDecision, error) {
	s.calls++
	return domain.Continue(), nil
}

func fixed(name string, d domain.StepDecision) orchestrator.Step {
	return orchestrator.NewStep(name, func(context.Context, *domain.ExecutionContext) (domain.StepDecision, error) {
		return d, nil
	})
}

func TestRun_AllContinueHitsBudget(t *testing.T) {
	a, b, c := &countingStep{name: "a"}, &countingStep{name: "b"}, &countingStep{name: "c"}
	orch := orchestrator.New([]orchestrator.Step{a, b, c})

	res, err := orch.Run(context.Background(), domain.NewExecutionContext(4))
	require.NoError(t, err)

	assert.True(t, res.Completed)
	assert.Equal(t, orchestrator.MaxStepsResponse, res.Response)
	assert.Equal(t, 4, res.StepsExecuted)
	assert.False(t, res.HasPendingActions())
	for _, s := range []*countingStep{a, b, c} {
		assert.Equal(t, 4, s.calls, "step %s should run once per round", s.name)
	}
}

func TestRun_NoStepsTerminates(t *testing.T) {
	orch := orchestrator.New(nil)

	res, err := orch.Run(context.Background(), domain.NewExecutionContext(3))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, orchestrator.MaxStepsResponse, res.Response)
	assert.Equal(t, 3, res.StepsExecuted)
}

func TestRun_CompleteStopsImmediately(t *testing.T) {
	after := &countingStep{name: "after"}
	orch := orchestrator.New([]orchestrator.Step{
		fixed("done", domain.Complete("hello")),
		after,
	})

	res, err := orch.Run(context.Background(), domain.NewExecutionContext(5))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, "hello", res.Response)
	assert.Equal(t, 1, res.StepsExecuted)
	assert.Zero(t, after.calls, "steps after Complete must not run")
}

func TestRun_JumpIsAlwaysFatal(t *testing.T) {
	orch := orchestrator.New([]orchestrator.Step{fixed("jumper", domain.Jump("elsewhere"))})

	for _, maxSteps := range []int{1, 2, 10} {
		ec := domain.NewExecutionContext(maxSteps)
		_, err := orch.Run(context.Background(), ec)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrJumpUnsupported)
		assert.Contains(t, err.Error(), "elsewhere")
	}
}

func TestRun_InvalidBudget(t *testing.T) {
	orch := orchestrator.New(nil)

	_, err := orch.Run(context.Background(), domain.NewExecutionContext(0))
	assert.ErrorIs(t, err, domain.ErrInvalidMaxSteps)

	_, err = orch.Run(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNilContext)
}

func TestRun_StepErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	orch := orchestrator.New([]orchestrator.Step{
		orchestrator.NewStep("broken", func(context.Context, *domain.ExecutionContext) (domain.StepDecision, error) {
			return domain.StepDecision{}, boom
		}),
	})

	_, err := orch.Run(context.Background(), domain.NewExecutionContext(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"broken"`)
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	step := &countingStep{name: "a"}

	_, err := orchestrator.New([]orchestrator.Step{step}).Run(ctx, domain.NewExecutionContext(3))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, step.calls)
}

// Scenario: a step asks for tools in round 2 and keeps asking after every
// resume. The caller resumes with the same context; total rounds never
// exceed the initial budget of 5.
func TestRun_PauseResumePreservesBudget(t *testing.T) {
	toolStep := orchestrator.NewStep("tools", func(_ context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error) {
		if ec.StepCount >= 2 {
			return domain.ExecuteTools([]domain.ToolCall{{ID: "call", Name: "noop"}}), nil
		}
		return domain.Continue(), nil
	})
	orch := orchestrator.New([]orchestrator.Step{toolStep})
	ec := domain.NewExecutionContext(5)

	res, err := orch.Run(context.Background(), ec)
	require.NoError(t, err)
	require.True(t, res.HasPendingActions())
	assert.Equal(t, 2, res.StepsExecuted)
	assert.Len(t, res.PendingToolCalls, 1)

	resumes := 0
	for res.HasPendingActions() {
		resumes++
		require.LessOrEqual(t, resumes, 5, "resume loop must be bounded")
		res.Context.AddToolResult("call", domain.ToolResult{ID: "call"})
		res, err = orch.Run(context.Background(), res.Context)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.StepsExecuted, 5)
	}

	assert.True(t, res.Completed)
	assert.Equal(t, 5, res.StepsExecuted)
	assert.Equal(t, 5, ec.StepCount)
	assert.Equal(t, 4, resumes, "rounds 3, 4 and 5 pause again, the fourth resume finds the budget spent")
}

func TestRun_OutcomesAreExclusive(t *testing.T) {
	cases := map[string]domain.StepDecision{
		"complete": domain.Complete("x"),
		"tools":    domain.ExecuteTools(nil),
		"memory":   domain.RetrieveMemories(""),
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := orchestrator.New([]orchestrator.Step{fixed(name, d)}).Run(context.Background(), domain.NewExecutionContext(2))
			require.NoError(t, err)

			outcomes := 0
			if res.Completed {
				outcomes++
			}
			if res.PendingToolCalls != nil {
				outcomes++
			}
			if res.PendingMemoryQuery != nil {
				outcomes++
			}
			assert.Equal(t, 1, outcomes)
		})
	}
}

func TestRun_MemoryPauseCarriesQuery(t *testing.T) {
	orch := orchestrator.New([]orchestrator.Step{fixed("mem", domain.RetrieveMemories("what did I say"))})

	res, err := orch.Run(context.Background(), domain.NewExecutionContext(2))
	require.NoError(t, err)
	require.NotNil(t, res.PendingMemoryQuery)
	assert.Equal(t, "what did I say", *res.PendingMemoryQuery)
	assert.False(t, res.Completed)
}

func TestRun_Hooks(t *testing.T) {
	var rounds, decisions, completed int
	hooks := domain.LifecycleHooks{
		OnRoundStart:   func(context.Context, *domain.RunEvent) { rounds++ },
		OnStepDecision: func(context.Context, *domain.RunEvent) { decisions++ },
		OnRunCompleted: func(_ context.Context, e *domain.RunEvent) {
			completed++
			assert.Equal(t, "b", e.Step)
		},
	}
	orch := orchestrator.New([]orchestrator.Step{
		fixed("a", domain.Continue()),
		fixed("b", domain.Complete("ok")),
	}, orchestrator.WithHooks(hooks))

	_, err := orch.Run(context.Background(), domain.NewExecutionContext(3))
	require.NoError(t, err)
	assert.Equal(t, 1, rounds)
	assert.Equal(t, 2, decisions)
	assert.Equal(t, 1, completed)
}

func TestRun_RoundSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orch := orchestrator.New(nil, orchestrator.WithTracer(tp.Tracer("test")))
	_, err := orch.Run(context.Background(), domain.NewExecutionContext(2))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "orchestrator.round", s.Name())
	}
}
