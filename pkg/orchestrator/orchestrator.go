package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ravituringworks/agency/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxStepsResponse is returned when the round budget runs out without a terminal decision.
const MaxStepsResponse = "Workflow reached maximum steps."

const tracerName = "github.com/ravituringworks/agency/pkg/orchestrator"

// RunResult is the outcome of a single Run call.
//
// Exactly one of Completed, PendingToolCalls != nil or PendingMemoryQuery != nil holds.
type RunResult struct {
	Response           string
	Context            *domain.ExecutionContext
	Completed          bool
	StepsExecuted      int
	PendingToolCalls   []domain.ToolCall
	PendingMemoryQuery *string
}

// HasPendingActions reports whether the caller must act and re-run.
func (r *RunResult) HasPendingActions() bool {
	return r.PendingToolCalls != nil || r.PendingMemoryQuery != nil
}

// Orchestrator runs a fixed, ordered list of Steps in rounds.
type Orchestrator struct {
	steps  []Step
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	tracer trace.Tracer
}

// New creates an Orchestrator over the given steps. The order is preserved every round.
func New(steps []Step, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		steps:  append([]Step(nil), steps...),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

// Steps returns the configured steps in execution order.
func (o *Orchestrator) Steps() []Step {
	return append([]Step(nil), o.steps...)
}

// Run drives the context through rounds until a step completes or pauses the
// run, or the MaxSteps budget is exhausted.
//
// Run picks up from ec.StepCount, so a resumed context keeps counting against
// its original budget. The context is returned inside the result; on error it
// is left in whatever state the failing step produced.
func (o *Orchestrator) Run(ctx context.Context, ec *domain.ExecutionContext) (*RunResult, error) {
	if ec == nil {
		return nil, domain.ErrNilContext
	}
	if ec.MaxSteps < 1 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidMaxSteps, ec.MaxSteps)
	}

	for ec.ShouldContinue() {
		ec.IncrementStep()
		round := ec.StepCount

		o.logger.DebugContext(ctx, "round started", "round", round, "max_steps", ec.MaxSteps)
		if o.hooks.OnRoundStart != nil {
			o.hooks.OnRoundStart(ctx, &domain.RunEvent{
				EventBase: domain.NewEventBase(domain.EventRoundStart),
				Round:     round,
				MaxSteps:  ec.MaxSteps,
			})
		}

		res, err := o.runRound(ctx, ec, round)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}

	o.logger.InfoContext(ctx, "round budget exhausted", "steps_executed", ec.StepCount)
	res := &RunResult{
		Response:      MaxStepsResponse,
		Context:       ec,
		Completed:     true,
		StepsExecuted: ec.StepCount,
	}
	o.emitTerminal(ctx, res, "")
	return res, nil
}

// runRound executes every step once. A nil result means every step continued.
func (o *Orchestrator) runRound(ctx context.Context, ec *domain.ExecutionContext, round int) (*RunResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.round",
		trace.WithAttributes(
			attribute.Int("round", round),
			attribute.Int("max_steps", ec.MaxSteps),
		),
	)
	defer span.End()

	for _, step := range o.steps {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "canceled")
			return nil, fmt.Errorf("run canceled before step %q: %w", step.Name(), err)
		}

		decision, err := step.Execute(ctx, ec)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "step failed")
			o.logger.ErrorContext(ctx, "step failed", "step", step.Name(), "round", round, "err", err)
			return nil, fmt.Errorf("step %q failed: %w", step.Name(), err)
		}

		o.logger.DebugContext(ctx, "step decided", "step", step.Name(), "round", round, "decision", decision.String())
		if o.hooks.OnStepDecision != nil {
			o.hooks.OnStepDecision(ctx, &domain.RunEvent{
				EventBase: domain.NewEventBase(domain.EventStepDecision),
				Round:     round,
				MaxSteps:  ec.MaxSteps,
				Step:      step.Name(),
				Decision:  decision.Kind.String(),
			})
		}

		switch decision.Kind {
		case domain.DecisionContinue:
			continue

		case domain.DecisionComplete:
			res := &RunResult{
				Response:      decision.Response,
				Context:       ec,
				Completed:     true,
				StepsExecuted: ec.StepCount,
			}
			span.SetAttributes(attribute.String("outcome", "completed"))
			o.emitTerminal(ctx, res, step.Name())
			return res, nil

		case domain.DecisionJump:
			err := fmt.Errorf("step %q requested jump to %q: %w", step.Name(), decision.Target, domain.ErrJumpUnsupported)
			span.RecordError(err)
			span.SetStatus(codes.Error, "jump")
			return nil, err

		case domain.DecisionExecuteTools:
			calls := decision.ToolCalls
			if calls == nil {
				calls = []domain.ToolCall{}
			}
			res := &RunResult{
				Context:          ec,
				StepsExecuted:    ec.StepCount,
				PendingToolCalls: calls,
			}
			span.SetAttributes(attribute.String("outcome", "tools_pending"), attribute.Int("tool_calls", len(calls)))
			o.emitTerminal(ctx, res, step.Name())
			return res, nil

		case domain.DecisionRetrieveMemories:
			query := decision.Query
			res := &RunResult{
				Context:            ec,
				StepsExecuted:      ec.StepCount,
				PendingMemoryQuery: &query,
			}
			span.SetAttributes(attribute.String("outcome", "memory_pending"))
			o.emitTerminal(ctx, res, step.Name())
			return res, nil

		default:
			err := fmt.Errorf("step %q returned unknown decision %s", step.Name(), decision.Kind)
			span.RecordError(err)
			span.SetStatus(codes.Error, "unknown decision")
			return nil, err
		}
	}

	return nil, nil
}

func (o *Orchestrator) emitTerminal(ctx context.Context, res *RunResult, stepName string) {
	event := &domain.RunEvent{
		Round:    res.StepsExecuted,
		MaxSteps: res.Context.MaxSteps,
		Step:     stepName,
	}
	if res.Completed {
		event.EventBase = domain.NewEventBase(domain.EventRunCompleted)
		o.logger.InfoContext(ctx, "run completed", "step", stepName, "steps_executed", res.StepsExecuted)
		if o.hooks.OnRunCompleted != nil {
			o.hooks.OnRunCompleted(ctx, event)
		}
		return
	}

	event.EventBase = domain.NewEventBase(domain.EventRunPaused)
	if res.PendingToolCalls != nil {
		event.Decision = domain.DecisionExecuteTools.String()
	} else {
		event.Decision = domain.DecisionRetrieveMemories.String()
	}
	o.logger.InfoContext(ctx, "run paused", "step", stepName, "pending", event.Decision, "steps_executed", res.StepsExecuted)
	if o.hooks.OnRunPaused != nil {
		o.hooks.OnRunPaused(ctx, event)
	}
}
