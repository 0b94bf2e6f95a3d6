package saga

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ravituringworks/agency/pkg/saga"

// Coordinator executes TransactionSteps in order and rolls back on failure.
type Coordinator struct {
	name      string
	steps     []TransactionStep
	baseDelay time.Duration
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	store     ports.LedgerStore
	alerter   ports.Alerter
	tracer    trace.Tracer
}

// NewCoordinator creates a coordinator for the named saga.
func NewCoordinator(name string, steps []TransactionStep, opts ...Option) *Coordinator {
	c := &Coordinator{
		name:      name,
		steps:     append([]TransactionStep(nil), steps...),
		baseDelay: DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

// Name returns the saga name.
func (c *Coordinator) Name() string { return c.name }

// Steps returns the configured steps in declaration order.
func (c *Coordinator) Steps() []TransactionStep {
	return append([]TransactionStep(nil), c.steps...)
}

// NewLedger creates a fresh ledger for one run of this saga. The context is
// used as-is; callers that must not see saga mutations pass a clone.
func (c *Coordinator) NewLedger(ec *domain.ExecutionContext) *domain.TransactionLedger {
	l := domain.NewTransactionLedger(uuid.NewString(), c.name, ec)
	for _, s := range c.steps {
		l.Steps = append(l.Steps, domain.StepRef{ID: s.ID, Name: s.Name})
	}
	return l
}

// MaxBackoffDelay caps the wait between retries.
const MaxBackoffDelay = 5 * time.Minute

// BackoffDelay returns the wait before retry attempt n+1, given that attempt n
// failed. The delay doubles per attempt up to MaxBackoffDelay.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}
	if base >= MaxBackoffDelay {
		return MaxBackoffDelay
	}
	shift := attempt - 1
	if shift >= 63 || base > MaxBackoffDelay>>shift {
		return MaxBackoffDelay
	}
	return base << shift
}

// Run executes the saga against the ledger.
//
// The outcome is always one of Completed, Compensated or CompensationFailed.
// The error is reserved for infrastructure problems: an invalid ledger or a
// failure to persist the final ledger. The Result is valid even then.
func (c *Coordinator) Run(ctx context.Context, ledger *domain.TransactionLedger) (Result, error) {
	if ledger == nil {
		return Result{}, errors.New("saga: nil ledger")
	}
	if len(ledger.Steps) == 0 {
		for _, s := range c.steps {
			ledger.Steps = append(ledger.Steps, domain.StepRef{ID: s.ID, Name: s.Name})
		}
	}

	ctx, span := c.tracer.Start(ctx, "saga.run", trace.WithAttributes(
		attribute.String("saga", c.name),
		attribute.String("ledger_id", ledger.ID),
		attribute.Int("steps", len(c.steps)),
	))
	defer span.End()

	c.logger.InfoContext(ctx, "saga started", "saga", c.name, "ledger_id", ledger.ID, "steps", len(c.steps))

	for i, step := range c.steps {
		value, err := c.execute(ctx, ledger, step)
		if err != nil {
			c.setPhase(ctx, ledger, step, domain.PhaseFailed, err.Error(), 0)
			c.logger.ErrorContext(ctx, "saga step failed", "saga", c.name, "step", step.Name, "err", err)

			res := c.compensate(ctx, ledger, i)
			res.FailureReason = err.Error()
			span.SetStatus(codes.Error, res.Outcome.String())
			return c.finish(ctx, ledger, res)
		}

		ledger.StepResults[step.ID] = value
		c.setPhase(ctx, ledger, step, domain.PhaseCompleted, "", 0)
		c.logger.InfoContext(ctx, "saga step completed", "saga", c.name, "step", step.Name)
	}

	var last any = map[string]any{}
	if n := len(c.steps); n > 0 {
		last = ledger.StepResults[c.steps[n-1].ID]
	}
	span.SetStatus(codes.Ok, "completed")
	return c.finish(ctx, ledger, Completed(last))
}

// execute runs the forward action with retries and exponential backoff.
func (c *Coordinator) execute(ctx context.Context, ledger *domain.TransactionLedger, step TransactionStep) (any, error) {
	c.setPhase(ctx, ledger, step, domain.PhaseExecuting, "", 1)

	ctx, span := c.tracer.Start(ctx, "saga.step", trace.WithAttributes(
		attribute.String("step", step.Name),
		attribute.Int("max_attempts", step.Attempts()),
	))
	defer span.End()

	attempts := step.Attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.logger.DebugContext(ctx, "retrying saga step", "step", step.Name, "attempt", attempt, "max_attempts", attempts)
			c.emitStep(ctx, ledger, step, domain.PhaseExecuting, attempt)
		}

		value, err := step.Action(ctx, ledger.Context)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return value, nil
		}
		lastErr = err
		span.RecordError(err)
		c.logger.WarnContext(ctx, "saga step attempt failed", "step", step.Name, "attempt", attempt, "err", err)

		if attempt == attempts {
			break
		}
		ledger.IncrementRetry(step.ID)
		if err := sleep(ctx, BackoffDelay(c.baseDelay, attempt)); err != nil {
			lastErr = fmt.Errorf("retry aborted after attempt %d: %w", attempt, errors.Join(lastErr, err))
			break
		}
	}
	span.SetStatus(codes.Error, "exhausted")
	return nil, lastErr
}

// compensate rolls back completed steps before failedIndex in reverse order.
// It stops at the first compensation that fails.
func (c *Coordinator) compensate(ctx context.Context, ledger *domain.TransactionLedger, failedIndex int) Result {
	failedStep := c.steps[failedIndex].Name
	compensated := make([]string, 0, failedIndex)

	c.logger.InfoContext(ctx, "saga compensation started", "saga", c.name, "failed_step", failedStep)

	for i := failedIndex - 1; i >= 0; i-- {
		step := c.steps[i]
		if !ledger.IsCompleted(step.ID) {
			continue
		}

		c.setPhase(ctx, ledger, step, domain.PhaseCompensating, "", 0)
		if err := step.Compensation(ctx, ledger.Context, ledger.StepResults[step.ID]); err != nil {
			c.setPhase(ctx, ledger, step, domain.PhaseCompensationFailed, err.Error(), 0)
			c.logger.ErrorContext(ctx, "saga compensation failed", "saga", c.name, "step", step.Name, "err", err)

			res := CompensationFailed(failedStep, err.Error(), step.Name)
			res.CompensatedSteps = compensated
			return res
		}

		c.setPhase(ctx, ledger, step, domain.PhaseCompensated, "", 0)
		compensated = append(compensated, step.Name)
		c.logger.InfoContext(ctx, "saga step compensated", "saga", c.name, "step", step.Name)
	}

	return Compensated(failedStep, compensated)
}

func (c *Coordinator) finish(ctx context.Context, ledger *domain.TransactionLedger, res Result) (Result, error) {
	ledger.Finish(res.Outcome.String())

	c.logger.InfoContext(ctx, "saga finished", "saga", c.name, "ledger_id", ledger.ID, "outcome", res.Outcome.String(), "duration", ledger.Duration())
	if c.hooks.OnSagaFinished != nil {
		c.hooks.OnSagaFinished(ctx, &domain.SagaEvent{
			EventBase: domain.NewEventBase(domain.EventSagaFinished),
			LedgerID:  ledger.ID,
			Saga:      c.name,
			Step:      res.FailedStep,
			Outcome:   res.Outcome.String(),
			Duration:  ledger.Duration(),
		})
	}

	if res.Outcome == OutcomeCompensationFailed && c.alerter != nil {
		alert := domain.SagaAlert{
			LedgerID:          ledger.ID,
			Saga:              c.name,
			FailedStep:        res.FailedStep,
			FailureReason:     res.FailureReason,
			FailedAtStep:      res.FailedAtStep,
			CompensationError: res.CompensationError,
			CompensatedSteps:  res.CompensatedSteps,
			Timestamp:         time.Now().UTC(),
		}
		if err := c.alerter.Alert(ctx, alert); err != nil {
			c.logger.ErrorContext(ctx, "failed to raise saga alert", "ledger_id", ledger.ID, "err", err)
		}
	}

	if c.store != nil {
		if err := c.store.Save(ctx, ledger); err != nil {
			return res, fmt.Errorf("failed to persist ledger %s: %w", ledger.ID, err)
		}
	}
	return res, nil
}

// setPhase records a state change, notifies hooks and checkpoints the ledger.
func (c *Coordinator) setPhase(ctx context.Context, ledger *domain.TransactionLedger, step TransactionStep, phase domain.StepPhase, reason string, attempt int) {
	if err := ledger.Transition(step.ID, phase, reason); err != nil {
		// The coordinator only issues legal moves; a failure here means the
		// ledger was reused across runs.
		c.logger.WarnContext(ctx, "unexpected saga transition", "step", step.Name, "err", err)
		ledger.StepStates[step.ID] = domain.StepState{Phase: phase, Reason: reason}
	}
	c.emitStep(ctx, ledger, step, phase, attempt)

	if c.store != nil && phase != domain.PhaseExecuting {
		if err := c.store.Save(ctx, ledger); err != nil {
			c.logger.WarnContext(ctx, "failed to checkpoint ledger", "ledger_id", ledger.ID, "err", err)
		}
	}
}

func (c *Coordinator) emitStep(ctx context.Context, ledger *domain.TransactionLedger, step TransactionStep, phase domain.StepPhase, attempt int) {
	if c.hooks.OnSagaStep == nil {
		return
	}
	c.hooks.OnSagaStep(ctx, &domain.SagaEvent{
		EventBase: domain.NewEventBase(domain.EventSagaStep),
		LedgerID:  ledger.ID,
		Saga:      c.name,
		Step:      step.Name,
		Phase:     string(phase),
		Attempt:   attempt,
	})
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
