package observability

import (
	"context"
	"log/slog"

	"github.com/ravituringworks/agency/pkg/domain"
)

// LoggingHooks writes each lifecycle event as a structured log record.
// Rounds and decisions log at debug, everything else at info.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRoundStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "round_start", "round", e.Round, "max_steps", e.MaxSteps)
		},
		OnStepDecision: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "step_decision", "round", e.Round, "step", e.Step, "decision", e.Decision)
		},
		OnRunPaused: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_paused", "round", e.Round, "step", e.Step, "decision", e.Decision)
		},
		OnRunCompleted: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_completed", "round", e.Round, "step", e.Step)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.InfoContext(ctx, "tool_call", "tool_name", e.ToolName, "call_id", e.CallID)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			logger.InfoContext(ctx, "tool_return", "tool_name", e.ToolName, "call_id", e.CallID, "is_error", e.IsError, "duration", e.Duration)
		},
		OnSagaStep: func(ctx context.Context, e *domain.SagaEvent) {
			logger.InfoContext(ctx, "saga_step", "ledger_id", e.LedgerID, "saga", e.Saga, "step", e.Step, "phase", e.Phase, "attempt", e.Attempt)
		},
		OnSagaFinished: func(ctx context.Context, e *domain.SagaEvent) {
			logger.InfoContext(ctx, "saga_finished", "ledger_id", e.LedgerID, "saga", e.Saga, "outcome", e.Outcome, "duration", e.Duration)
		},
	}
}
