package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRoundStart   EventType = "round_start"
	EventStepDecision EventType = "step_decision"
	EventRunPaused    EventType = "run_paused"
	EventRunCompleted EventType = "run_completed"
	EventToolCall     EventType = "tool_call"
	EventToolReturn   EventType = "tool_return"
	EventSagaStep     EventType = "saga_step"
	EventSagaFinished EventType = "saga_finished"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// NewEventBase stamps an event with the current time.
func NewEventBase(t EventType) EventBase {
	return EventBase{Timestamp: time.Now(), Type: t}
}

// RunEvent describes progress of an orchestrator run.
type RunEvent struct {
	EventBase
	Round    int    `json:"round"`
	MaxSteps int    `json:"max_steps"`
	Step     string `json:"step,omitempty"`
	Decision string `json:"decision,omitempty"`
}

// ToolEvent represents a tool execution performed by the host.
type ToolEvent struct {
	EventBase
	CallID   string        `json:"call_id"`
	ToolName string        `json:"tool_name"`
	Input    any           `json:"input,omitempty"`
	Output   any           `json:"output,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// SagaEvent describes a saga step state change or a finished saga.
type SagaEvent struct {
	EventBase
	LedgerID string        `json:"ledger_id"`
	Saga     string        `json:"saga"`
	Step     string        `json:"step,omitempty"`
	Phase    string        `json:"phase,omitempty"`
	Attempt  int           `json:"attempt,omitempty"`
	Outcome  string        `json:"outcome,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for observability. Nil hooks are skipped.
type LifecycleHooks struct {
	OnRoundStart   func(context.Context, *RunEvent)
	OnStepDecision func(context.Context, *RunEvent)
	OnRunPaused    func(context.Context, *RunEvent)
	OnRunCompleted func(context.Context, *RunEvent)
	OnToolCall     func(context.Context, *ToolEvent)
	OnToolReturn   func(context.Context, *ToolEvent)
	OnSagaStep     func(context.Context, *SagaEvent)
	OnSagaFinished func(context.Context, *SagaEvent)
}

// MergeHooks fans every event out to all given hook sets, in order.
func MergeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	runFan := func(pick func(LifecycleHooks) func(context.Context, *RunEvent)) func(context.Context, *RunEvent) {
		return func(ctx context.Context, e *RunEvent) {
			for _, h := range hooks {
				if fn := pick(h); fn != nil {
					fn(ctx, e)
				}
			}
		}
	}
	toolFan := func(pick func(LifecycleHooks) func(context.Context, *ToolEvent)) func(context.Context, *ToolEvent) {
		return func(ctx context.Context, e *ToolEvent) {
			for _, h := range hooks {
				if fn := pick(h); fn != nil {
					fn(ctx, e)
				}
			}
		}
	}
	sagaFan := func(pick func(LifecycleHooks) func(context.Context, *SagaEvent)) func(context.Context, *SagaEvent) {
		return func(ctx context.Context, e *SagaEvent) {
			for _, h := range hooks {
				if fn := pick(h); fn != nil {
					fn(ctx, e)
				}
			}
		}
	}
	return LifecycleHooks{
		OnRoundStart:   runFan(func(h LifecycleHooks) func(context.Context, *RunEvent) { return h.OnRoundStart }),
		OnStepDecision: runFan(func(h LifecycleHooks) func(context.Context, *RunEvent) { return h.OnStepDecision }),
		OnRunPaused:    runFan(func(h LifecycleHooks) func(context.Context, *RunEvent) { return h.OnRunPaused }),
		OnRunCompleted: runFan(func(h LifecycleHooks) func(context.Context, *RunEvent) { return h.OnRunCompleted }),
		OnToolCall:     toolFan(func(h LifecycleHooks) func(context.Context, *ToolEvent) { return h.OnToolCall }),
		OnToolReturn:   toolFan(func(h LifecycleHooks) func(context.Context, *ToolEvent) { return h.OnToolReturn }),
		OnSagaStep:     sagaFan(func(h LifecycleHooks) func(context.Context, *SagaEvent) { return h.OnSagaStep }),
		OnSagaFinished: sagaFan(func(h LifecycleHooks) func(context.Context, *SagaEvent) { return h.OnSagaFinished }),
	}
}
