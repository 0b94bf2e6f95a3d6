package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ravituringworks/agency/pkg/domain"
)

const namespace = "agency"

// Metrics holds the collectors fed by Hooks.
type Metrics struct {
	Rounds       prometheus.Counter
	Decisions    *prometheus.CounterVec
	Runs         *prometheus.CounterVec
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
	SagaSteps    *prometheus.CounterVec
	SagaOutcomes *prometheus.CounterVec
	SagaDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orchestrator_rounds_total",
			Help:      "Total number of orchestrator rounds started.",
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_decisions_total",
			Help:      "Step decisions by step and decision kind.",
		}, []string{"step", "decision"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Orchestrator runs that ended, by result.",
		}, []string{"result"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool and status.",
		}, []string{"tool", "status"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		SagaSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_step_transitions_total",
			Help:      "Saga step phase transitions.",
		}, []string{"saga", "phase"}),
		SagaOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_outcomes_total",
			Help:      "Finished sagas by outcome.",
		}, []string{"saga", "outcome"}),
		SagaDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "saga_duration_seconds",
			Help:      "Wall time of finished sagas.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"saga"}),
	}

	var err error
	if m.Rounds, err = register(reg, m.Rounds); err != nil {
		return nil, err
	}
	if m.Decisions, err = register(reg, m.Decisions); err != nil {
		return nil, err
	}
	if m.Runs, err = register(reg, m.Runs); err != nil {
		return nil, err
	}
	if m.ToolCalls, err = register(reg, m.ToolCalls); err != nil {
		return nil, err
	}
	if m.ToolDuration, err = register(reg, m.ToolDuration); err != nil {
		return nil, err
	}
	if m.SagaSteps, err = register(reg, m.SagaSteps); err != nil {
		return nil, err
	}
	if m.SagaOutcomes, err = register(reg, m.SagaOutcomes); err != nil {
		return nil, err
	}
	if m.SagaDuration, err = register(reg, m.SagaDuration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Hooks records every lifecycle event into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRoundStart: func(_ context.Context, _ *domain.RunEvent) {
			m.Rounds.Inc()
		},
		OnStepDecision: func(_ context.Context, e *domain.RunEvent) {
			m.Decisions.WithLabelValues(e.Step, e.Decision).Inc()
		},
		OnRunPaused: func(_ context.Context, _ *domain.RunEvent) {
			m.Runs.WithLabelValues("paused").Inc()
		},
		OnRunCompleted: func(_ context.Context, _ *domain.RunEvent) {
			m.Runs.WithLabelValues("completed").Inc()
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			status := "ok"
			if e.IsError {
				status = "error"
			}
			m.ToolCalls.WithLabelValues(e.ToolName, status).Inc()
			m.ToolDuration.WithLabelValues(e.ToolName).Observe(e.Duration.Seconds())
		},
		OnSagaStep: func(_ context.Context, e *domain.SagaEvent) {
			m.SagaSteps.WithLabelValues(e.Saga, e.Phase).Inc()
		},
		OnSagaFinished: func(_ context.Context, e *domain.SagaEvent) {
			m.SagaOutcomes.WithLabelValues(e.Saga, e.Outcome).Inc()
			m.SagaDuration.WithLabelValues(e.Saga).Observe(e.Duration.Seconds())
		},
	}
}
