package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/observability"
	"github.com/ravituringworks/agency/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_OrchestratorRun(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	orch := orchestrator.New(orchestrator.DefaultSteps(), orchestrator.WithHooks(m.Hooks()))
	ec := domain.NewExecutionContext(5)
	ec.AddMessage(domain.UserMessage("hello"))

	res, err := orch.Run(context.Background(), ec)
	require.NoError(t, err)
	require.True(t, res.Completed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rounds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("memory_retrieval", "continue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("response_generation", "complete")))
}

func TestMetrics_ToolsAndSagas(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "system_info", Duration: 20 * time.Millisecond})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "system_info", IsError: true})
	hooks.OnSagaStep(ctx, &domain.SagaEvent{Saga: "booking", Phase: string(domain.PhaseCompleted)})
	hooks.OnSagaFinished(ctx, &domain.SagaEvent{Saga: "booking", Outcome: "compensated", Duration: time.Second})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("system_info", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("system_info", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SagaSteps.WithLabelValues("booking", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SagaOutcomes.WithLabelValues("booking", "compensated")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ToolDuration))
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	second, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	second.Rounds.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(first.Rounds))
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	hooks := observability.LoggingHooks(logger)
	ctx := context.Background()

	hooks.OnRoundStart(ctx, &domain.RunEvent{Round: 1})
	assert.Empty(t, buf.String())

	hooks.OnSagaFinished(ctx, &domain.SagaEvent{LedgerID: "l1", Saga: "booking", Outcome: "completed"})
	assert.Contains(t, buf.String(), `"msg":"saga_finished"`)
	assert.Contains(t, buf.String(), `"ledger_id":"l1"`)
}
