package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	assert.Contains(t, execute(t, "version"), "agency version ")
}

func TestGraphCommand(t *testing.T) {
	out := execute(t, "graph", "--format", "mermaid", "--saga=false")
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "tool_analysis")

	out = execute(t, "graph", "--format", "dot", "--saga")
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, "charge_card")
}

func TestSagaCommand(t *testing.T) {
	t.Setenv("AGENCY_LOG__LEVEL", "error")
	t.Setenv("AGENCY_SAGA__BASE_DELAY", "1ms")

	out := execute(t, "saga", "--fail=false", "--fail-compensation=false", "--ledger=false")
	assert.Contains(t, out, ": completed")

	out = execute(t, "saga", "--fail", "--fail-compensation=false", "--ledger")
	assert.Contains(t, out, "compensated after charge_card failed (rolled back: reserve_hotel, reserve_flight)")
	assert.Contains(t, out, "outcome: compensated")

	out = execute(t, "saga", "--fail=false", "--fail-compensation", "--ledger=false")
	assert.Contains(t, out, "compensation failed at reserve_hotel")
}
