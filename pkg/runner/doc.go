/*
Package runner drives conversations through the orchestrator.

The orchestrator only decides; it never performs side-effects. A Runner is the
host that acts on its pauses: it executes requested tool calls through a
ports.ToolExecutor (behind a ToolInterceptor policy), answers memory queries
from a ports.MemoryStore, and re-runs the same ExecutionContext until the run
completes. When the steps produce no answer, the Runner falls back to a
ports.TextGenerator. Conversation history is kept per session by a
session.Manager.

# Usage

	r := runner.New(orchestrator.New(orchestrator.DefaultSteps()),
		runner.WithTools(registry.NewBuiltin()),
		runner.WithGenerator(llm),
	)

	reply, err := r.Chat(ctx, "user-1", "what is the system info?")

Console wraps a Runner in an interactive read-eval-print loop.
*/
package runner
