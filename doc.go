/*
Package agency wires an agent runtime from configuration: a step orchestrator
that pauses for tool calls and memory lookups, a host loop that fulfils those
pauses, per-session conversation history, and a saga coordinator that rolls
back multi-step side-effects through compensations.

# Usage

	cfg, err := config.Load("agency.yaml")
	if err != nil {
		log.Fatal(err)
	}
	agent, err := agency.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer agent.Close()

	reply, err := agent.Runner.Chat(ctx, "session-1", "Show me system info")

Sagas created with NewSaga share the agent's ledger store, hooks and alerter:

	booking := agent.NewSaga("booking", []saga.TransactionStep{reserve, charge})
	res, err := booking.Run(ctx, booking.NewLedger(nil))

The HTTP API (HTTPHandler) and the MCP server (MCPServer) expose the same runner.
*/
package agency
