/*
Package ports defines the driven ports (interfaces) of the agent runtime.

These interfaces decouple the orchestrator, the saga coordinator and the host
loop from concrete backends: LLM providers, vector stores, tool transports,
ledger persistence and alert channels.

# Key Interfaces

  - ToolExecutor: executes tool calls requested by a paused run.
  - MemoryStore: similarity search and storage of conversation memories.
  - TextGenerator: produces the final answer when no step templated one.
  - LedgerStore: persists saga ledgers for inspection and audit.
  - ConversationStore: persists per-session conversation history.
  - DistributedLocker: coordinates access to a session across replicas.
  - Alerter: notifies operators when saga compensation fails.
*/
package ports
