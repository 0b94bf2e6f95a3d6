/*
Package domain contains the core types shared by the orchestrator, the saga
coordinator and the host loop.

The package is pure: no I/O, no persistence, no transport. Everything that
touches the outside world lives behind the interfaces in package ports.

# Key Entities

  - ExecutionContext: the mutable state threaded through a run (messages,
    memories, tool results, metadata and the round budget).
  - StepDecision: the closed set of outcomes a single step can produce.
  - ToolCall / ToolResult: the pause-and-resume handshake with the host.
  - SearchResult: a ranked memory returned by a memory store.
*/
package domain
