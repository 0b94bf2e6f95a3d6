/*
Package orchestrator drives an ordered list of Steps in rounds.

Each round runs every Step in order against the same ExecutionContext. A Step
either lets the round proceed (Continue), ends the run (Complete), or pauses
it with a request the host must satisfy (ExecuteTools, RetrieveMemories). The
orchestrator never performs I/O itself: tool execution, memory search and
final-answer generation are the caller's job, after which the caller re-runs
the orchestrator with the same context. The round counter is never reset, so
the MaxSteps budget bounds the total work across all resumes.

Usage:

	orch := orchestrator.New(orchestrator.DefaultSteps(), orchestrator.WithLogger(logger))
	res, err := orch.Run(ctx, ec)
	for err == nil && res.HasPendingActions() {
		// satisfy res.PendingToolCalls / res.PendingMemoryQuery, then:
		res, err = orch.Run(ctx, res.Context)
	}
*/
package orchestrator
