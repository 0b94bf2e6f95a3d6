/*
Package saga gives multi-step operations all-or-nothing semantics.

A Coordinator runs TransactionSteps in declaration order. Each step pairs a
forward action with a compensating action. Forward actions are retried with
exponential backoff; once a step exhausts its retries, every previously
completed step is compensated in exact reverse order, each at most once.
Compensations are never retried: the first failing compensation stops the
rollback and the run ends in CompensationFailed, which needs an operator.

Actions operate on the ledger's snapshot of the ExecutionContext. Anything
that talks to a live system should be fetched before the saga starts and
read from that snapshot.

A StepAdapter embeds a whole Coordinator run as one orchestrator Step.
*/
package saga
