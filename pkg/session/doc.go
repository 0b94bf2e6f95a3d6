/*
Package session manages conversation histories.

A Manager serializes turns of one conversation with a per-session mutex and,
when configured, a distributed lock, so replicas sharing a ConversationStore
never interleave writes to the same history.
*/
package session
