package domain

import "fmt"

// DecisionKind identifies the active variant of a StepDecision.
type DecisionKind int

const (
	// DecisionContinue proceeds to the next step of the round.
	DecisionContinue DecisionKind = iota
	// DecisionComplete terminates the run with a response.
	DecisionComplete
	// DecisionJump requests a non-linear transition. Always fatal.
	DecisionJump
	// DecisionExecuteTools pauses the run until the host executes tool calls.
	DecisionExecuteTools
	// DecisionRetrieveMemories pauses the run until the host resolves a memory query.
	DecisionRetrieveMemories
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionContinue:
		return "continue"
	case DecisionComplete:
		return "complete"
	case DecisionJump:
		return "jump"
	case DecisionExecuteTools:
		return "execute_tools"
	case DecisionRetrieveMemories:
		return "retrieve_memories"
	default:
		return fmt.Sprintf("decision(%d)", int(k))
	}
}

// StepDecision is the outcome of a single step. Only the fields of the active
// Kind are meaningful. The zero value is Continue.
type StepDecision struct {
	Kind      DecisionKind
	Response  string     // Complete
	Target    string     // Jump
	ToolCalls []ToolCall // ExecuteTools
	Query     string     // RetrieveMemories
}

// Continue proceeds to the next step.
func Continue() StepDecision {
	return StepDecision{Kind: DecisionContinue}
}

// Complete terminates the run. An empty text asks the host to generate the answer.
func Complete(text string) StepDecision {
	return StepDecision{Kind: DecisionComplete, Response: text}
}

// Jump requests a transition to the named step.
func Jump(stepName string) StepDecision {
	return StepDecision{Kind: DecisionJump, Target: stepName}
}

// ExecuteTools pauses the run with tool calls for the host.
func ExecuteTools(calls []ToolCall) StepDecision {
	if calls == nil {
		calls = []ToolCall{}
	}
	return StepDecision{Kind: DecisionExecuteTools, ToolCalls: calls}
}

// RetrieveMemories pauses the run with a memory query for the host.
func RetrieveMemories(query string) StepDecision {
	return StepDecision{Kind: DecisionRetrieveMemories, Query: query}
}

// IsContinue reports whether the decision lets the round proceed.
func (d StepDecision) IsContinue() bool {
	return d.Kind == DecisionContinue
}

func (d StepDecision) String() string {
	switch d.Kind {
	case DecisionComplete:
		return fmt.Sprintf("complete(%d chars)", len(d.Response))
	case DecisionJump:
		return "jump(" + d.Target + ")"
	case DecisionExecuteTools:
		return fmt.Sprintf("execute_tools(%d)", len(d.ToolCalls))
	case DecisionRetrieveMemories:
		return "retrieve_memories"
	default:
		return d.Kind.String()
	}
}
