package domain

import (
	"maps"
	"slices"
	"strings"
)

// DefaultMaxSteps is the round budget used when none is configured.
const DefaultMaxSteps = 10

// Well-known metadata keys.
const (
	MetaMemoriesRetrieved = "memories_retrieved"
	MetaSagaResult        = "saga_result"
	MetaLastResult        = "last_result"
	MetaForEachItem       = "foreach_current_item"
	MetaForEachIndex      = "foreach_current_index"
)

// ExecutionContext is the mutable state threaded through a run.
//
// A context has exactly one owner at a time. It is handed to the orchestrator,
// mutated by steps and returned inside the RunResult; the host then satisfies
// any pending request and hands the same context back.
type ExecutionContext struct {
	Messages       []Message             `json:"messages" yaml:"messages"`
	Memories       []SearchResult        `json:"memories,omitempty" yaml:"memories,omitempty"`
	AvailableTools []string              `json:"available_tools,omitempty" yaml:"available_tools,omitempty"`
	ToolResults    map[string]ToolResult `json:"tool_results,omitempty" yaml:"tool_results,omitempty"`
	Metadata       map[string]string     `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// StepCount is the current round number. It is never reset across resumes.
	StepCount int `json:"step_count" yaml:"step_count"`
	// MaxSteps is the hard ceiling on rounds.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`
}

// NewExecutionContext creates an empty context with the given round budget.
func NewExecutionContext(maxSteps int) *ExecutionContext {
	return &ExecutionContext{
		Messages:    make([]Message, 0),
		ToolResults: make(map[string]ToolResult),
		Metadata:    make(map[string]string),
		MaxSteps:    maxSteps,
	}
}

// AddMessage appends a conversation turn.
func (c *ExecutionContext) AddMessage(m Message) {
	c.Messages = append(c.Messages, m)
}

// AddToolResult records the result of the tool call with the given ID.
func (c *ExecutionContext) AddToolResult(callID string, r ToolResult) {
	if c.ToolResults == nil {
		c.ToolResults = make(map[string]ToolResult)
	}
	c.ToolResults[callID] = r
}

// OrderedToolResults returns tool results sorted by call ID so renderings are stable.
func (c *ExecutionContext) OrderedToolResults() []ToolResult {
	ids := slices.Sorted(maps.Keys(c.ToolResults))
	out := make([]ToolResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.ToolResults[id])
	}
	return out
}

// SetMemories replaces the retrieved memories and marks retrieval as done.
func (c *ExecutionContext) SetMemories(results []SearchResult) {
	c.Memories = results
	c.MarkMemoriesRetrieved()
}

// MarkMemoriesRetrieved records that memory retrieval already happened for this turn.
func (c *ExecutionContext) MarkMemoriesRetrieved() {
	c.SetMeta(MetaMemoriesRetrieved, "true")
}

// MemoriesRetrieved reports whether memory retrieval already happened for this turn.
func (c *ExecutionContext) MemoriesRetrieved() bool {
	return c.Metadata[MetaMemoriesRetrieved] == "true"
}

// SetMeta writes a metadata value.
func (c *ExecutionContext) SetMeta(key, value string) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]string)
	}
	c.Metadata[key] = value
}

// ShouldContinue reports whether another round fits in the budget.
func (c *ExecutionContext) ShouldContinue() bool {
	return c.StepCount < c.MaxSteps
}

// IncrementStep advances the round counter.
func (c *ExecutionContext) IncrementStep() {
	c.StepCount++
}

// LastMessage returns the most recent turn, if any.
func (c *ExecutionContext) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// LastUserMessage returns the most recent turn when it was written by the user.
func (c *ExecutionContext) LastUserMessage() (string, bool) {
	m, ok := c.LastMessage()
	if !ok || m.Role != RoleUser {
		return "", false
	}
	return m.Content, true
}

// HasTool reports whether the named tool is visible to this run.
func (c *ExecutionContext) HasTool(name string) bool {
	return slices.Contains(c.AvailableTools, name)
}

// Transcript renders the conversation as "role: content" lines.
func (c *ExecutionContext) Transcript() string {
	var sb strings.Builder
	for _, m := range c.Messages {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Clone returns a deep copy of the context.
func (c *ExecutionContext) Clone() *ExecutionContext {
	if c == nil {
		return nil
	}
	out := &ExecutionContext{
		Messages:       slices.Clone(c.Messages),
		Memories:       slices.Clone(c.Memories),
		AvailableTools: slices.Clone(c.AvailableTools),
		ToolResults:    make(map[string]ToolResult, len(c.ToolResults)),
		Metadata:       maps.Clone(c.Metadata),
		StepCount:      c.StepCount,
		MaxSteps:       c.MaxSteps,
	}
	if out.Messages == nil {
		out.Messages = make([]Message, 0)
	}
	if out.Metadata == nil {
		out.Metadata = make(map[string]string)
	}
	for id, r := range c.ToolResults {
		r.Content = slices.Clone(r.Content)
		out.ToolResults[id] = r
	}
	return out
}
