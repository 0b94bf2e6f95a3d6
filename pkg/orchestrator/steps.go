package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ravituringworks/agency/pkg/domain"
)

// SystemInfoTool is the name of the built-in host information tool.
const SystemInfoTool = "system_info"

// maxMemoriesInResponse caps how many memories a templated answer lists.
const maxMemoriesInResponse = 3

var recallPhrases = []string{
	"earlier", "before", "previous", "remember", "talked about", "discussed",
	"said", "conversation", "what do i", "what did i", "do i like",
	"did i tell", "did i mention",
}

// DefaultSteps returns the standard agent pipeline: memory retrieval, tool
// analysis, then response generation.
func DefaultSteps() []Step {
	return []Step{
		MemoryRetrievalStep{},
		ToolAnalysisStep{},
		ResponseGenerationStep{},
	}
}

// MemoryRetrievalStep asks the host for memories when the latest user turn
// refers to past conversation. It fires at most once per turn.
type MemoryRetrievalStep struct{}

func (MemoryRetrievalStep) Name() string { return "memory_retrieval" }

func (MemoryRetrievalStep) Execute(_ context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error) {
	if ec.MemoriesRetrieved() {
		return domain.Continue(), nil
	}
	text, ok := ec.LastUserMessage()
	if !ok {
		return domain.Continue(), nil
	}
	if IsRecallQuery(text) {
		return domain.RetrieveMemories(text), nil
	}
	return domain.Continue(), nil
}

// IsRecallQuery reports whether the text asks about earlier conversation.
func IsRecallQuery(text string) bool {
	content := strings.ToLower(text)
	for _, phrase := range recallPhrases {
		if strings.Contains(content, phrase) {
			return true
		}
	}
	if strings.Contains(content, "what") && (strings.Contains(content, "like") || strings.Contains(content, "prefer")) {
		return true
	}
	return strings.HasPrefix(content, "do i") || strings.HasPrefix(content, "did i")
}

// ToolAnalysisStep requests the system_info tool when the user asks for
// system information and the tool is available. It never re-requests tools
// once results are present.
type ToolAnalysisStep struct{}

func (ToolAnalysisStep) Name() string { return "tool_analysis" }

func (ToolAnalysisStep) Execute(_ context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error) {
	if len(ec.ToolResults) > 0 {
		return domain.Continue(), nil
	}
	text, ok := ec.LastUserMessage()
	if !ok {
		return domain.Continue(), nil
	}
	content := strings.ToLower(text)
	if strings.Contains(content, "system") && strings.Contains(content, "info") && ec.HasTool(SystemInfoTool) {
		return domain.ExecuteTools([]domain.ToolCall{{
			ID:   uuid.NewString(),
			Name: SystemInfoTool,
			Args: map[string]any{},
		}}), nil
	}
	return domain.Continue(), nil
}

// ResponseGenerationStep completes the run. With tool results or memories it
// builds a templated answer; otherwise it completes with an empty response so
// the host generates the text.
type ResponseGenerationStep struct{}

func (ResponseGenerationStep) Name() string { return "response_generation" }

func (ResponseGenerationStep) Execute(_ context.Context, ec *domain.ExecutionContext) (domain.StepDecision, error) {
	var parts []string

	if len(ec.ToolResults) > 0 {
		parts = append(parts, "Based on the tools I called:")
		for _, r := range ec.OrderedToolResults() {
			parts = append(parts, r.Texts()...)
		}
	}

	if len(ec.Memories) > 0 {
		parts = append(parts, fmt.Sprintf("Based on our previous conversations, I found %d relevant memories:", len(ec.Memories)))
		for i, m := range ec.Memories {
			if i == maxMemoriesInResponse {
				break
			}
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, m.Entry.Content))
		}
	}

	if len(parts) == 0 {
		return domain.Complete(""), nil
	}
	return domain.Complete(strings.Join(parts, "\n\n")), nil
}
