package runner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ravituringworks/agency/internal/logging"
	"github.com/ravituringworks/agency/pkg/adapters/memory"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/orchestrator"
	"github.com/ravituringworks/agency/pkg/ports"
	"github.com/ravituringworks/agency/pkg/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ravituringworks/agency/pkg/runner"

// Reply is the outcome of one conversation turn.
type Reply struct {
	SessionID     string              `json:"session_id,omitempty"`
	Response      string              `json:"response"`
	StepsExecuted int                 `json:"steps_executed"`
	ToolResults   []domain.ToolResult `json:"tool_results,omitempty"`
	Memories      int                 `json:"memories"`
	// Generated is true when the text generator produced the response.
	Generated bool `json:"generated"`
}

// Runner hosts the orchestrator: it performs the side-effects steps ask for.
type Runner struct {
	orch        *orchestrator.Orchestrator
	tools       ports.ToolExecutor
	memory      ports.MemoryStore
	generator   ports.TextGenerator
	sessions    *session.Manager
	interceptor ToolInterceptor
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	tracer      trace.Tracer
	config      Config
}

// New creates a Runner around orch. Without WithSessions, histories live in memory.
func New(orch *orchestrator.Orchestrator, opts ...Option) *Runner {
	r := &Runner{
		orch:   orch,
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	if r.interceptor == nil {
		r.interceptor = AutoApproveMiddleware()
	}
	if r.sessions == nil {
		r.sessions = session.NewManager(memory.NewConversationStore(), session.WithLogger(r.logger))
	}
	return r
}

// Sessions returns the session manager.
func (r *Runner) Sessions() *session.Manager {
	return r.sessions
}

// Tools lists the tools advertised to steps, or nil when tools are disabled.
func (r *Runner) Tools(ctx context.Context) ([]string, error) {
	if !r.config.UseTools || r.tools == nil {
		return nil, nil
	}
	return r.tools.Tools(ctx)
}

// Chat runs one turn of the session's conversation and stores the exchange.
func (r *Runner) Chat(ctx context.Context, sessionID, input string) (*Reply, error) {
	clean, err := SanitizeInput(input)
	if err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "runner.chat", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	var reply *Reply
	err = r.sessions.Turn(ctx, sessionID, r.config.SystemPrompt, func(ctx context.Context, history []domain.Message) ([]domain.Message, error) {
		history = append(history, domain.UserMessage(clean))

		var err error
		reply, err = r.Process(ctx, history)
		if err != nil {
			return nil, err
		}

		history = append(history, domain.AssistantMessage(reply.Response))
		return session.Limit(history, r.config.MaxHistory), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		return nil, err
	}
	reply.SessionID = sessionID
	span.SetAttributes(attribute.Int("steps_executed", reply.StepsExecuted), attribute.Bool("generated", reply.Generated))

	r.remember(ctx, clean, reply.Response)
	return reply, nil
}

// Process answers the last message of history without touching any session.
func (r *Runner) Process(ctx context.Context, history []domain.Message) (*Reply, error) {
	ec := domain.NewExecutionContext(r.config.MaxSteps)
	for _, m := range history {
		ec.AddMessage(m)
	}

	tools, err := r.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	ec.AvailableTools = tools

	res, err := r.orch.Run(ctx, ec)
	if err != nil {
		return nil, err
	}

	for res.HasPendingActions() {
		switch {
		case res.PendingToolCalls != nil:
			if err := r.executeTools(ctx, res.Context, res.PendingToolCalls); err != nil {
				return nil, err
			}
		case res.PendingMemoryQuery != nil:
			if err := r.retrieveMemories(ctx, res.Context, *res.PendingMemoryQuery); err != nil {
				return nil, err
			}
		}

		// StepCount carries over, so repeated pauses still exhaust the budget.
		res, err = r.orch.Run(ctx, res.Context)
		if err != nil {
			return nil, err
		}
	}

	reply := &Reply{
		Response:      res.Response,
		StepsExecuted: res.StepsExecuted,
		ToolResults:   res.Context.OrderedToolResults(),
		Memories:      len(res.Context.Memories),
	}

	if !res.Completed || res.Response == "" {
		if r.generator == nil {
			r.logger.WarnContext(ctx, "no text generator configured; returning step response as is")
			return reply, nil
		}
		text, err := r.generator.Generate(ctx, r.generationMessages(res.Context))
		if err != nil {
			return nil, fmt.Errorf("failed to generate response: %w", err)
		}
		reply.Response = text
		reply.Generated = true
	}
	return reply, nil
}

func (r *Runner) executeTools(ctx context.Context, ec *domain.ExecutionContext, calls []domain.ToolCall) error {
	r.logger.DebugContext(ctx, "handling tool calls", "count", len(calls))

	for _, call := range calls {
		allowed, denial, err := r.interceptor(ctx, call)
		if err != nil {
			return fmt.Errorf("tool interceptor error: %w", err)
		}
		if !allowed {
			denial.ID = call.ID
			ec.AddToolResult(call.ID, denial)
			r.logger.InfoContext(ctx, "tool call denied", "tool", call.Name, "call_id", call.ID)
			continue
		}

		if r.tools == nil {
			r.logger.WarnContext(ctx, "tool call ignored: no executor configured", "tool", call.Name)
			continue
		}

		if r.hooks.OnToolCall != nil {
			r.hooks.OnToolCall(ctx, &domain.ToolEvent{
				EventBase: domain.NewEventBase(domain.EventToolCall),
				CallID:    call.ID,
				ToolName:  call.Name,
				Input:     call.Args,
			})
		}

		start := time.Now()
		result, err := r.tools.Execute(ctx, call)
		event := &domain.ToolEvent{
			EventBase: domain.NewEventBase(domain.EventToolReturn),
			CallID:    call.ID,
			ToolName:  call.Name,
			Duration:  time.Since(start),
		}
		if err != nil {
			// A failed call is skipped; the remaining calls still run.
			r.logger.WarnContext(ctx, "Tool call failed", "tool", call.Name, "err", err)
			event.IsError = true
			event.Output = err.Error()
			if r.hooks.OnToolReturn != nil {
				r.hooks.OnToolReturn(ctx, event)
			}
			continue
		}

		result.ID = call.ID
		ec.AddToolResult(call.ID, result)
		event.IsError = result.IsError
		event.Output = result.Text()
		if r.hooks.OnToolReturn != nil {
			r.hooks.OnToolReturn(ctx, event)
		}
	}
	return nil
}

func (r *Runner) retrieveMemories(ctx context.Context, ec *domain.ExecutionContext, query string) error {
	if !r.config.UseMemory || r.memory == nil {
		// Mark anyway so the memory step does not ask again.
		ec.MarkMemoriesRetrieved()
		return nil
	}

	results, err := r.memory.Search(ctx, query, r.config.MemoryLimit)
	if err != nil {
		return fmt.Errorf("memory search failed: %w", err)
	}
	ec.SetMemories(results)
	r.logger.DebugContext(ctx, "retrieved relevant memories", "count", len(results))
	return nil
}

// generationMessages is the conversation plus summaries of tool results and memories.
func (r *Runner) generationMessages(ec *domain.ExecutionContext) []domain.Message {
	messages := slices.Clone(ec.Messages)

	if len(ec.ToolResults) > 0 {
		var b strings.Builder
		b.WriteString("Tool results:\n")
		for _, res := range ec.OrderedToolResults() {
			for _, text := range res.Texts() {
				fmt.Fprintf(&b, "- %s\n", text)
			}
		}
		messages = append(messages, domain.AssistantMessage(b.String()))
	}

	if len(ec.Memories) > 0 && r.config.UseMemory {
		var b strings.Builder
		b.WriteString("Relevant memories:\n")
		for _, m := range ec.Memories {
			fmt.Fprintf(&b, "- %s\n", m.Entry.Content)
		}
		messages = append(messages, domain.AssistantMessage(b.String()))
	}
	return messages
}

// remember stores the exchange as a conversation memory. Failures are logged:
// the turn has already been committed to the session.
func (r *Runner) remember(ctx context.Context, input, response string) {
	if !r.config.UseMemory || r.memory == nil {
		return
	}
	now := time.Now().UTC()
	_, err := r.memory.Store(ctx, domain.MemoryEntry{
		Content: fmt.Sprintf("User: %s\nAssistant: %s", input, response),
		Metadata: map[string]string{
			"type":      "conversation",
			"timestamp": now.Format(time.RFC3339),
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "failed to store conversation memory", "err", err)
	}
}
