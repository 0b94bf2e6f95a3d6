package runner

import (
	"log/slog"

	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
	"github.com/ravituringworks/agency/pkg/session"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSystemPrompt seeds new conversations.
const DefaultSystemPrompt = "You are a helpful AI assistant with access to various tools and a memory system. Use your capabilities to assist users effectively."

// Config tunes conversation handling.
type Config struct {
	// SystemPrompt is the first message of every new conversation.
	SystemPrompt string
	// MaxHistory caps stored messages, not counting a leading system message.
	MaxHistory int
	// MaxSteps is the round budget of each turn.
	MaxSteps int
	// UseMemory enables memory retrieval and storing finished turns.
	UseMemory bool
	// UseTools advertises the executor's tools to the steps.
	UseTools bool
	// MemoryLimit caps search results per query.
	MemoryLimit int
}

// DefaultConfig returns the stock conversation settings.
func DefaultConfig() Config {
	return Config{
		SystemPrompt: DefaultSystemPrompt,
		MaxHistory:   20,
		MaxSteps:     5,
		UseMemory:    true,
		UseTools:     true,
		MemoryLimit:  10,
	}
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithConfig replaces the conversation settings.
func WithConfig(cfg Config) Option {
	return func(r *Runner) {
		r.config = cfg
	}
}

// WithTools configures the executor for tool calls.
func WithTools(tools ports.ToolExecutor) Option {
	return func(r *Runner) {
		r.tools = tools
	}
}

// WithMemory configures the memory store.
func WithMemory(memory ports.MemoryStore) Option {
	return func(r *Runner) {
		r.memory = memory
	}
}

// WithGenerator configures the fallback text generator.
func WithGenerator(gen ports.TextGenerator) Option {
	return func(r *Runner) {
		r.generator = gen
	}
}

// WithSessions configures the conversation session manager.
func WithSessions(sessions *session.Manager) Option {
	return func(r *Runner) {
		r.sessions = sessions
	}
}

// WithInterceptor configures the tool execution policy.
func WithInterceptor(interceptor ToolInterceptor) Option {
	return func(r *Runner) {
		r.interceptor = interceptor
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithHooks registers tool lifecycle hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.hooks = hooks
	}
}

// WithTracer overrides the global otel tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}
