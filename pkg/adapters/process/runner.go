// Package process exposes allow-listed local commands as tools.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ravituringworks/agency/internal/logging"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/registry"
)

// ArgPrefix prefixes the environment variables carrying call arguments.
const ArgPrefix = "AGENCY_ARG_"

// Executor runs registered commands. Only names registered up front can run:
// call arguments never reach the command line.
type Executor struct {
	mu      sync.RWMutex
	tools   map[string]ToolConfig
	baseDir string
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithTools registers every tool of a loaded tools file.
func WithTools(tools []ToolConfig) Option {
	return func(e *Executor) {
		for _, t := range tools {
			e.tools[t.Name] = t
		}
	}
}

// WithBaseDir sets the working directory of executed commands.
func WithBaseDir(dir string) Option {
	return func(e *Executor) { e.baseDir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		tools:  make(map[string]ToolConfig),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a trusted command to the allow list.
func (e *Executor) Register(name, command string, args ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tools[name] = ToolConfig{Name: name, Command: command, Args: args}
}

// Tools lists the registered names, sorted.
func (e *Executor) Tools(_ context.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Describe returns tool definitions for registration elsewhere (e.g. MCP).
func (e *Executor) Describe() []domain.Tool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Tool, 0, len(e.tools))
	for _, t := range e.tools {
		out = append(out, domain.Tool{Name: t.Name, Description: t.Description})
	}
	slices.SortFunc(out, func(a, b domain.Tool) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Execute runs the command registered under call.Name. Arguments are passed
// as AGENCY_ARG_<KEY> environment variables. A failing command yields an error
// result carrying its stderr; JSON on stdout is re-encoded compactly.
func (e *Executor) Execute(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error) {
	e.mu.RLock()
	tool, ok := e.tools[call.Name]
	e.mu.RUnlock()
	if !ok {
		return domain.ToolResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownTool, call.Name)
	}

	if tool.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tool.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, tool.Command, tool.Args...)
	cmd.Dir = e.baseDir
	// Children that inherited stdout must not outlive the deadline.
	cmd.WaitDelay = time.Second
	cmd.Env = append(cmd.Environ(), environment(tool.Env, call.Args)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.DebugContext(ctx, "running process tool", "tool", call.Name, "command", tool.Command)
	if err := cmd.Run(); err != nil {
		msg := fmt.Sprintf("execution failed: %v", err)
		if s := strings.TrimSpace(stderr.String()); s != "" {
			msg += ". Stderr: " + s
		}
		e.logger.WarnContext(ctx, "process tool failed", "tool", call.Name, "err", err)
		return domain.ToolResult{
			ID:      call.ID,
			Content: []domain.ToolContent{domain.TextContent(msg)},
			IsError: true,
		}, nil
	}

	out := strings.TrimSpace(stdout.String())
	if json.Valid([]byte(out)) && (strings.HasPrefix(out, "{") || strings.HasPrefix(out, "[")) {
		var v any
		if err := json.Unmarshal([]byte(out), &v); err == nil {
			return registry.ToResult(call.ID, v)
		}
	}
	return registry.ToResult(call.ID, out)
}

// environment renders static env and call arguments. Scalars are formatted
// as is, anything else as JSON.
func environment(static map[string]string, args map[string]any) []string {
	env := make([]string, 0, len(static)+len(args))
	for k, v := range static {
		env = append(env, k+"="+v)
	}
	for k, v := range args {
		var val string
		switch v := v.(type) {
		case nil:
		case string:
			val = v
		case int, int64, float64, bool:
			val = fmt.Sprint(v)
		default:
			if data, err := json.Marshal(v); err == nil {
				val = string(data)
			} else {
				val = fmt.Sprint(v)
			}
		}
		env = append(env, ArgPrefix+strings.ToUpper(k)+"="+val)
	}
	return env
}
