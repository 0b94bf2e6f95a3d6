// Package registry holds tools implemented in-process and exposes them,
// alone or chained with remote executors, as a ports.ToolExecutor.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
)

// ToolFunction defines the signature for a tool implementation.
// It receives a context and a map of arguments, and returns a result or error.
type ToolFunction func(ctx context.Context, args map[string]any) (any, error)

// Typed adapts a function taking a struct to a ToolFunction, decoding the
// call arguments with mapstructure. Unknown keys are rejected.
func Typed[T any](fn func(ctx context.Context, args T) (any, error)) ToolFunction {
	return func(ctx context.Context, raw map[string]any) (any, error) {
		var args T
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &args,
			ErrorUnused:      true,
			WeaklyTypedInput: true,
			TagName:          "json",
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return fn(ctx, args)
	}
}

type entry struct {
	tool domain.Tool
	fn   ToolFunction
}

// Registry manages the in-process tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

var _ ports.ToolExecutor = (*Registry)(nil)

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]entry),
	}
}

// NewBuiltin creates a registry holding the built-in tools.
func NewBuiltin() *Registry {
	r := NewRegistry()
	r.Register(domain.Tool{
		Name:        SystemInfoTool,
		Description: "Reports the host operating system, architecture and family.",
	}, SystemInfo)
	return r
}

// Register adds a tool to the registry.
// If a tool with the same name exists, it is overwritten.
func (r *Registry) Register(tool domain.Tool, fn ToolFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = entry{tool: tool, fn: fn}
}

// Tools lists the registered tool names in sorted order.
func (r *Registry) Tools(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Describe returns the metadata of every tool, sorted by name.
func (r *Registry) Describe() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Tool, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.tool)
	}
	slices.SortFunc(out, func(a, b domain.Tool) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Execute looks up a tool by name and runs it.
// A failing tool yields an error result, not an error; unknown tools yield
// domain.ErrUnknownTool.
func (r *Registry) Execute(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error) {
	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		return domain.ToolResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownTool, call.Name)
	}

	out, err := e.fn(ctx, call.Args)
	if err != nil {
		return domain.ToolResult{
			ID:      call.ID,
			Content: []domain.ToolContent{domain.TextContent(err.Error())},
			IsError: true,
		}, nil
	}
	return ToResult(call.ID, out)
}

// ToResult converts a tool return value into a ToolResult. Strings become a
// text part, ToolResult values are re-tagged with id, anything else is
// rendered as JSON text.
func ToResult(id string, out any) (domain.ToolResult, error) {
	switch v := out.(type) {
	case domain.ToolResult:
		v.ID = id
		return v, nil
	case string:
		return domain.ToolResult{ID: id, Content: []domain.ToolContent{domain.TextContent(v)}}, nil
	case nil:
		return domain.ToolResult{ID: id, Content: []domain.ToolContent{}}, nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return domain.ToolResult{}, fmt.Errorf("failed to encode tool output: %w", err)
	}
	return domain.ToolResult{ID: id, Content: []domain.ToolContent{domain.TextContent(string(data))}}, nil
}
