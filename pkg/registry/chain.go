package registry

import (
	"context"
	"fmt"
	"slices"

	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
)

// Chain routes tool calls to the first executor that lists the tool.
type Chain struct {
	executors []ports.ToolExecutor
}

var _ ports.ToolExecutor = (*Chain)(nil)

// NewChain builds a Chain. Earlier executors shadow later ones.
func NewChain(executors ...ports.ToolExecutor) *Chain {
	return &Chain{executors: executors}
}

// Tools lists the names of every executor without duplicates, in order.
func (c *Chain) Tools(ctx context.Context) ([]string, error) {
	var names []string
	for _, ex := range c.executors {
		tools, err := ex.Tools(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range tools {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// Execute runs the call on the first executor offering the tool.
func (c *Chain) Execute(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error) {
	for _, ex := range c.executors {
		tools, err := ex.Tools(ctx)
		if err != nil {
			return domain.ToolResult{}, err
		}
		if slices.Contains(tools, call.Name) {
			return ex.Execute(ctx, call)
		}
	}
	return domain.ToolResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownTool, call.Name)
}
