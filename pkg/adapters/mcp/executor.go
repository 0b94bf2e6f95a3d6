package mcp

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
)

// ToolClient is the part of an MCP client the Executor needs.
// *client.Client implements it.
type ToolClient interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Executor implements ports.ToolExecutor over an MCP server connection.
// The tool list is fetched once and cached until Refresh.
type Executor struct {
	client ToolClient

	mu    sync.Mutex
	tools []string
}

var _ ports.ToolExecutor = (*Executor)(nil)

// NewExecutor performs the MCP handshake on c and returns an Executor.
func NewExecutor(ctx context.Context, c ToolClient, clientName, clientVersion string) (*Executor, error) {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.Initialize(ctx, req); err != nil {
		return nil, fmt.Errorf("mcp initialize failed: %w", err)
	}
	return &Executor{client: c}, nil
}

// NewStdioExecutor launches command as an MCP server speaking over stdio.
func NewStdioExecutor(ctx context.Context, command string, env, args []string, clientVersion string) (*Executor, *client.Client, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start mcp server %q: %w", command, err)
	}
	ex, err := NewExecutor(ctx, c, "agency", clientVersion)
	if err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	return ex, c, nil
}

// Tools lists the server's tool names.
func (e *Executor) Tools(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tools != nil {
		return slices.Clone(e.tools), nil
	}
	if err := e.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(e.tools), nil
}

// Refresh drops the cached tool list and fetches it again.
func (e *Executor) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshLocked(ctx)
}

func (e *Executor) refreshLocked(ctx context.Context) error {
	res, err := e.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("mcp list tools failed: %w", err)
	}
	names := make([]string, 0, len(res.Tools))
	for _, t := range res.Tools {
		names = append(names, t.Name)
	}
	e.tools = names
	return nil
}

// Execute calls the tool on the server.
func (e *Executor) Execute(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error) {
	tools, err := e.Tools(ctx)
	if err != nil {
		return domain.ToolResult{}, err
	}
	if !slices.Contains(tools, call.Name) {
		return domain.ToolResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownTool, call.Name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = call.Name
	req.Params.Arguments = call.Args

	res, err := e.client.CallTool(ctx, req)
	if err != nil {
		return domain.ToolResult{}, fmt.Errorf("mcp call %s failed: %w", call.Name, err)
	}
	return domain.ToolResult{
		ID:      call.ID,
		Content: convertContent(res.Content),
		IsError: res.IsError,
	}, nil
}

func convertContent(contents []mcp.Content) []domain.ToolContent {
	out := make([]domain.ToolContent, 0, len(contents))
	for _, c := range contents {
		switch v := c.(type) {
		case mcp.TextContent:
			out = append(out, domain.TextContent(v.Text))
		case *mcp.TextContent:
			out = append(out, domain.TextContent(v.Text))
		case mcp.ImageContent:
			out = append(out, domain.ToolContent{Type: domain.ContentImage, Data: v.Data, MimeType: v.MIMEType})
		case *mcp.ImageContent:
			out = append(out, domain.ToolContent{Type: domain.ContentImage, Data: v.Data, MimeType: v.MIMEType})
		case mcp.EmbeddedResource:
			out = append(out, resourceContent(v.Resource))
		case *mcp.EmbeddedResource:
			out = append(out, resourceContent(v.Resource))
		}
	}
	return out
}

func resourceContent(r mcp.ResourceContents) domain.ToolContent {
	switch v := r.(type) {
	case mcp.TextResourceContents:
		return domain.ToolContent{Type: domain.ContentResource, URI: v.URI, MimeType: v.MIMEType, Text: v.Text}
	case *mcp.TextResourceContents:
		return domain.ToolContent{Type: domain.ContentResource, URI: v.URI, MimeType: v.MIMEType, Text: v.Text}
	case mcp.BlobResourceContents:
		return domain.ToolContent{Type: domain.ContentResource, URI: v.URI, MimeType: v.MIMEType, Data: v.Blob}
	case *mcp.BlobResourceContents:
		return domain.ToolContent{Type: domain.ContentResource, URI: v.URI, MimeType: v.MIMEType, Data: v.Blob}
	}
	return domain.ToolContent{Type: domain.ContentResource}
}
