// Package mcp bridges the agent and the Model Context Protocol: Server exposes
// a Runner and local tools to MCP clients, Executor calls tools hosted by an
// MCP server.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ravituringworks/agency/internal/logging"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/registry"
	"github.com/ravituringworks/agency/pkg/runner"
)

// ToolsURI is the resource listing the tools this server exposes.
const ToolsURI = "agency://tools"

// ChatArgs are the arguments of the chat tool.
type ChatArgs struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is the structured output of the chat tool.
type ChatResponse struct {
	SessionID     string `json:"session_id" jsonschema_description:"Conversation the turn belongs to"`
	Response      string `json:"response" jsonschema_description:"Assistant reply"`
	StepsExecuted int    `json:"steps_executed" jsonschema_description:"Orchestrator rounds used"`
	Generated     bool   `json:"generated" jsonschema_description:"True when the text generator produced the reply"`
}

// Server exposes an agent as an MCP server.
type Server struct {
	runner    *runner.Runner
	tools     *registry.Registry
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRegistry re-exports the registry's tools as MCP tools.
func WithRegistry(reg *registry.Registry) ServerOption {
	return func(s *Server) {
		s.tools = reg
	}
}

// WithLogger configures the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server around r.
func NewServer(r *runner.Runner, version string, opts ...ServerOption) *Server {
	s := &Server{
		runner: r,
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("agency-mcp", version,
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	chatTool := mcp.NewTool("chat",
		mcp.WithDescription("Send a message to the agent and get its reply. Turns with the same session_id share history."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation identifier")),
		mcp.WithString("message", mcp.Required(), mcp.Description("User message")),
		mcp.WithOutputSchema[ChatResponse](),
	)
	s.mcpServer.AddTool(chatTool, mcp.NewStructuredToolHandler(s.handleChat))

	if s.tools == nil {
		return
	}
	for _, tool := range s.tools.Describe() {
		s.mcpServer.AddTool(mcp.NewTool(tool.Name, mcp.WithDescription(tool.Description)), s.localToolHandler(tool.Name))
	}
}

func (s *Server) handleChat(ctx context.Context, _ mcp.CallToolRequest, args ChatArgs) (ChatResponse, error) {
	if args.SessionID == "" {
		args.SessionID = uuid.NewString()
	}
	reply, err := s.runner.Chat(ctx, args.SessionID, args.Message)
	if err != nil {
		s.logger.Warn("MCP chat failed", "session_id", args.SessionID, "err", err)
		return ChatResponse{}, fmt.Errorf("chat failed: %w", err)
	}
	return ChatResponse{
		SessionID:     reply.SessionID,
		Response:      reply.Response,
		StepsExecuted: reply.StepsExecuted,
		Generated:     reply.Generated,
	}, nil
}

func (s *Server) localToolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := s.tools.Execute(ctx, domain.ToolCall{
			ID:   uuid.NewString(),
			Name: name,
			Args: request.GetArguments(),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if res.IsError {
			return mcp.NewToolResultError(res.Text()), nil
		}
		return mcp.NewToolResultText(res.Text()), nil
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ToolsURI, "Available Tools",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := s.runner.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tools: %w", err)
		}
		if names == nil {
			names = []string{}
		}
		data, err := json.Marshal(names)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ToolsURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
