// Package mcp exposes the search dispatcher as a Model Context Protocol
// server over stdio or streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/basket/perplexity-mcp/internal/tools"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName is the implementation name announced during initialization.
const ServerName = "perplexity-mcp"

// Invoker runs one tool call by name.
type Invoker interface {
	Capabilities() []tools.Capability
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// Server binds an Invoker to an MCP server.
type Server struct {
	invoker Invoker
	logger  *slog.Logger
	server  *mcpsdk.Server
}

// NewServer registers every capability of inv as an MCP tool.
func NewServer(inv Invoker, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		invoker: inv,
		logger:  logger,
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    ServerName,
			Version: version,
		}, nil),
	}
	for _, c := range inv.Capabilities() {
		s.server.AddTool(&mcpsdk.Tool{
			Name:        c.Name,
			Description: c.Description,
			InputSchema: c.InputSchema,
		}, s.handle)
	}
	return s
}

// Run serves a single session on t until the peer disconnects or ctx ends.
func (s *Server) Run(ctx context.Context, t mcpsdk.Transport) error {
	if err := s.server.Run(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// Connect starts a session on t without blocking.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// HTTPHandler serves the same tools over streamable HTTP.
func (s *Server) HTTPHandler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.server
	}, nil)
}

func (s *Server) handle(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	name := req.Params.Name
	args, err := decodeArguments(req.Params.Arguments)
	if err != nil {
		s.logger.Info("tool call rejected", "tool", name, "error", err)
		return errorResult(err.Error()), nil
	}

	text, err := s.invoker.Invoke(ctx, name, args)
	if err != nil {
		if tools.ErrorKindOf(err) == tools.KindUnknownCapability {
			return nil, err
		}
		return errorResult(err.Error()), nil
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}, nil
}

// decodeArguments accepts a JSON object, null, or nothing.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, errors.New("invalid arguments: arguments must be a JSON object")
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
		IsError: true,
	}
}
