// Package mcp exposes the registry and cascade router as Model Context
// Protocol tools over streamable HTTP.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/research-developer/agentmux/internal/service"
)

type callerKey struct{}

// CallerFromContext returns the agent name of the MCP caller, or "" for
// an unattributed caller.
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey{}).(string)
	return caller
}

// Server wraps an mcp-go server around the orchestration facade. Every
// tool call passes through a permission middleware that consults the
// caller's role assignment before the handler runs.
type Server struct {
	mcpServer *mcpserver.MCPServer
	svc       *service.Orchestrator
	log       *slog.Logger
}

// NewServer creates the MCP server and registers all tools.
func NewServer(svc *service.Orchestrator, logger *slog.Logger) *Server {
	s := &Server{svc: svc, log: logger.With("component", "mcp")}

	s.mcpServer = mcpserver.NewMCPServer(
		"agentmux",
		"0.1.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithToolHandlerMiddleware(s.permissionMiddleware),
	)
	s.registerTools()

	return s
}

// HTTPHandler returns the streamable HTTP transport for mounting under a
// path on the main router. The X-Agent-Name header identifies the caller
// for permission checks.
func (s *Server) HTTPHandler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(
		s.mcpServer,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return context.WithValue(ctx, callerKey{}, r.Header.Get("X-Agent-Name"))
		}),
	)
}

// permissionMiddleware denies a tool call when the caller's role
// assignment restricts the tool. Unattributed callers and callers
// without an assignment pass through.
func (s *Server) permissionMiddleware(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		caller := CallerFromContext(ctx)
		if caller != "" {
			dec := s.svc.IsToolAllowed(ctx, caller, req.Params.Name)
			if !dec.Allowed {
				s.log.Warn("tool call denied",
					"caller", caller, "tool", req.Params.Name, "reason", dec.Reason)
				return mcplib.NewToolResultError("tool not permitted: " + dec.Reason), nil
			}
		}
		return next(ctx, req)
	}
}
