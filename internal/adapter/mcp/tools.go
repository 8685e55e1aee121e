package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/research-developer/agentmux/internal/domain/agent"
	"github.com/research-developer/agentmux/internal/domain/cascade"
	"github.com/research-developer/agentmux/internal/domain/role"
	"github.com/research-developer/agentmux/internal/domain/team"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.registerAgentTool(),
		s.removeAgentTool(),
		s.getAgentTool(),
		s.listAgentsTool(),
		s.createTeamTool(),
		s.removeTeamTool(),
		s.listTeamsTool(),
		s.getTeamHierarchyTool(),
		s.assignRoleTool(),
		s.removeRoleTool(),
		s.checkToolPermissionTool(),
		s.sendMessageTool(),
		s.listDispatchesTool(),
	)
}

func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}

func marshalResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

func stringMapArg(args map[string]any, key string) map[string]string {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if str, ok := v.(string); ok {
			out[k] = str
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Agent tools
// ---------------------------------------------------------------------------

func (s *Server) registerAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("register_agent",
		mcplib.WithDescription("Register an agent bound to a terminal session"),
		mcplib.WithString("name",
			mcplib.Required(),
			mcplib.Description("Unique agent name"),
		),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("Terminal session the agent is bound to"),
		),
		mcplib.WithArray("teams",
			mcplib.Description("Teams the agent joins, in priority order"),
		),
		mcplib.WithObject("metadata",
			mcplib.Description("Free-form string metadata"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRegisterAgent}
}

func (s *Server) handleRegisterAgent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()
	rr := agent.RegisterRequest{
		Name:      stringArg(args, "name"),
		SessionID: stringArg(args, "session_id"),
		Teams:     stringSliceArg(args, "teams"),
		Metadata:  stringMapArg(args, "metadata"),
	}
	a, err := s.svc.RegisterAgent(ctx, CallerFromContext(ctx), rr)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to register agent", err), nil
	}
	return marshalResult(a)
}

func (s *Server) removeAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("remove_agent",
		mcplib.WithDescription("Remove an agent and its role assignments"),
		mcplib.WithString("name",
			mcplib.Required(),
			mcplib.Description("Agent name to remove"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRemoveAgent}
}

func (s *Server) handleRemoveAgent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := stringArg(req.GetArguments(), "name")
	if name == "" {
		return mcplib.NewToolResultError("name is required"), nil
	}
	if err := s.svc.RemoveAgent(ctx, CallerFromContext(ctx), name); err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to remove agent", err), nil
	}
	return toolResultJSON(`{"removed":true}`), nil
}

func (s *Server) getAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_agent",
		mcplib.WithDescription("Get an agent by name"),
		mcplib.WithString("name",
			mcplib.Required(),
			mcplib.Description("Agent name to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetAgent}
}

func (s *Server) handleGetAgent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := stringArg(req.GetArguments(), "name")
	if name == "" {
		return mcplib.NewToolResultError("name is required"), nil
	}
	a, err := s.svc.GetAgent(name)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to get agent", err), nil
	}
	return marshalResult(a)
}

func (s *Server) listAgentsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_agents",
		mcplib.WithDescription("List registered agents, optionally filtered by team"),
		mcplib.WithString("team",
			mcplib.Description("Only agents belonging to this team"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListAgents}
}

func (s *Server) handleListAgents(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	var agents []*agent.Agent
	if teamName := stringArg(req.GetArguments(), "team"); teamName != "" {
		agents = s.svc.GetAgentsByTeam(teamName)
	} else {
		agents = s.svc.ListAgents()
	}
	if agents == nil {
		agents = []*agent.Agent{}
	}
	return marshalResult(agents)
}

// ---------------------------------------------------------------------------
// Team tools
// ---------------------------------------------------------------------------

func (s *Server) createTeamTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("create_team",
		mcplib.WithDescription("Create a team, optionally nested under a parent team"),
		mcplib.WithString("name",
			mcplib.Required(),
			mcplib.Description("Unique team name"),
		),
		mcplib.WithString("parent",
			mcplib.Description("Parent team name, empty for a root team"),
		),
		mcplib.WithString("description",
			mcplib.Description("Human-readable team description"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCreateTeam}
}

func (s *Server) handleCreateTeam(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()
	cr := team.CreateRequest{
		Name:        stringArg(args, "name"),
		Parent:      stringArg(args, "parent"),
		Description: stringArg(args, "description"),
		Metadata:    stringMapArg(args, "metadata"),
	}
	t, err := s.svc.CreateTeam(ctx, cr)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to create team", err), nil
	}
	return marshalResult(t)
}

func (s *Server) removeTeamTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("remove_team",
		mcplib.WithDescription("Remove a team, reparenting child teams and updating member agents"),
		mcplib.WithString("name",
			mcplib.Required(),
			mcplib.Description("Team name to remove"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRemoveTeam}
}

func (s *Server) handleRemoveTeam(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := stringArg(req.GetArguments(), "name")
	if name == "" {
		return mcplib.NewToolResultError("name is required"), nil
	}
	if err := s.svc.RemoveTeam(ctx, name); err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to remove team", err), nil
	}
	return toolResultJSON(`{"removed":true}`), nil
}

func (s *Server) listTeamsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_teams",
		mcplib.WithDescription("List teams, optionally filtered by a name substring"),
		mcplib.WithString("filter",
			mcplib.Description("Substring to match against team names"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListTeams}
}

func (s *Server) handleListTeams(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teams := s.svc.ListTeams(stringArg(req.GetArguments(), "filter"))
	if teams == nil {
		teams = []*team.Team{}
	}
	return marshalResult(teams)
}

func (s *Server) getTeamHierarchyTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_team_hierarchy",
		mcplib.WithDescription("Get a team's ancestor chain, nearest parent first"),
		mcplib.WithString("name",
			mcplib.Required(),
			mcplib.Description("Team name to inspect"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetTeamHierarchy}
}

func (s *Server) handleGetTeamHierarchy(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := stringArg(req.GetArguments(), "name")
	if name == "" {
		return mcplib.NewToolResultError("name is required"), nil
	}
	hier, err := s.svc.GetTeamHierarchy(name)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to get team hierarchy", err), nil
	}
	return marshalResult(hier)
}

// ---------------------------------------------------------------------------
// Role tools
// ---------------------------------------------------------------------------

func (s *Server) assignRoleTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("assign_role",
		mcplib.WithDescription("Assign a role with tool permissions to an agent or session"),
		mcplib.WithString("subject",
			mcplib.Required(),
			mcplib.Description("Agent name or session ID the role applies to"),
		),
		mcplib.WithString("role",
			mcplib.Required(),
			mcplib.Description("Role name: orchestrator, worker, reviewer, observer, or custom"),
		),
		mcplib.WithObject("config",
			mcplib.Description("Role config overriding the role's defaults"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleAssignRole}
}

func (s *Server) handleAssignRole(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()
	subject := stringArg(args, "subject")
	if subject == "" {
		return mcplib.NewToolResultError("subject is required"), nil
	}

	var cfg *role.Config
	if raw, ok := args["config"].(map[string]any); ok {
		data, err := json.Marshal(raw)
		if err != nil {
			return mcplib.NewToolResultErrorFromErr("failed to parse config", err), nil
		}
		cfg = &role.Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			return mcplib.NewToolResultErrorFromErr("failed to parse config", err), nil
		}
	}

	caller := CallerFromContext(ctx)
	asn, err := s.svc.AssignRole(ctx, caller, subject, role.Role(stringArg(args, "role")), cfg, caller)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to assign role", err), nil
	}
	return marshalResult(asn)
}

func (s *Server) removeRoleTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("remove_role",
		mcplib.WithDescription("Remove a subject's role assignment"),
		mcplib.WithString("subject",
			mcplib.Required(),
			mcplib.Description("Agent name or session ID whose assignment is removed"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRemoveRole}
}

func (s *Server) handleRemoveRole(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	subject := stringArg(req.GetArguments(), "subject")
	if subject == "" {
		return mcplib.NewToolResultError("subject is required"), nil
	}
	if err := s.svc.RemoveRole(ctx, CallerFromContext(ctx), subject); err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to remove role", err), nil
	}
	return toolResultJSON(`{"removed":true}`), nil
}

func (s *Server) checkToolPermissionTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("check_tool_permission",
		mcplib.WithDescription("Check whether a subject may use a tool"),
		mcplib.WithString("subject",
			mcplib.Required(),
			mcplib.Description("Agent name or session ID to check"),
		),
		mcplib.WithString("tool",
			mcplib.Required(),
			mcplib.Description("Tool name to check"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCheckToolPermission}
}

func (s *Server) handleCheckToolPermission(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()
	subject := stringArg(args, "subject")
	toolName := stringArg(args, "tool")
	if subject == "" || toolName == "" {
		return mcplib.NewToolResultError("subject and tool are required"), nil
	}
	return marshalResult(s.svc.IsToolAllowed(ctx, subject, toolName))
}

// ---------------------------------------------------------------------------
// Cascade tools
// ---------------------------------------------------------------------------

func (s *Server) sendMessageTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("send_message",
		mcplib.WithDescription("Send a cascading message; each agent receives the most specific matching content"),
		mcplib.WithString("broadcast",
			mcplib.Description("Content delivered to every agent without a more specific match"),
		),
		mcplib.WithObject("teams",
			mcplib.Description("Team name to content overrides"),
		),
		mcplib.WithObject("agents",
			mcplib.Description("Agent name to content overrides"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleSendMessage}
}

func (s *Server) handleSendMessage(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()
	msg := cascade.Message{
		Broadcast: stringArg(args, "broadcast"),
		Teams:     stringMapArg(args, "teams"),
		Agents:    stringMapArg(args, "agents"),
	}
	result, err := s.svc.SendCascade(ctx, msg)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to send message", err), nil
	}
	return marshalResult(result)
}

func (s *Server) listDispatchesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_dispatches",
		mcplib.WithDescription("List recent dispatches, newest last"),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of dispatches to return"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListDispatches}
}

func (s *Server) handleListDispatches(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	limit := 100
	if n, ok := req.GetArguments()["limit"].(float64); ok && n >= 1 {
		limit = int(n)
	}
	dispatches := s.svc.RecentDispatches(limit)
	if dispatches == nil {
		dispatches = []cascade.Dispatch{}
	}
	return marshalResult(dispatches)
}
