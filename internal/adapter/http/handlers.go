package http

import (
	"net/http"
	"strconv"

	"github.com/research-developer/agentmux/internal/adapter/ws"
	"github.com/research-developer/agentmux/internal/domain/agent"
	"github.com/research-developer/agentmux/internal/domain/cascade"
	"github.com/research-developer/agentmux/internal/domain/role"
	"github.com/research-developer/agentmux/internal/domain/team"
	"github.com/research-developer/agentmux/internal/service"
)

// Handlers bundles the dependencies shared by all HTTP handlers.
type Handlers struct {
	svc *service.Orchestrator
	hub *ws.Hub
}

// NewHandlers creates the handler set.
func NewHandlers(svc *service.Orchestrator, hub *ws.Hub) *Handlers {
	return &Handlers{svc: svc, hub: hub}
}

// ---------------------------------------------------------------------------
// Agents
// ---------------------------------------------------------------------------

// RegisterAgent handles POST /agents.
func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.RegisterRequest](w, r)
	if !ok {
		return
	}
	a, err := h.svc.RegisterAgent(r.Context(), actorFrom(r), req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// GetAgent handles GET /agents/{name}.
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAgent(urlParam(r, "name"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListAgents handles GET /agents with optional team and session filters.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	var agents []*agent.Agent
	switch {
	case r.URL.Query().Get("team") != "":
		agents = h.svc.GetAgentsByTeam(r.URL.Query().Get("team"))
	case r.URL.Query().Get("session") != "":
		agents = h.svc.GetAgentsBySession(r.URL.Query().Get("session"))
	default:
		agents = h.svc.ListAgents()
	}
	if agents == nil {
		agents = []*agent.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

// RemoveAgent handles DELETE /agents/{name}.
func (h *Handlers) RemoveAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveAgent(r.Context(), actorFrom(r), urlParam(r, "name")); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Teams
// ---------------------------------------------------------------------------

// CreateTeam handles POST /teams.
func (h *Handlers) CreateTeam(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[team.CreateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.svc.CreateTeam(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "parent team not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTeam handles GET /teams/{name}.
func (h *Handlers) GetTeam(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTeam(urlParam(r, "name"))
	if err != nil {
		writeDomainError(w, err, "team not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListTeams handles GET /teams with an optional name filter.
func (h *Handlers) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams := h.svc.ListTeams(r.URL.Query().Get("filter"))
	if teams == nil {
		teams = []*team.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

// GetTeamHierarchy handles GET /teams/{name}/hierarchy.
func (h *Handlers) GetTeamHierarchy(w http.ResponseWriter, r *http.Request) {
	hier, err := h.svc.GetTeamHierarchy(urlParam(r, "name"))
	if err != nil {
		writeDomainError(w, err, "team not found")
		return
	}
	writeJSON(w, http.StatusOK, hier)
}

// RemoveTeam handles DELETE /teams/{name}.
func (h *Handlers) RemoveTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveTeam(r.Context(), urlParam(r, "name")); err != nil {
		writeDomainError(w, err, "team not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Roles and permissions
// ---------------------------------------------------------------------------

type assignRoleRequest struct {
	Subject    string       `json:"subject"`
	Role       role.Role    `json:"role"`
	Config     *role.Config `json:"config,omitempty"`
	AssignedBy string       `json:"assigned_by,omitempty"`
}

// AssignRole handles POST /roles.
func (h *Handlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[assignRoleRequest](w, r)
	if !ok {
		return
	}
	asn, err := h.svc.AssignRole(r.Context(), actorFrom(r), req.Subject, req.Role, req.Config, req.AssignedBy)
	if err != nil {
		writeDomainError(w, err, "subject not found")
		return
	}
	writeJSON(w, http.StatusCreated, asn)
}

// GetRole handles GET /roles/{subject}.
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	asn := h.svc.GetRole(urlParam(r, "subject"))
	if asn == nil {
		writeError(w, http.StatusNotFound, "no role assigned")
		return
	}
	writeJSON(w, http.StatusOK, asn)
}

// ListRoles handles GET /roles.
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles := h.svc.ListRoles()
	if roles == nil {
		roles = []*role.Assignment{}
	}
	writeJSON(w, http.StatusOK, roles)
}

// RemoveRole handles DELETE /roles/{subject}. Removing an absent
// assignment succeeds.
func (h *Handlers) RemoveRole(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveRole(r.Context(), actorFrom(r), urlParam(r, "subject")); err != nil {
		writeDomainError(w, err, "subject not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckPermission handles GET /permissions/{subject}/tools/{tool}.
func (h *Handlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	dec := h.svc.IsToolAllowed(r.Context(), urlParam(r, "subject"), urlParam(r, "tool"))
	writeJSON(w, http.StatusOK, dec)
}

// ---------------------------------------------------------------------------
// Cascade and dispatch history
// ---------------------------------------------------------------------------

// SendCascade handles POST /cascade.
func (h *Handlers) SendCascade(w http.ResponseWriter, r *http.Request) {
	msg, ok := readJSON[cascade.Message](w, r)
	if !ok {
		return
	}
	result, err := h.svc.SendCascade(r.Context(), msg)
	if err != nil {
		writeDomainError(w, err, "recipient not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListDispatches handles GET /dispatches with an optional limit.
func (h *Handlers) ListDispatches(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	dispatches := h.svc.RecentDispatches(limit)
	if dispatches == nil {
		dispatches = []cascade.Dispatch{}
	}
	writeJSON(w, http.StatusOK, dispatches)
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

// CompactJournals handles POST /admin/compact.
func (h *Handlers) CompactJournals(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CompactJournals(r.Context()); err != nil {
		writeDomainError(w, err, "journal not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "compacted"})
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	agents, teams, assignments := h.svc.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"agents":      agents,
		"teams":       teams,
		"roles":       assignments,
		"connections": h.hub.ConnectionCount(),
	})
}
