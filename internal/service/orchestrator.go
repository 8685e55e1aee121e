// Package service implements the orchestration facade: the single entry
// point external collaborators (HTTP, MCP) call. It wraps the registry
// with actor permission gates, event fan-out, caching, and metrics; the
// registry itself owns state and durability.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/research-developer/agentmux/internal/adapter/otel"
	"github.com/research-developer/agentmux/internal/adapter/ws"
	"github.com/research-developer/agentmux/internal/domain"
	"github.com/research-developer/agentmux/internal/domain/agent"
	"github.com/research-developer/agentmux/internal/domain/team"
	"github.com/research-developer/agentmux/internal/port/broadcast"
	"github.com/research-developer/agentmux/internal/port/cache"
	"github.com/research-developer/agentmux/internal/port/messagequeue"
	"github.com/research-developer/agentmux/internal/registry"
	"github.com/research-developer/agentmux/internal/resilience"
)

// Orchestrator is the facade over the registry. The queue, cache, and
// metrics are optional; a nil queue or cache disables that concern.
type Orchestrator struct {
	store   *registry.Store
	hub     broadcast.Broadcaster
	queue   messagequeue.Queue
	cache   cache.Cache
	ttl     time.Duration
	metrics *otel.Metrics
	log     *slog.Logger
	breaker *resilience.Breaker

	// gen versions the permission cache; bumping it invalidates every
	// cached decision without enumerating keys.
	gen atomic.Uint64
}

// Options configures an Orchestrator.
type Options struct {
	Hub      broadcast.Broadcaster
	Queue    messagequeue.Queue
	Cache    cache.Cache
	CacheTTL time.Duration
	Metrics  *otel.Metrics
	Logger   *slog.Logger
}

// New creates an Orchestrator over the given registry store.
func New(store *registry.Store, opts Options) *Orchestrator {
	hub := opts.Hub
	if hub == nil {
		hub = broadcast.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Orchestrator{
		store:   store,
		hub:     hub,
		queue:   opts.Queue,
		cache:   opts.Cache,
		ttl:     ttl,
		metrics: opts.Metrics,
		log:     logger,
		breaker: resilience.NewBreaker(5, 30*time.Second),
	}
}

// RegisterAgent registers a new agent on behalf of actor. An empty actor
// is trusted (administrative callers); otherwise the actor's role must
// allow spawning agents.
func (o *Orchestrator) RegisterAgent(ctx context.Context, actor string, req agent.RegisterRequest) (*agent.Agent, error) {
	if err := o.gateSpawn(actor); err != nil {
		return nil, err
	}

	a, err := o.store.RegisterAgent(ctx, req)
	if err != nil {
		return nil, err
	}

	o.log.Info("agent registered", "agent", a.Name, "session", a.SessionID, "teams", a.Teams, "actor", actor)
	if o.metrics != nil {
		o.metrics.AgentsRegistered.Add(ctx, 1)
	}
	o.hub.BroadcastEvent(ctx, ws.EventAgentRegistered, ws.AgentEvent{Name: a.Name, SessionID: a.SessionID, Teams: a.Teams})
	o.publish(ctx, messagequeue.SubjectAgentRegistered, a)
	return a, nil
}

// RemoveAgent removes an agent on behalf of actor.
func (o *Orchestrator) RemoveAgent(ctx context.Context, actor, name string) error {
	if err := o.gateSpawn(actor); err != nil {
		return err
	}

	if err := o.store.RemoveAgent(ctx, name); err != nil {
		return err
	}

	// Removal may have cleared role assignments bound to the agent.
	o.invalidatePermissions()

	o.log.Info("agent removed", "agent", name, "actor", actor)
	o.hub.BroadcastEvent(ctx, ws.EventAgentRemoved, ws.AgentEvent{Name: name})
	o.publish(ctx, messagequeue.SubjectAgentRemoved, map[string]string{"name": name})
	return nil
}

// GetAgent returns the named agent.
func (o *Orchestrator) GetAgent(name string) (*agent.Agent, error) {
	return o.store.GetAgent(name)
}

// ListAgents returns all agents sorted by name.
func (o *Orchestrator) ListAgents() []*agent.Agent {
	return o.store.ListAgents()
}

// GetAgentsByTeam returns the members of a team.
func (o *Orchestrator) GetAgentsByTeam(teamName string) []*agent.Agent {
	return o.store.GetAgentsByTeam(teamName)
}

// GetAgentsBySession returns the agents bound to a session handle.
func (o *Orchestrator) GetAgentsBySession(sessionID string) []*agent.Agent {
	return o.store.GetAgentsBySession(sessionID)
}

// CreateTeam creates a new team.
func (o *Orchestrator) CreateTeam(ctx context.Context, req team.CreateRequest) (*team.Team, error) {
	t, err := o.store.CreateTeam(ctx, req)
	if err != nil {
		return nil, err
	}

	o.log.Info("team created", "team", t.Name, "parent", t.Parent)
	o.hub.BroadcastEvent(ctx, ws.EventTeamCreated, ws.TeamEvent{Name: t.Name, Parent: t.Parent})
	o.publish(ctx, messagequeue.SubjectTeamCreated, t)
	return t, nil
}

// RemoveTeam removes a team, reparenting its children.
func (o *Orchestrator) RemoveTeam(ctx context.Context, name string) error {
	if err := o.store.RemoveTeam(ctx, name); err != nil {
		return err
	}

	o.log.Info("team removed", "team", name)
	o.hub.BroadcastEvent(ctx, ws.EventTeamRemoved, ws.TeamEvent{Name: name})
	o.publish(ctx, messagequeue.SubjectTeamRemoved, map[string]string{"name": name})
	return nil
}

// GetTeam returns the named team.
func (o *Orchestrator) GetTeam(name string) (*team.Team, error) {
	return o.store.GetTeam(name)
}

// ListTeams returns teams, optionally filtered by a name substring.
func (o *Orchestrator) ListTeams(filter string) []*team.Team {
	return o.store.ListTeams(filter)
}

// GetTeamHierarchy returns the ancestor chain of a team.
func (o *Orchestrator) GetTeamHierarchy(name string) (*team.Hierarchy, error) {
	return o.store.GetTeamHierarchy(name)
}

// Counts reports entity counts for health reporting.
func (o *Orchestrator) Counts() (agents, teams, assignments int) {
	return o.store.Counts()
}

// CompactJournals rewrites the journals to their minimal form.
func (o *Orchestrator) CompactJournals(ctx context.Context) error {
	return o.store.CompactJournals(ctx)
}

func (o *Orchestrator) gateSpawn(actor string) error {
	if actor == "" {
		return nil
	}
	if !o.store.CanSpawnAgents(actor) {
		return fmt.Errorf("%w: %q may not manage agents", domain.ErrPermission, actor)
	}
	return nil
}

// publish sends a JSON payload to the queue when one is configured.
// Publish failures are logged, never surfaced: the mutation is already
// durable, and the queue is a best-effort fan-out.
func (o *Orchestrator) publish(ctx context.Context, subject string, payload any) {
	if o.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		o.log.Error("marshal queue payload", "subject", subject, "error", err)
		return
	}
	err = o.breaker.Execute(func() error {
		return o.queue.Publish(ctx, subject, data)
	})
	if err != nil {
		o.log.Error("queue publish failed", "subject", subject, "error", err)
	}
}
