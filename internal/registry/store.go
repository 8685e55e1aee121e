// Package registry implements the authoritative in-memory state for
// agents, teams, and role assignments, rebuilt from the persistence
// journals at startup. All mutations are serialized through a single
// write lock, and every mutation appends its journal record before the
// in-memory indices change. The deduplication window for cascade
// resolution lives behind the same lock because resolution is a
// read+write hybrid.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/research-developer/agentmux/internal/domain"
	"github.com/research-developer/agentmux/internal/domain/agent"
	"github.com/research-developer/agentmux/internal/domain/cascade"
	"github.com/research-developer/agentmux/internal/domain/role"
	"github.com/research-developer/agentmux/internal/domain/team"
	"github.com/research-developer/agentmux/internal/port/journal"
)

// DefaultDedupCapacity bounds the fingerprint window when no capacity is
// configured.
const DefaultDedupCapacity = 1000

// DefaultDispatchTail bounds the in-memory dispatch audit tail.
const DefaultDispatchTail = 256

// Options configures a Store.
type Options struct {
	// DedupCapacity is the fingerprint window size. Zero means
	// DefaultDedupCapacity.
	DedupCapacity int

	// DispatchTail is the number of recent dispatches kept in memory for
	// the read API. Zero means DefaultDispatchTail.
	DispatchTail int

	Logger *slog.Logger
}

// Store is the registry. It is constructed once at process start and
// passed by reference to the orchestration facade; there is no ambient
// global instance.
type Store struct {
	mu sync.RWMutex

	agents    map[string]*agent.Agent
	bySession map[string]string              // session_id -> agent name
	byTeam    map[string]map[string]struct{} // team name -> agent name set
	teams     map[string]*team.Team
	roles     map[string]*role.Assignment // subject -> active assignment

	dedup *dedupWindow
	tail  []cascade.Dispatch
	tailN int

	journals *journal.Set
	log      *slog.Logger

	// replayWarnings counts records skipped or degraded during the
	// startup replay. Written only inside New.
	replayWarnings int
}

// New builds an empty Store over the given journal set and replays any
// existing records into it. The journal set must outlive the store.
func New(ctx context.Context, journals *journal.Set, opts Options) (*Store, error) {
	capacity := opts.DedupCapacity
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	// The tail must cover the dedup window so that compaction keeps every
	// dispatch record still backing a live fingerprint.
	tailN := opts.DispatchTail
	if tailN <= 0 {
		tailN = DefaultDispatchTail
	}
	if tailN < capacity {
		tailN = capacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		agents:    make(map[string]*agent.Agent),
		bySession: make(map[string]string),
		byTeam:    make(map[string]map[string]struct{}),
		teams:     make(map[string]*team.Team),
		roles:     make(map[string]*role.Assignment),
		dedup:     newDedupWindow(capacity),
		tailN:     tailN,
		journals:  journals,
		log:       logger,
	}

	if err := s.replay(ctx); err != nil {
		return nil, fmt.Errorf("registry replay: %w", err)
	}
	return s, nil
}

// RegisterAgent adds a new agent. Fails with domain.ErrDuplicate if the
// name is taken, and with domain.ErrValidation if any referenced team
// does not exist (teams are never auto-created) or the session handle is
// already bound to another agent.
func (s *Store) RegisterAgent(ctx context.Context, req agent.RegisterRequest) (*agent.Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[req.Name]; ok {
		return nil, fmt.Errorf("%w: agent %q", domain.ErrDuplicate, req.Name)
	}
	if owner, ok := s.bySession[req.SessionID]; ok {
		return nil, fmt.Errorf("%w: session %q already bound to agent %q", domain.ErrValidation, req.SessionID, owner)
	}
	for _, t := range req.Teams {
		if _, ok := s.teams[t]; !ok {
			return nil, fmt.Errorf("%w: unknown team %q", domain.ErrValidation, t)
		}
	}

	now := time.Now().UTC()
	a := &agent.Agent{
		Name:      req.Name,
		SessionID: req.SessionID,
		Teams:     append([]string(nil), req.Teams...),
		Metadata:  req.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.append(ctx, s.journals.Agents, journal.AgentCreated(a)); err != nil {
		return nil, err
	}
	s.applyAgent(a)
	return s.agentView(a), nil
}

// RemoveAgent deletes an agent, drops it from all team indices, and
// clears any role assignment bound to its name or session.
func (s *Store) RemoveAgent(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[name]
	if !ok {
		return fmt.Errorf("%w: agent %q", domain.ErrNotFound, name)
	}

	if err := s.append(ctx, s.journals.Agents, journal.AgentRemoved(name)); err != nil {
		return err
	}
	for _, subject := range []string{name, a.SessionID} {
		if _, ok := s.roles[subject]; !ok {
			continue
		}
		if err := s.append(ctx, s.journals.Roles, journal.RoleRemoved(subject)); err != nil {
			return err
		}
		delete(s.roles, subject)
	}

	s.dropAgent(a)
	return nil
}

// GetAgent returns a copy of the named agent.
func (s *Store) GetAgent(name string) (*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: agent %q", domain.ErrNotFound, name)
	}
	return s.agentView(a), nil
}

// GetAgentsBySession returns the agents bound to a session handle.
// The result is empty, never an error, when nothing matches.
func (s *Store) GetAgentsBySession(sessionID string) []*agent.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.bySession[sessionID]
	if !ok {
		return nil
	}
	return []*agent.Agent{s.agentView(s.agents[name])}
}

// GetAgentsByTeam returns the members of a team sorted by name.
// The result is empty, never an error, when nothing matches.
func (s *Store) GetAgentsByTeam(teamName string) []*agent.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.byTeam[teamName]
	out := make([]*agent.Agent, 0, len(members))
	for name := range members {
		out = append(out, s.agentView(s.agents[name]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListAgents returns all agents sorted by name.
func (s *Store) ListAgents() []*agent.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*agent.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, s.agentView(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Counts reports entity counts for health reporting.
func (s *Store) Counts() (agents, teams, assignments int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents), len(s.teams), len(s.roles)
}

// agentView clones an agent for return to callers, reflecting the
// subject's active role assignment into the Role field. The name
// assignment wins over the session assignment. Caller holds the lock.
func (s *Store) agentView(a *agent.Agent) *agent.Agent {
	c := a.Clone()
	if asn, ok := s.roles[a.Name]; ok {
		c.Role = string(asn.Role)
	} else if asn, ok := s.roles[a.SessionID]; ok {
		c.Role = string(asn.Role)
	}
	return c
}

// append journals one record, mapping failures to domain.ErrPersistence.
// Callers hold the write lock, so journal writes are serialized with the
// state changes they precede.
func (s *Store) append(ctx context.Context, j journal.Journal, rec journal.Record) error {
	if j == nil {
		return nil
	}
	if err := j.Append(ctx, rec); err != nil {
		return fmt.Errorf("%w: %s record: %v", domain.ErrPersistence, rec.Type, err)
	}
	return nil
}

// applyAgent installs an agent into all indices. Caller holds the write
// lock. Existing state for the same name is dropped first so the apply
// acts as an upsert (replay relies on this).
func (s *Store) applyAgent(a *agent.Agent) {
	if prev, ok := s.agents[a.Name]; ok {
		s.dropAgent(prev)
	}
	s.agents[a.Name] = a
	s.bySession[a.SessionID] = a.Name
	for _, t := range a.Teams {
		set, ok := s.byTeam[t]
		if !ok {
			set = make(map[string]struct{})
			s.byTeam[t] = set
		}
		set[a.Name] = struct{}{}
	}
}

// dropAgent removes an agent from all indices. Caller holds the write lock.
func (s *Store) dropAgent(a *agent.Agent) {
	delete(s.agents, a.Name)
	delete(s.bySession, a.SessionID)
	for _, t := range a.Teams {
		if set, ok := s.byTeam[t]; ok {
			delete(set, a.Name)
			if len(set) == 0 {
				delete(s.byTeam, t)
			}
		}
	}
}
