package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/research-developer/agentmux/internal/domain"
	"github.com/research-developer/agentmux/internal/domain/agent"
	"github.com/research-developer/agentmux/internal/domain/team"
	"github.com/research-developer/agentmux/internal/port/journal"
)

// CreateTeam adds a new team. Fails with domain.ErrDuplicate on a name
// collision and domain.ErrValidation when the parent is unknown or the
// assignment would close a cycle.
func (s *Store) CreateTeam(ctx context.Context, req team.CreateRequest) (*team.Team, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	if err := agent.ValidName(req.Name); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teams[req.Name]; ok {
		return nil, fmt.Errorf("%w: team %q", domain.ErrDuplicate, req.Name)
	}
	if req.Parent != "" {
		if _, ok := s.teams[req.Parent]; !ok {
			return nil, fmt.Errorf("%w: unknown parent team %q", domain.ErrValidation, req.Parent)
		}
		if s.wouldCycle(req.Name, req.Parent) {
			return nil, fmt.Errorf("%w: parent %q would create a cycle", domain.ErrValidation, req.Parent)
		}
	}

	now := time.Now().UTC()
	t := &team.Team{
		Name:        req.Name,
		Parent:      req.Parent,
		Description: req.Description,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.append(ctx, s.journals.Teams, journal.TeamCreated(t)); err != nil {
		return nil, err
	}
	s.teams[t.Name] = t
	return t.Clone(), nil
}

// RemoveTeam deletes a team. Child teams are reparented to the removed
// team's parent (root if none), and member agents lose the membership.
func (s *Store) RemoveTeam(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.teams[name]
	if !ok {
		return fmt.Errorf("%w: team %q", domain.ErrNotFound, name)
	}

	// Journal everything first: the removal, the reparenting of each
	// child, and an upsert for each member agent with the membership
	// pruned. Replay applies these in order and converges on the same
	// state even if the team name is later reused.
	if err := s.append(ctx, s.journals.Teams, journal.TeamRemoved(name)); err != nil {
		return err
	}

	var children []*team.Team
	for _, c := range s.teams {
		if c.Parent == name {
			children = append(children, c)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	for _, c := range children {
		if err := s.append(ctx, s.journals.Teams, journal.TeamReparented(c.Name, t.Parent)); err != nil {
			return err
		}
	}

	var members []*agent.Agent
	for memberName := range s.byTeam[name] {
		members = append(members, s.agents[memberName])
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	updated := make([]*agent.Agent, 0, len(members))
	for _, m := range members {
		next := m.Clone()
		next.Teams = removeString(next.Teams, name)
		next.UpdatedAt = time.Now().UTC()
		if err := s.append(ctx, s.journals.Agents, journal.AgentCreated(next)); err != nil {
			return err
		}
		updated = append(updated, next)
	}

	for _, c := range children {
		c.Parent = t.Parent
		c.UpdatedAt = time.Now().UTC()
	}
	for _, next := range updated {
		s.applyAgent(next)
	}
	delete(s.teams, name)
	delete(s.byTeam, name)
	return nil
}

// GetTeam returns a copy of the named team.
func (s *Store) GetTeam(name string) (*team.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[name]
	if !ok {
		return nil, fmt.Errorf("%w: team %q", domain.ErrNotFound, name)
	}
	return t.Clone(), nil
}

// ListTeams returns all teams sorted by name. A non-empty filter keeps
// only teams whose name contains the filter substring.
func (s *Store) ListTeams(filter string) []*team.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*team.Team, 0, len(s.teams))
	for _, t := range s.teams {
		if filter != "" && !strings.Contains(t.Name, filter) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetTeamHierarchy returns the ancestor chain of a team, nearest parent
// first.
func (s *Store) GetTeamHierarchy(name string) (*team.Hierarchy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[name]
	if !ok {
		return nil, fmt.Errorf("%w: team %q", domain.ErrNotFound, name)
	}

	h := &team.Hierarchy{Name: name, Ancestors: []string{}}
	for cur := t.Parent; cur != ""; {
		h.Ancestors = append(h.Ancestors, cur)
		next, ok := s.teams[cur]
		if !ok {
			break
		}
		cur = next.Parent
	}
	return h, nil
}

// wouldCycle reports whether making parent the parent of name closes a
// cycle. Caller holds a lock. The walk is bounded by the team count as a
// guard against a corrupted hierarchy.
func (s *Store) wouldCycle(name, parent string) bool {
	steps := len(s.teams) + 1
	for cur := parent; cur != "" && steps > 0; steps-- {
		if cur == name {
			return true
		}
		next, ok := s.teams[cur]
		if !ok {
			return false
		}
		cur = next.Parent
	}
	return false
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
