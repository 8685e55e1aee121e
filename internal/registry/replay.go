package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/research-developer/agentmux/internal/domain/agent"
	"github.com/research-developer/agentmux/internal/port/journal"
)

// replay rebuilds the in-memory state from the journals. Records apply
// with upsert/delete semantics, so replaying the same log twice converges
// on the same state. Teams replay before agents so team references
// resolve; an agent record naming a team that no longer exists keeps the
// agent but drops that membership with a warning.
func (s *Store) replay(ctx context.Context) error {
	if s.journals == nil {
		return nil
	}
	for _, kind := range journal.Kinds() {
		j := s.journals.ByKind(kind)
		if j == nil {
			continue
		}
		recs, skipped, err := j.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("load %s journal: %w", kind, err)
		}
		if skipped > 0 {
			s.replayWarnings += skipped
			s.log.Warn("skipped malformed journal records", "journal", string(kind), "skipped", skipped)
		}
		for i := range recs {
			s.replayRecord(&recs[i])
		}
	}
	return nil
}

// replayRecord applies one record to the indices. No journal writes
// happen here; replay only reconstructs state.
func (s *Store) replayRecord(rec *journal.Record) {
	switch rec.Type {
	case journal.TypeTeamCreated:
		t := rec.Team.Clone()
		s.teams[t.Name] = t

	case journal.TypeTeamRemoved:
		delete(s.teams, rec.TeamName)
		delete(s.byTeam, rec.TeamName)

	case journal.TypeTeamReparent:
		if t, ok := s.teams[rec.TeamName]; ok {
			t.Parent = rec.NewParent
		}

	case journal.TypeAgentCreated:
		a := rec.Agent.Clone()
		a.Teams = s.pruneUnknownTeams(a)
		s.applyAgent(a)

	case journal.TypeAgentRemoved:
		if a, ok := s.agents[rec.AgentName]; ok {
			s.dropAgent(a)
		}

	case journal.TypeRoleAssigned:
		clone := *rec.Assignment
		s.roles[clone.Subject] = &clone

	case journal.TypeRoleRemoved:
		delete(s.roles, rec.Subject)

	case journal.TypeDispatchEmits:
		s.dedup.insert(rec.Dispatch.Fingerprint)
		s.pushTail(*rec.Dispatch)
	}
}

func (s *Store) pruneUnknownTeams(a *agent.Agent) []string {
	kept := a.Teams[:0]
	for _, t := range a.Teams {
		if _, ok := s.teams[t]; ok {
			kept = append(kept, t)
			continue
		}
		s.replayWarnings++
		s.log.Warn("dropping unknown team membership during replay", "agent", a.Name, "team", t)
	}
	return kept
}

// ReplayWarnings reports how many journal records were skipped as
// malformed or degraded (an unknown team membership dropped) during the
// replay that built this store. The count is fixed after construction.
func (s *Store) ReplayWarnings() int {
	return s.replayWarnings
}

// CompactJournals rewrites every journal to the minimal record set that
// reproduces the current state. Superseded create/delete pairs are
// dropped; the dispatch journal keeps only the records still backing the
// deduplication window and audit tail.
func (s *Store) CompactJournals(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journals == nil {
		return nil
	}

	teams := make([]journal.Record, 0, len(s.teams))
	for _, t := range s.teams {
		teams = append(teams, journal.TeamCreated(t.Clone()))
	}
	sort.Slice(teams, func(i, j int) bool {
		if !teams[i].Team.CreatedAt.Equal(teams[j].Team.CreatedAt) {
			return teams[i].Team.CreatedAt.Before(teams[j].Team.CreatedAt)
		}
		return teams[i].Team.Name < teams[j].Team.Name
	})

	agents := make([]journal.Record, 0, len(s.agents))
	for _, a := range s.sortedAgents() {
		agents = append(agents, journal.AgentCreated(a.Clone()))
	}

	roles := make([]journal.Record, 0, len(s.roles))
	for _, subject := range sortedKeys(s.roles) {
		clone := *s.roles[subject]
		roles = append(roles, journal.RoleAssigned(&clone))
	}

	dispatches := make([]journal.Record, 0, len(s.tail))
	for i := range s.tail {
		d := s.tail[i]
		dispatches = append(dispatches, journal.DispatchEmitted(&d))
	}

	for kind, recs := range map[journal.Kind][]journal.Record{
		journal.KindTeams:      teams,
		journal.KindAgents:     agents,
		journal.KindRoles:      roles,
		journal.KindDispatches: dispatches,
	} {
		j := s.journals.ByKind(kind)
		if j == nil {
			continue
		}
		if err := j.Compact(ctx, recs); err != nil {
			return fmt.Errorf("compact %s journal: %w", kind, err)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
