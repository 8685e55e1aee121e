package registry

import (
	"context"
	"reflect"
	"testing"

	"github.com/research-developer/agentmux/internal/domain/agent"
	"github.com/research-developer/agentmux/internal/domain/cascade"
	"github.com/research-developer/agentmux/internal/domain/role"
	"github.com/research-developer/agentmux/internal/port/journal"
)

func TestReplayRebuildsState(t *testing.T) {
	journals := newTestJournals()
	s := newTestStore(t, journals)
	ctx := context.Background()

	mustCreateTeam(t, s, "eng", "")
	mustCreateTeam(t, s, "backend", "eng")
	mustRegister(t, s, "alice", "sess-a", "backend")
	mustRegister(t, s, "bob", "sess-b")
	if _, err := s.AssignRole(ctx, "alice", role.RoleWorker, nil, "admin"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := s.RemoveAgent(ctx, "bob"); err != nil {
		t.Fatalf("RemoveAgent: %v", err)
	}
	if _, err := s.ResolveCascade(ctx, cascade.Message{Broadcast: "hello"}); err != nil {
		t.Fatalf("ResolveCascade: %v", err)
	}

	s2 := newTestStore(t, journals)

	if !reflect.DeepEqual(s.ListAgents(), s2.ListAgents()) {
		t.Fatalf("agents diverged:\n%+v\n%+v", s.ListAgents(), s2.ListAgents())
	}
	if !reflect.DeepEqual(s.ListTeams(""), s2.ListTeams("")) {
		t.Fatalf("teams diverged:\n%+v\n%+v", s.ListTeams(""), s2.ListTeams(""))
	}
	if !reflect.DeepEqual(s.ListRoles(), s2.ListRoles()) {
		t.Fatalf("roles diverged:\n%+v\n%+v", s.ListRoles(), s2.ListRoles())
	}
	if !reflect.DeepEqual(s.RecentDispatches(0), s2.RecentDispatches(0)) {
		t.Fatal("dispatch tails diverged")
	}
	if s.DedupSize() != s2.DedupSize() {
		t.Fatalf("dedup windows diverged: %d vs %d", s.DedupSize(), s2.DedupSize())
	}
}

func TestReplayRestoresDedupSuppression(t *testing.T) {
	journals := newTestJournals()
	s := newTestStore(t, journals)
	ctx := context.Background()

	mustRegister(t, s, "alice", "sess-a")
	if _, err := s.ResolveCascade(ctx, cascade.Message{Broadcast: "deploy"}); err != nil {
		t.Fatalf("ResolveCascade: %v", err)
	}

	s2 := newTestStore(t, journals)
	res, err := s2.ResolveCascade(ctx, cascade.Message{Broadcast: "deploy"})
	if err != nil {
		t.Fatalf("resolve after restart: %v", err)
	}
	if res.Suppressed != 1 {
		t.Fatalf("expected suppression to survive restart, got %+v", res)
	}
}

func TestReplayTeamRemovalWithNameReuse(t *testing.T) {
	journals := newTestJournals()
	s := newTestStore(t, journals)
	ctx := context.Background()

	mustCreateTeam(t, s, "backend", "")
	mustRegister(t, s, "alice", "sess-a", "backend")
	if err := s.RemoveTeam(ctx, "backend"); err != nil {
		t.Fatalf("RemoveTeam: %v", err)
	}
	// Recreate the name. Alice must not be a member of the new team.
	mustCreateTeam(t, s, "backend", "")

	s2 := newTestStore(t, journals)
	a, err := s2.GetAgent("alice")
	if err != nil {
		t.Fatalf("GetAgent after restart: %v", err)
	}
	if a.MemberOf("backend") {
		t.Fatal("membership in removed team leaked into reused name")
	}
	if got := s2.GetAgentsByTeam("backend"); len(got) != 0 {
		t.Fatalf("expected reused team empty, got %v", got)
	}
}

func TestCompactJournalsPreservesState(t *testing.T) {
	journals := newTestJournals()
	s := newTestStore(t, journals)
	ctx := context.Background()

	mustCreateTeam(t, s, "backend", "")
	mustRegister(t, s, "alice", "sess-a", "backend")
	mustRegister(t, s, "bob", "sess-b")
	if err := s.RemoveAgent(ctx, "bob"); err != nil {
		t.Fatalf("RemoveAgent: %v", err)
	}
	if _, err := s.AssignRole(ctx, "alice", role.RoleWorker, nil, ""); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := s.RemoveRole(ctx, "alice"); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}

	before := journals.Agents.(*memJournal).count()
	if err := s.CompactJournals(ctx); err != nil {
		t.Fatalf("CompactJournals: %v", err)
	}
	after := journals.Agents.(*memJournal).count()
	if after >= before {
		t.Fatalf("expected fewer agent records after compaction: %d -> %d", before, after)
	}
	if got := journals.Roles.(*memJournal).count(); got != 0 {
		t.Fatalf("expected superseded role records dropped, got %d", got)
	}

	s2 := newTestStore(t, journals)
	if !reflect.DeepEqual(s.ListAgents(), s2.ListAgents()) {
		t.Fatal("agents diverged after compaction replay")
	}
	if !reflect.DeepEqual(s.ListTeams(""), s2.ListTeams("")) {
		t.Fatal("teams diverged after compaction replay")
	}
}

func TestReplayWarningsCounted(t *testing.T) {
	journals := newTestJournals()
	// Two unparseable lines in the agents journal, plus an agent record
	// naming a team that was never created.
	aj := journals.Agents.(*memJournal)
	aj.skip = 2
	aj.recs = append(aj.recs, journal.AgentCreated(&agent.Agent{
		Name:      "orphan",
		SessionID: "sess-o",
		Teams:     []string{"ghost"},
	}))

	s := newTestStore(t, journals)

	if got := s.ReplayWarnings(); got != 3 {
		t.Fatalf("expected 3 replay warnings, got %d", got)
	}
	a, err := s.GetAgent("orphan")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if len(a.Teams) != 0 {
		t.Fatalf("expected ghost membership dropped, got %v", a.Teams)
	}
}
