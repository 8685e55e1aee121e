package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/research-developer/agentmux/internal/domain"
	"github.com/research-developer/agentmux/internal/domain/team"
)

func TestCreateTeamDuplicate(t *testing.T) {
	s := newTestStore(t, newTestJournals())
	mustCreateTeam(t, s, "backend", "")

	_, err := s.CreateTeam(context.Background(), team.CreateRequest{Name: "backend"})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateTeamUnknownParent(t *testing.T) {
	s := newTestStore(t, newTestJournals())

	_, err := s.CreateTeam(context.Background(), team.CreateRequest{Name: "backend", Parent: "ghost"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateTeamRejectsCycle(t *testing.T) {
	s := newTestStore(t, newTestJournals())
	mustCreateTeam(t, s, "eng", "")
	mustCreateTeam(t, s, "backend", "eng")

	// A team whose parent chain reaches itself is impossible at create
	// time because the child cannot exist yet; the guard is for a reused
	// name whose chain already names it.
	_, err := s.CreateTeam(context.Background(), team.CreateRequest{Name: "eng", Parent: "backend"})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for existing name, got %v", err)
	}
}

func TestTeamHierarchy(t *testing.T) {
	s := newTestStore(t, newTestJournals())
	mustCreateTeam(t, s, "eng", "")
	mustCreateTeam(t, s, "backend", "eng")
	mustCreateTeam(t, s, "storage", "backend")

	h, err := s.GetTeamHierarchy("storage")
	if err != nil {
		t.Fatalf("GetTeamHierarchy: %v", err)
	}
	want := []string{"backend", "eng"}
	if len(h.Ancestors) != len(want) {
		t.Fatalf("expected %v, got %v", want, h.Ancestors)
	}
	for i := range want {
		if h.Ancestors[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, h.Ancestors)
		}
	}

	root, err := s.GetTeamHierarchy("eng")
	if err != nil {
		t.Fatalf("GetTeamHierarchy(eng): %v", err)
	}
	if len(root.Ancestors) != 0 {
		t.Fatalf("expected no ancestors for root, got %v", root.Ancestors)
	}
}

func TestRemoveTeamReparentsChildren(t *testing.T) {
	s := newTestStore(t, newTestJournals())
	mustCreateTeam(t, s, "eng", "")
	mustCreateTeam(t, s, "backend", "eng")
	mustCreateTeam(t, s, "storage", "backend")

	if err := s.RemoveTeam(context.Background(), "backend"); err != nil {
		t.Fatalf("RemoveTeam: %v", err)
	}

	got, err := s.GetTeam("storage")
	if err != nil {
		t.Fatalf("GetTeam(storage): %v", err)
	}
	if got.Parent != "eng" {
		t.Fatalf("expected storage reparented to eng, got %q", got.Parent)
	}
}

func TestRemoveRootTeamChildrenBecomeRoots(t *testing.T) {
	s := newTestStore(t, newTestJournals())
	mustCreateTeam(t, s, "eng", "")
	mustCreateTeam(t, s, "backend", "eng")

	if err := s.RemoveTeam(context.Background(), "eng"); err != nil {
		t.Fatalf("RemoveTeam: %v", err)
	}

	got, _ := s.GetTeam("backend")
	if got.Parent != "" {
		t.Fatalf("expected backend to become a root, got parent %q", got.Parent)
	}
}

func TestRemoveTeamPrunesMemberships(t *testing.T) {
	s := newTestStore(t, newTestJournals())
	mustCreateTeam(t, s, "backend", "")
	mustCreateTeam(t, s, "frontend", "")
	mustRegister(t, s, "alice", "sess-1", "backend", "frontend")

	if err := s.RemoveTeam(context.Background(), "backend"); err != nil {
		t.Fatalf("RemoveTeam: %v", err)
	}

	a, _ := s.GetAgent("alice")
	if a.MemberOf("backend") {
		t.Fatal("expected backend membership removed")
	}
	if !a.MemberOf("frontend") {
		t.Fatal("expected frontend membership kept")
	}
	if got := s.GetAgentsByTeam("backend"); len(got) != 0 {
		t.Fatalf("expected empty team index, got %v", got)
	}
}

func TestRemoveTeamNotFound(t *testing.T) {
	s := newTestStore(t, newTestJournals())

	err := s.RemoveTeam(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTeamsFilter(t *testing.T) {
	s := newTestStore(t, newTestJournals())
	mustCreateTeam(t, s, "backend", "")
	mustCreateTeam(t, s, "backend-storage", "")
	mustCreateTeam(t, s, "frontend", "")

	all := s.ListTeams("")
	if len(all) != 3 {
		t.Fatalf("expected 3 teams, got %d", len(all))
	}

	filtered := s.ListTeams("backend")
	if len(filtered) != 2 {
		t.Fatalf("expected 2 teams matching backend, got %d", len(filtered))
	}
	for _, tm := range filtered {
		if tm.Name != "backend" && tm.Name != "backend-storage" {
			t.Fatalf("unexpected team %q in filtered result", tm.Name)
		}
	}
}
