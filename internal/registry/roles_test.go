package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/research-developer/agentmux/internal/domain"
	"github.com/research-developer/agentmux/internal/domain/role"
)

func TestAssignRoleDefaults(t *testing.T) {
	s := newTestStore(t, newTestJournals())

	a, err := s.AssignRole(context.Background(), "alice", role.RoleOrchestrator, nil, "admin")
	if err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if !a.Config.CanSpawnAgents || !a.Config.CanModifyRoles {
		t.Fatalf("expected orchestrator defaults, got %+v", a.Config)
	}
	if a.Config.Priority != 10 {
		t.Fatalf("expected orchestrator priority 10, got %d", a.Config.Priority)
	}
	if a.ID == "" {
		t.Fatal("expected assignment ID")
	}
	if a.AssignedBy != "admin" {
		t.Fatalf("expected assigned_by admin, got %q", a.AssignedBy)
	}
}

func TestAssignRoleReplacesPrior(t *testing.T) {
	s := newTestStore(t, newTestJournals())

	first, _ := s.AssignRole(context.Background(), "alice", role.RoleWorker, nil, "")
	second, _ := s.AssignRole(context.Background(), "alice", role.RoleObserver, nil, "")

	got := s.GetRole("alice")
	if got.ID != second.ID {
		t.Fatalf("expected replacement assignment %s, got %s", second.ID, got.ID)
	}
	if got.ID == first.ID {
		t.Fatal("expected prior assignment superseded")
	}
	if len(s.ListRoles()) != 1 {
		t.Fatalf("expected exactly one active assignment, got %d", len(s.ListRoles()))
	}
}

func TestAssignRoleValidation(t *testing.T) {
	s := newTestStore(t, newTestJournals())

	if _, err := s.AssignRole(context.Background(), "", role.RoleWorker, nil, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty subject: expected ErrValidation, got %v", err)
	}
	if _, err := s.AssignRole(context.Background(), "alice", role.Role("emperor"), nil, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown role: expected ErrValidation, got %v", err)
	}
	bad := &role.Config{Priority: -1}
	if _, err := s.AssignRole(context.Background(), "alice", role.RoleCustom, bad, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("negative priority: expected ErrValidation, got %v", err)
	}
}

func TestRemoveRoleIdempotent(t *testing.T) {
	s := newTestStore(t, newTestJournals())

	if err := s.RemoveRole(context.Background(), "nobody"); err != nil {
		t.Fatalf("expected no-op removal to succeed, got %v", err)
	}

	if _, err := s.AssignRole(context.Background(), "alice", role.RoleWorker, nil, ""); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := s.RemoveRole(context.Background(), "alice"); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	if s.GetRole("alice") != nil {
		t.Fatal("expected assignment removed")
	}
	if err := s.RemoveRole(context.Background(), "alice"); err != nil {
		t.Fatalf("second removal should be a no-op, got %v", err)
	}
}

func TestIsToolAllowedNoAssignment(t *testing.T) {
	s := newTestStore(t, newTestJournals())

	d := s.IsToolAllowed("alice", "anything")
	if !d.Allowed {
		t.Fatalf("unassigned subject must be allowed, got %+v", d)
	}
}

func TestIsToolAllowedRestrictedWinsOverAvailable(t *testing.T) {
	s := newTestStore(t, newTestJournals())
	cfg := &role.Config{
		AvailableTools:  []string{"deploy", "inspect"},
		RestrictedTools: []string{"deploy"},
	}
	if _, err := s.AssignRole(context.Background(), "alice", role.RoleCustom, cfg, ""); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	d := s.IsToolAllowed("alice", "deploy")
	if d.Allowed || d.Reason != role.ReasonRestricted {
		t.Fatalf("expected restricted denial, got %+v", d)
	}
	if d := s.IsToolAllowed("alice", "inspect"); !d.Allowed {
		t.Fatalf("expected inspect allowed, got %+v", d)
	}
}

func TestIsToolAllowedAllowListExcludes(t *testing.T) {
	s := newTestStore(t, newTestJournals())
	cfg := &role.Config{AvailableTools: []string{"inspect"}}
	if _, err := s.AssignRole(context.Background(), "alice", role.RoleCustom, cfg, ""); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	d := s.IsToolAllowed("alice", "deploy")
	if d.Allowed || d.Reason != role.ReasonNotInAllowed {
		t.Fatalf("expected allow-list denial, got %+v", d)
	}
}

func TestIsToolAllowedEmptyListsAllowAll(t *testing.T) {
	s := newTestStore(t, newTestJournals())
	if _, err := s.AssignRole(context.Background(), "alice", role.RoleWorker, nil, ""); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	if d := s.IsToolAllowed("alice", "anything"); !d.Allowed {
		t.Fatalf("worker with empty lists must allow all, got %+v", d)
	}
}

func TestCapabilityFlagsDefaultTrueWhenUnassigned(t *testing.T) {
	s := newTestStore(t, newTestJournals())

	if !s.CanSpawnAgents("nobody") || !s.CanModifyRoles("nobody") {
		t.Fatal("unassigned subjects must retain management capabilities")
	}

	if _, err := s.AssignRole(context.Background(), "alice", role.RoleWorker, nil, ""); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if s.CanSpawnAgents("alice") || s.CanModifyRoles("alice") {
		t.Fatal("worker defaults must deny management capabilities")
	}
}

func TestGetPriority(t *testing.T) {
	s := newTestStore(t, newTestJournals())

	if got := s.GetPriority("nobody"); got != role.DefaultPriority {
		t.Fatalf("expected default priority %d, got %d", role.DefaultPriority, got)
	}

	if _, err := s.AssignRole(context.Background(), "alice", role.RoleReviewer, nil, ""); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if got := s.GetPriority("alice"); got != 40 {
		t.Fatalf("expected reviewer priority 40, got %d", got)
	}
}

func TestAgentReadsReflectRoleAssignment(t *testing.T) {
	s := newTestStore(t, newTestJournals())
	ctx := context.Background()
	mustRegister(t, s, "alice", "sess-a")
	mustRegister(t, s, "bob", "sess-b")
	mustRegister(t, s, "carol", "sess-c")

	if _, err := s.AssignRole(ctx, "alice", role.RoleWorker, nil, "admin"); err != nil {
		t.Fatalf("AssignRole(alice): %v", err)
	}
	if _, err := s.AssignRole(ctx, "sess-b", role.RoleReviewer, nil, "admin"); err != nil {
		t.Fatalf("AssignRole(sess-b): %v", err)
	}

	a, err := s.GetAgent("alice")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if a.Role != "worker" {
		t.Fatalf("expected name-bound role worker, got %q", a.Role)
	}

	// A session-bound assignment shows on the agent holding the session.
	b, err := s.GetAgent("bob")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if b.Role != "reviewer" {
		t.Fatalf("expected session-bound role reviewer, got %q", b.Role)
	}

	c, err := s.GetAgent("carol")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if c.Role != "" {
		t.Fatalf("expected no role for unassigned agent, got %q", c.Role)
	}

	for _, listed := range s.ListAgents() {
		switch listed.Name {
		case "alice":
			if listed.Role != "worker" {
				t.Fatalf("list: expected worker for alice, got %q", listed.Role)
			}
		case "bob":
			if listed.Role != "reviewer" {
				t.Fatalf("list: expected reviewer for bob, got %q", listed.Role)
			}
		}
	}

	if err := s.RemoveRole(ctx, "alice"); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	a, err = s.GetAgent("alice")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if a.Role != "" {
		t.Fatalf("expected role cleared after removal, got %q", a.Role)
	}
}
