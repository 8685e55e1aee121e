package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/research-developer/agentmux/internal/domain"
	"github.com/research-developer/agentmux/internal/domain/role"
	"github.com/research-developer/agentmux/internal/port/journal"
)

// AssignRole binds a subject (session ID or agent name) to a role,
// replacing any prior assignment for that subject. A nil config takes the
// role's built-in defaults.
func (s *Store) AssignRole(ctx context.Context, subject string, r role.Role, config *role.Config, assignedBy string) (*role.Assignment, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is required", domain.ErrValidation)
	}
	if !r.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, r)
	}

	cfg := role.Defaults(r)
	if config != nil {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
		}
		cfg = *config
	}

	a := &role.Assignment{
		ID:         uuid.NewString(),
		Subject:    subject,
		Role:       r,
		Config:     cfg,
		AssignedBy: assignedBy,
		AssignedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(ctx, s.journals.Roles, journal.RoleAssigned(a)); err != nil {
		return nil, err
	}
	s.roles[subject] = a

	clone := *a
	return &clone, nil
}

// RemoveRole clears the subject's assignment. Removing a subject with no
// assignment is a no-op, never an error.
func (s *Store) RemoveRole(ctx context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[subject]; !ok {
		return nil
	}
	if err := s.append(ctx, s.journals.Roles, journal.RoleRemoved(subject)); err != nil {
		return err
	}
	delete(s.roles, subject)
	return nil
}

// GetRole returns the subject's active assignment, or nil when none.
func (s *Store) GetRole(subject string) *role.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.roles[subject]
	if !ok {
		return nil
	}
	clone := *a
	return &clone
}

// ListRoles returns all active assignments sorted by subject.
func (s *Store) ListRoles() []*role.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*role.Assignment, 0, len(s.roles))
	for _, a := range s.roles {
		clone := *a
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

// IsToolAllowed evaluates whether the subject may use the named tool.
// Resolution order: no assignment allows everything; the deny list wins
// over the allow list; a non-empty allow list excludes anything not on it.
func (s *Store) IsToolAllowed(subject, tool string) role.Decision {
	s.mu.RLock()
	a, ok := s.roles[subject]
	s.mu.RUnlock()

	if !ok {
		return role.Decision{Allowed: true}
	}
	for _, t := range a.Config.RestrictedTools {
		if t == tool {
			return role.Decision{Allowed: false, Reason: role.ReasonRestricted}
		}
	}
	if len(a.Config.AvailableTools) > 0 {
		for _, t := range a.Config.AvailableTools {
			if t == tool {
				return role.Decision{Allowed: true}
			}
		}
		return role.Decision{Allowed: false, Reason: role.ReasonNotInAllowed}
	}
	return role.Decision{Allowed: true}
}

// CanSpawnAgents reports whether the subject may register or remove
// agents. Unassigned subjects may: restriction is opt-in via roles.
func (s *Store) CanSpawnAgents(subject string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.roles[subject]
	if !ok {
		return true
	}
	return a.Config.CanSpawnAgents
}

// CanModifyRoles reports whether the subject may assign or remove roles.
// Unassigned subjects may, matching CanSpawnAgents.
func (s *Store) CanModifyRoles(subject string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.roles[subject]
	if !ok {
		return true
	}
	return a.Config.CanModifyRoles
}

// GetPriority returns the subject's priority, role.DefaultPriority when
// unassigned. Smaller values are higher priority.
func (s *Store) GetPriority(subject string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.roles[subject]
	if !ok {
		return role.DefaultPriority
	}
	return a.Config.Priority
}
