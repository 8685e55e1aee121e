package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/research-developer/agentmux/internal/adapter/ws"
	"github.com/research-developer/agentmux/internal/domain"
	"github.com/research-developer/agentmux/internal/domain/role"
	"github.com/research-developer/agentmux/internal/port/messagequeue"
)

// AssignRole binds a subject to a role on behalf of actor. An empty
// actor is trusted; otherwise the actor's role must allow modifying
// roles.
func (o *Orchestrator) AssignRole(ctx context.Context, actor, subject string, r role.Role, config *role.Config, assignedBy string) (*role.Assignment, error) {
	if err := o.gateModifyRoles(actor); err != nil {
		return nil, err
	}
	if assignedBy == "" {
		assignedBy = actor
	}

	a, err := o.store.AssignRole(ctx, subject, r, config, assignedBy)
	if err != nil {
		return nil, err
	}

	o.invalidatePermissions()
	o.log.Info("role assigned", "subject", subject, "role", string(r), "assigned_by", assignedBy)
	o.hub.BroadcastEvent(ctx, ws.EventRoleAssigned, ws.RoleEvent{Subject: subject, Role: string(r)})
	o.publish(ctx, messagequeue.SubjectRoleAssigned, a)
	return a, nil
}

// RemoveRole clears a subject's assignment on behalf of actor. Removing
// an absent assignment succeeds (idempotent cleanup).
func (o *Orchestrator) RemoveRole(ctx context.Context, actor, subject string) error {
	if err := o.gateModifyRoles(actor); err != nil {
		return err
	}

	if err := o.store.RemoveRole(ctx, subject); err != nil {
		return err
	}

	o.invalidatePermissions()
	o.hub.BroadcastEvent(ctx, ws.EventRoleRemoved, ws.RoleEvent{Subject: subject})
	o.publish(ctx, messagequeue.SubjectRoleRemoved, map[string]string{"subject": subject})
	return nil
}

// GetRole returns a subject's active assignment, or nil.
func (o *Orchestrator) GetRole(subject string) *role.Assignment {
	return o.store.GetRole(subject)
}

// ListRoles returns all active assignments.
func (o *Orchestrator) ListRoles() []*role.Assignment {
	return o.store.ListRoles()
}

// IsToolAllowed evaluates a tool-permission check, consulting the
// decision cache when one is configured. Cached entries are versioned by
// generation, so role mutations invalidate them wholesale.
func (o *Orchestrator) IsToolAllowed(ctx context.Context, subject, tool string) role.Decision {
	if o.cache == nil {
		return o.decide(ctx, subject, tool)
	}

	key := fmt.Sprintf("perm:%d:%s:%s", o.gen.Load(), subject, tool)
	if data, ok, err := o.cache.Get(ctx, key); err == nil && ok {
		var d role.Decision
		if json.Unmarshal(data, &d) == nil {
			return d
		}
	}

	d := o.decide(ctx, subject, tool)
	if data, err := json.Marshal(d); err == nil {
		_ = o.cache.Set(ctx, key, data, o.ttl)
	}
	return d
}

func (o *Orchestrator) decide(ctx context.Context, subject, tool string) role.Decision {
	d := o.store.IsToolAllowed(subject, tool)
	if !d.Allowed {
		o.log.Debug("tool denied", "subject", subject, "tool", tool, "reason", d.Reason)
		if o.metrics != nil {
			o.metrics.PermissionDenials.Add(ctx, 1)
		}
	}
	return d
}

// CanSpawnAgents reports whether the subject may manage agents.
func (o *Orchestrator) CanSpawnAgents(subject string) bool {
	return o.store.CanSpawnAgents(subject)
}

// CanModifyRoles reports whether the subject may manage roles.
func (o *Orchestrator) CanModifyRoles(subject string) bool {
	return o.store.CanModifyRoles(subject)
}

// GetPriority returns the subject's priority (smaller is higher).
func (o *Orchestrator) GetPriority(subject string) int {
	return o.store.GetPriority(subject)
}

func (o *Orchestrator) gateModifyRoles(actor string) error {
	if actor == "" {
		return nil
	}
	if !o.store.CanModifyRoles(actor) {
		return fmt.Errorf("%w: %q may not modify roles", domain.ErrPermission, actor)
	}
	return nil
}

// invalidatePermissions drops every cached permission decision.
func (o *Orchestrator) invalidatePermissions() {
	o.gen.Add(1)
}
