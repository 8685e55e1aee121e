// Package role defines permission profiles for registry subjects and the
// decision model used by the tool-permission engine.
package role

import (
	"errors"
	"time"
)

// Role names a permission profile. The fixed enumeration covers the
// built-in profiles; RoleCustom marks an assignment whose behavior is
// entirely driven by its Config.
type Role string

const (
	RoleOrchestrator Role = "orchestrator"
	RoleWorker       Role = "worker"
	RoleReviewer     Role = "reviewer"
	RoleObserver     Role = "observer"
	RoleCustom       Role = "custom"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOrchestrator, RoleWorker, RoleReviewer, RoleObserver, RoleCustom:
		return true
	}
	return false
}

// DefaultPriority is used for subjects without an assignment or whose
// config leaves priority unset. Smaller values are higher priority.
const DefaultPriority = 100

// Config overrides the behavior of an assignment. RestrictedTools always
// takes precedence over AvailableTools.
type Config struct {
	AvailableTools  []string `json:"available_tools,omitempty"`
	RestrictedTools []string `json:"restricted_tools,omitempty"`
	CanSpawnAgents  bool     `json:"can_spawn_agents"`
	CanModifyRoles  bool     `json:"can_modify_roles"`
	Priority        int      `json:"priority"`
}

// Validate checks a Config for internal consistency.
func (c *Config) Validate() error {
	if c.Priority < 0 {
		return errors.New("priority must be non-negative")
	}
	for _, t := range c.AvailableTools {
		if t == "" {
			return errors.New("available_tools entries must be non-empty")
		}
	}
	for _, t := range c.RestrictedTools {
		if t == "" {
			return errors.New("restricted_tools entries must be non-empty")
		}
	}
	return nil
}

// Defaults returns the built-in Config for a role. Custom roles start from
// an empty config and rely on the caller-supplied override.
func Defaults(r Role) Config {
	switch r {
	case RoleOrchestrator:
		return Config{CanSpawnAgents: true, CanModifyRoles: true, Priority: 10}
	case RoleWorker:
		return Config{Priority: 50}
	case RoleReviewer:
		return Config{Priority: 40}
	case RoleObserver:
		return Config{RestrictedTools: []string{"register_agent", "remove_agent", "send_message"}, Priority: 90}
	default:
		return Config{Priority: DefaultPriority}
	}
}

// Assignment binds a subject (session ID or agent name) to a role.
// At most one assignment per subject is active at a time.
type Assignment struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Role       Role      `json:"role"`
	Config     Config    `json:"config"`
	AssignedBy string    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Decision is the outcome of a tool-permission check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Denial reasons surfaced in Decision.Reason.
const (
	ReasonRestricted   = "restricted"
	ReasonNotInAllowed = "not in allow-list"
)
