// Package agent defines the agent entity: a named identity bound to
// exactly one external session handle.
package agent

import (
	"errors"
	"strings"
	"time"
)

// MaxNameLength bounds agent and team names.
const MaxNameLength = 128

// Agent is a registered worker identity. Name is globally unique and
// immutable for the agent's lifetime; removing and re-registering the same
// name creates a logically new entity. Role is derived from the active
// role assignment at read time and is never stored or journaled.
type Agent struct {
	Name      string            `json:"name"`
	SessionID string            `json:"session_id"`
	Teams     []string          `json:"teams,omitempty"`
	Role      string            `json:"role,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so callers never hold mutable registry state.
func (a *Agent) Clone() *Agent {
	out := *a
	out.Teams = append([]string(nil), a.Teams...)
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// MemberOf reports whether the agent lists the given team.
func (a *Agent) MemberOf(team string) bool {
	for _, t := range a.Teams {
		if t == team {
			return true
		}
	}
	return false
}

// RegisterRequest holds the fields needed to register a new agent.
type RegisterRequest struct {
	Name      string            `json:"name"`
	SessionID string            `json:"session_id"`
	Teams     []string          `json:"teams,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Validate checks that a RegisterRequest is well-formed. Team existence is
// checked by the registry, not here.
func (r *RegisterRequest) Validate() error {
	if err := ValidName(r.Name); err != nil {
		return err
	}
	if r.SessionID == "" {
		return errors.New("session_id is required")
	}
	seen := make(map[string]bool, len(r.Teams))
	for _, t := range r.Teams {
		if err := ValidName(t); err != nil {
			return errors.New("invalid team name: " + t)
		}
		if seen[t] {
			return errors.New("duplicate team in request: " + t)
		}
		seen[t] = true
	}
	return nil
}

// ValidName validates a name is safe for use as a registry key and in
// journal file paths. Shared by agents and teams.
func ValidName(name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if len(name) > MaxNameLength {
		return errors.New("name too long (max 128 chars)")
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.New("name must not contain path separators")
	}
	if strings.Contains(name, "..") {
		return errors.New("name must not contain '..'")
	}
	if name[0] == '.' {
		return errors.New("name must not start with '.'")
	}
	if strings.ContainsAny(name, " \t\n") {
		return errors.New("name must not contain whitespace")
	}
	return nil
}
