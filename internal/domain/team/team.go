// Package team defines the team entity: a named group of agents,
// optionally nested under a parent team. The parent relation forms a
// forest; cycle checks are the registry's responsibility.
package team

import (
	"errors"
	"time"
)

// Team is a named agent group. Membership is stored on the agent side;
// the registry derives per-team indices from it.
type Team struct {
	Name        string            `json:"name"`
	Parent      string            `json:"parent,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of the team.
func (t *Team) Clone() *Team {
	out := *t
	if t.Metadata != nil {
		out.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// CreateRequest holds the fields needed to create a new team.
type CreateRequest struct {
	Name        string            `json:"name"`
	Parent      string            `json:"parent,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Validate checks that a CreateRequest is well-formed. Parent existence and
// acyclicity are checked by the registry.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return errors.New("team name is required")
	}
	if r.Name == r.Parent {
		return errors.New("team cannot be its own parent")
	}
	return nil
}

// Hierarchy is the ancestor chain of a team, nearest parent first.
type Hierarchy struct {
	Name      string   `json:"name"`
	Ancestors []string `json:"ancestors"`
}
