package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/research-developer/agentmux/internal/domain/agent"
	"github.com/research-developer/agentmux/internal/domain/cascade"
	"github.com/research-developer/agentmux/internal/domain/role"
	"github.com/research-developer/agentmux/internal/domain/team"
)

// Record type tags. Each serialized record carries its tag in an explicit
// "type" field; decoding never relies on positional schema.
const (
	TypeAgentCreated  = "agent-created"
	TypeAgentRemoved  = "agent-removed"
	TypeTeamCreated   = "team-created"
	TypeTeamRemoved   = "team-removed"
	TypeTeamReparent  = "team-reparented"
	TypeRoleAssigned  = "role-assigned"
	TypeRoleRemoved   = "role-removed"
	TypeDispatchEmits = "dispatch"
)

// Record is the tagged union of all journal record payloads. Exactly one
// payload field is set, matching Type.
type Record struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`

	Agent      *agent.Agent      `json:"agent,omitempty"`
	AgentName  string            `json:"agent_name,omitempty"`
	Team       *team.Team        `json:"team,omitempty"`
	TeamName   string            `json:"team_name,omitempty"`
	NewParent  string            `json:"new_parent,omitempty"`
	Assignment *role.Assignment  `json:"assignment,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	Dispatch   *cascade.Dispatch `json:"dispatch,omitempty"`
}

// AgentCreated builds an agent-created record.
func AgentCreated(a *agent.Agent) Record {
	return Record{Type: TypeAgentCreated, At: time.Now().UTC(), Agent: a}
}

// AgentRemoved builds an agent-removed record.
func AgentRemoved(name string) Record {
	return Record{Type: TypeAgentRemoved, At: time.Now().UTC(), AgentName: name}
}

// TeamCreated builds a team-created record.
func TeamCreated(t *team.Team) Record {
	return Record{Type: TypeTeamCreated, At: time.Now().UTC(), Team: t}
}

// TeamRemoved builds a team-removed record.
func TeamRemoved(name string) Record {
	return Record{Type: TypeTeamRemoved, At: time.Now().UTC(), TeamName: name}
}

// TeamReparented builds a record noting a child team's parent change, as
// happens when its former parent is removed.
func TeamReparented(name, newParent string) Record {
	return Record{Type: TypeTeamReparent, At: time.Now().UTC(), TeamName: name, NewParent: newParent}
}

// RoleAssigned builds a role-assigned record.
func RoleAssigned(a *role.Assignment) Record {
	return Record{Type: TypeRoleAssigned, At: time.Now().UTC(), Assignment: a}
}

// RoleRemoved builds a role-removed record.
func RoleRemoved(subject string) Record {
	return Record{Type: TypeRoleRemoved, At: time.Now().UTC(), Subject: subject}
}

// DispatchEmitted builds a dispatch record.
func DispatchEmitted(d *cascade.Dispatch) Record {
	return Record{Type: TypeDispatchEmits, At: time.Now().UTC(), Dispatch: d}
}

// Validate checks that a decoded record's payload matches its type tag.
func (r *Record) Validate() error {
	switch r.Type {
	case TypeAgentCreated:
		if r.Agent == nil || r.Agent.Name == "" {
			return fmt.Errorf("record %s: missing agent payload", r.Type)
		}
	case TypeAgentRemoved:
		if r.AgentName == "" {
			return fmt.Errorf("record %s: missing agent_name", r.Type)
		}
	case TypeTeamCreated:
		if r.Team == nil || r.Team.Name == "" {
			return fmt.Errorf("record %s: missing team payload", r.Type)
		}
	case TypeTeamRemoved, TypeTeamReparent:
		if r.TeamName == "" {
			return fmt.Errorf("record %s: missing team_name", r.Type)
		}
	case TypeRoleAssigned:
		if r.Assignment == nil || r.Assignment.Subject == "" {
			return fmt.Errorf("record %s: missing assignment payload", r.Type)
		}
	case TypeRoleRemoved:
		if r.Subject == "" {
			return fmt.Errorf("record %s: missing subject", r.Type)
		}
	case TypeDispatchEmits:
		if r.Dispatch == nil || r.Dispatch.Recipient == "" {
			return fmt.Errorf("record %s: missing dispatch payload", r.Type)
		}
	default:
		return fmt.Errorf("unknown record type %q", r.Type)
	}
	return nil
}

// Encode serializes a record to a single JSON line without the trailing
// newline.
func (r *Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses a record from one JSON line and validates it.
func Decode(line []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
