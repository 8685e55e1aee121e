package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventAgentRegistered = "agent.registered"
	EventAgentRemoved    = "agent.removed"
	EventTeamCreated     = "team.created"
	EventTeamRemoved     = "team.removed"
	EventRoleAssigned    = "role.assigned"
	EventRoleRemoved     = "role.removed"
	EventDispatch        = "dispatch.sent"
)

// AgentEvent is broadcast when an agent is registered or removed.
type AgentEvent struct {
	Name      string   `json:"name"`
	SessionID string   `json:"session_id,omitempty"`
	Teams     []string `json:"teams,omitempty"`
}

// TeamEvent is broadcast when a team is created or removed.
type TeamEvent struct {
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// RoleEvent is broadcast when a role assignment changes.
type RoleEvent struct {
	Subject string `json:"subject"`
	Role    string `json:"role,omitempty"`
}

// DispatchEvent is broadcast for every emitted cascade dispatch.
type DispatchEvent struct {
	Recipient string `json:"recipient"`
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	Source    string `json:"source"`
}

// BroadcastEvent marshals a typed event and broadcasts it. Implements
// the broadcast port.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
