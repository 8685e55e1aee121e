// Package cascade defines the cascading message model: a single logical
// message expressed at up to three specificity levels (agent, team,
// broadcast) and the per-recipient dispatch records it resolves to.
package cascade

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// Source identifies which specificity level won for a recipient.
// Priority is strictly agent > team > broadcast, per recipient.
type Source string

const (
	SourceAgent     Source = "agent"
	SourceTeam      Source = "team"
	SourceBroadcast Source = "broadcast"
)

// Message is a cascading message. It is a pure input value; only its
// resolved Dispatch records are persisted.
type Message struct {
	Broadcast string            `json:"broadcast,omitempty"`
	Teams     map[string]string `json:"teams,omitempty"`
	Agents    map[string]string `json:"agents,omitempty"`
}

// Empty reports whether the message addresses nobody at any level.
func (m *Message) Empty() bool {
	return m.Broadcast == "" && len(m.Teams) == 0 && len(m.Agents) == 0
}

// Validate checks that a Message is well-formed.
func (m *Message) Validate() error {
	if m.Empty() {
		return errors.New("message must set broadcast, teams, or agents")
	}
	for name, content := range m.Teams {
		if name == "" || content == "" {
			return errors.New("team overrides require non-empty name and content")
		}
	}
	for name, content := range m.Agents {
		if name == "" || content == "" {
			return errors.New("agent overrides require non-empty name and content")
		}
	}
	return nil
}

// Dispatch is the resolved, per-recipient outcome of a cascade. Immutable
// once written to the journal.
type Dispatch struct {
	ID           string    `json:"id"`
	Recipient    string    `json:"recipient"`
	SessionID    string    `json:"session_id"`
	Content      string    `json:"content"`
	Source       Source    `json:"source"`
	Fingerprint  string    `json:"fingerprint"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// Fingerprint computes the stable hash identifying a (content, recipient)
// pair for deduplication. Content is normalized first so that formatting
// noise does not defeat duplicate suppression.
func Fingerprint(content, recipient string) string {
	h := blake3.New()
	_, _ = h.WriteString(Normalize(content))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(recipient)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Normalize trims surrounding whitespace and collapses internal runs of
// whitespace to single spaces.
func Normalize(content string) string {
	return strings.Join(strings.Fields(content), " ")
}
