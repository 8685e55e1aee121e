package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/research-developer/agentmux/internal/domain"
	"github.com/research-developer/agentmux/internal/domain/agent"
	"github.com/research-developer/agentmux/internal/domain/cascade"
	"github.com/research-developer/agentmux/internal/port/journal"
)

// CascadeResult is the outcome of resolving one cascading message.
type CascadeResult struct {
	Dispatches []cascade.Dispatch `json:"dispatches"`
	Suppressed int                `json:"suppressed"`
	Excluded   int                `json:"excluded"`
}

// ResolveCascade maps a cascading message to per-recipient dispatches.
// Per recipient, an agent-level override always wins, then the first of
// the agent's teams (in the order they were assigned) with a team-level
// override, then the broadcast content. Agents matched at no level are
// excluded. Dispatches are emitted in lexical agent-name order.
//
// The fingerprint check-and-insert must be atomic with respect to other
// concurrent cascades, so the whole resolution runs under the store's
// write lock even though it only reads the agent indices.
func (s *Store) ResolveCascade(ctx context.Context, msg cascade.Message) (*CascadeResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := &CascadeResult{Dispatches: []cascade.Dispatch{}}
	for _, a := range s.sortedAgents() {
		content, source, ok := resolveRecipient(a, &msg)
		if !ok {
			res.Excluded++
			continue
		}

		fp := cascade.Fingerprint(content, a.Name)
		if s.dedup.contains(fp) {
			res.Suppressed++
			continue
		}

		d := cascade.Dispatch{
			ID:           uuid.NewString(),
			Recipient:    a.Name,
			SessionID:    a.SessionID,
			Content:      content,
			Source:       source,
			Fingerprint:  fp,
			DispatchedAt: time.Now().UTC(),
		}

		// Journal before the window insert: a dispatch only counts as
		// delivered once it is durable. On append failure the resolution
		// aborts; dispatches already emitted stay valid.
		if err := s.append(ctx, s.journals.Dispatches, journal.DispatchEmitted(&d)); err != nil {
			return res, err
		}
		s.dedup.insert(fp)
		s.pushTail(d)
		res.Dispatches = append(res.Dispatches, d)
	}
	return res, nil
}

// RecentDispatches returns up to limit most recent dispatches, newest
// last. Zero or negative limit returns the full tail.
func (s *Store) RecentDispatches(limit int) []cascade.Dispatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.tail)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]cascade.Dispatch, n)
	copy(out, s.tail[len(s.tail)-n:])
	return out
}

// DedupSize returns the number of fingerprints currently in the window.
func (s *Store) DedupSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dedup.size()
}

// resolveRecipient applies the per-agent priority rule. Pure: it touches
// no store state.
func resolveRecipient(a *agent.Agent, msg *cascade.Message) (string, cascade.Source, bool) {
	if content, ok := msg.Agents[a.Name]; ok {
		return content, cascade.SourceAgent, true
	}
	for _, t := range a.Teams {
		if content, ok := msg.Teams[t]; ok {
			return content, cascade.SourceTeam, true
		}
	}
	if msg.Broadcast != "" {
		return msg.Broadcast, cascade.SourceBroadcast, true
	}
	return "", "", false
}

// sortedAgents returns the agent values in lexical name order. Caller
// holds a lock.
func (s *Store) sortedAgents() []*agent.Agent {
	names := make([]string, 0, len(s.agents))
	for name := range s.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*agent.Agent, len(names))
	for i, name := range names {
		out[i] = s.agents[name]
	}
	return out
}

func (s *Store) pushTail(d cascade.Dispatch) {
	s.tail = append(s.tail, d)
	if len(s.tail) > s.tailN {
		s.tail = s.tail[len(s.tail)-s.tailN:]
	}
}
