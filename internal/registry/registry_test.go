package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/research-developer/agentmux/internal/domain/agent"
	"github.com/research-developer/agentmux/internal/domain/team"
	"github.com/research-developer/agentmux/internal/port/journal"
)

// memJournal is an in-memory journal used to exercise the store without
// touching the filesystem.
type memJournal struct {
	mu         sync.Mutex
	recs       []journal.Record
	failAppend bool
	skip       int // reported as the skipped count from LoadAll
}

var _ journal.Journal = (*memJournal)(nil)

func (m *memJournal) Append(_ context.Context, rec journal.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return errors.New("disk full")
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memJournal) LoadAll(_ context.Context) ([]journal.Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]journal.Record, len(m.recs))
	copy(out, m.recs)
	return out, m.skip, nil
}

func (m *memJournal) Compact(_ context.Context, recs []journal.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append([]journal.Record(nil), recs...)
	return nil
}

func (m *memJournal) Close() error { return nil }

func (m *memJournal) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func newTestJournals() *journal.Set {
	return &journal.Set{
		Agents:     &memJournal{},
		Teams:      &memJournal{},
		Roles:      &memJournal{},
		Dispatches: &memJournal{},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, journals *journal.Set) *Store {
	t.Helper()
	s, err := New(context.Background(), journals, Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func mustRegister(t *testing.T, s *Store, name, session string, teams ...string) *agent.Agent {
	t.Helper()
	a, err := s.RegisterAgent(context.Background(), agent.RegisterRequest{
		Name:      name,
		SessionID: session,
		Teams:     teams,
	})
	if err != nil {
		t.Fatalf("RegisterAgent(%s): %v", name, err)
	}
	return a
}

func mustCreateTeam(t *testing.T, s *Store, name, parent string) *team.Team {
	t.Helper()
	tm, err := s.CreateTeam(context.Background(), team.CreateRequest{Name: name, Parent: parent})
	if err != nil {
		t.Fatalf("CreateTeam(%s): %v", name, err)
	}
	return tm
}
