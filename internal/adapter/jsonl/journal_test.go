package jsonl

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/research-developer/agentmux/internal/domain/agent"
	"github.com/research-developer/agentmux/internal/port/journal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAgent(name string) *agent.Agent {
	now := time.Now().UTC().Truncate(time.Second)
	return &agent.Agent{Name: name, SessionID: "sess-" + name, CreatedAt: now, UpdatedAt: now}
}

func TestAppendAndLoadAll(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, journal.KindAgents, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	if err := j.Append(ctx, journal.AgentCreated(testAgent("alice"))); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Append(ctx, journal.AgentRemoved("alice")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recs, skipped, err := j.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("expected no skipped records, got %d", skipped)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Type != journal.TypeAgentCreated || recs[0].Agent.Name != "alice" {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
	if recs[1].Type != journal.TypeAgentRemoved || recs[1].AgentName != "alice" {
		t.Fatalf("unexpected second record: %+v", recs[1])
	}
}

func TestLoadAllMissingFile(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, journal.KindAgents, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = j.Close() }()

	recs, skipped, err := j.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(recs) != 0 || skipped != 0 {
		t.Fatalf("expected empty load, got %d records %d skipped", len(recs), skipped)
	}
}

func TestLoadAllSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, journal.KindAgents, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	if err := j.Append(ctx, journal.AgentCreated(testAgent("alice"))); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Simulate a torn write followed by a good record.
	path := filepath.Join(dir, "agents.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := f.WriteString("{\"type\":\"agent-cre\n"); err != nil {
		t.Fatalf("write corrupt line: %v", err)
	}
	_ = f.Close()

	if err := j.Append(ctx, journal.AgentCreated(testAgent("bob"))); err != nil {
		t.Fatalf("Append after corruption: %v", err)
	}

	recs, skipped, err := j.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skipped line, got %d", skipped)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 valid records, got %d", len(recs))
	}
	if recs[1].Agent.Name != "bob" {
		t.Fatalf("expected record after corruption preserved, got %+v", recs[1])
	}
}

func TestCompactRewritesFile(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, journal.KindAgents, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	for _, name := range []string{"alice", "bob"} {
		if err := j.Append(ctx, journal.AgentCreated(testAgent(name))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := j.Append(ctx, journal.AgentRemoved("bob")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	minimal := []journal.Record{journal.AgentCreated(testAgent("alice"))}
	if err := j.Compact(ctx, minimal); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	recs, _, err := j.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(recs) != 1 || recs[0].Agent.Name != "alice" {
		t.Fatalf("expected single alice record, got %+v", recs)
	}

	// Appends after compaction land in the new file.
	if err := j.Append(ctx, journal.AgentCreated(testAgent("carol"))); err != nil {
		t.Fatalf("Append after compact: %v", err)
	}
	recs, _, err = j.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records after post-compact append, got %d", len(recs))
	}
}

func TestAppendAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, journal.KindAgents, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := j.Append(context.Background(), journal.AgentCreated(testAgent("alice"))); err == nil {
		t.Fatal("expected append on closed journal to fail")
	}
}

func TestOpenSet(t *testing.T) {
	dir := t.TempDir()
	set, err := OpenSet(dir, testLogger())
	if err != nil {
		t.Fatalf("OpenSet: %v", err)
	}
	defer func() { _ = set.Close() }()

	for _, kind := range journal.Kinds() {
		if set.ByKind(kind) == nil {
			t.Fatalf("missing journal for kind %s", kind)
		}
	}
}
