// Package jsonl implements the journal port as append-only JSONL files,
// one file per entity kind, one self-describing record per line.
package jsonl

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/research-developer/agentmux/internal/port/journal"
)

// Journal is a JSONL-backed append-only log. Appends are serialized via a
// mutex and fsynced before they are considered committed.
type Journal struct {
	path string
	mu   sync.Mutex
	f    *os.File
	log  *slog.Logger
}

// Open creates or opens the journal file for a kind inside dir.
func Open(dir string, kind journal.Kind, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonl: create dir: %w", err)
	}
	path := filepath.Join(dir, string(kind)+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open %s: %w", path, err)
	}
	return &Journal{path: path, f: f, log: logger}, nil
}

// OpenSet opens one journal per entity kind under dir.
func OpenSet(dir string, logger *slog.Logger) (*journal.Set, error) {
	set := &journal.Set{}
	for _, kind := range journal.Kinds() {
		j, err := Open(dir, kind, logger)
		if err != nil {
			_ = set.Close()
			return nil, err
		}
		switch kind {
		case journal.KindAgents:
			set.Agents = j
		case journal.KindTeams:
			set.Teams = j
		case journal.KindRoles:
			set.Roles = j
		case journal.KindDispatches:
			set.Dispatches = j
		}
	}
	return set, nil
}

// Append writes one record as a JSON line and syncs the file.
func (j *Journal) Append(_ context.Context, rec journal.Record) error {
	data, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("jsonl: encode record: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return fmt.Errorf("jsonl: journal %s is closed", j.path)
	}
	if _, err := j.f.Write(data); err != nil {
		return fmt.Errorf("jsonl: append to %s: %w", j.path, err)
	}
	if err := j.f.Sync(); err != nil {
		return fmt.Errorf("jsonl: sync %s: %w", j.path, err)
	}
	return nil
}

// LoadAll reads every record in file order. Malformed lines are skipped
// and counted, never fatal; a later record can supersede anything a lost
// line held.
func (j *Journal) LoadAll(_ context.Context) ([]journal.Record, int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("jsonl: open %s: %w", j.path, err)
	}
	defer func() { _ = f.Close() }()

	var (
		recs    []journal.Record
		skipped int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := journal.Decode(line)
		if err != nil {
			skipped++
			j.log.Warn("skipping malformed journal line", "path", j.path, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return recs, skipped, fmt.Errorf("jsonl: scan %s: %w", j.path, err)
	}
	return recs, skipped, nil
}

// Compact atomically rewrites the file to exactly the given records:
// the replacement is written to a temp file, synced, then renamed over
// the original.
func (j *Journal) Compact(_ context.Context, recs []journal.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tmp := j.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("jsonl: open temp file: %w", err)
	}

	w := bufio.NewWriter(f)
	for i := range recs {
		data, err := recs[i].Encode()
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return fmt.Errorf("jsonl: encode record: %w", err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return fmt.Errorf("jsonl: write temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("jsonl: flush temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("jsonl: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("jsonl: close temp file: %w", err)
	}

	if err := os.Rename(tmp, j.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("jsonl: rename temp file: %w", err)
	}

	// Reopen the append handle so future writes land in the new file.
	if j.f != nil {
		_ = j.f.Close()
		f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			j.f = nil
			return fmt.Errorf("jsonl: reopen %s: %w", j.path, err)
		}
		j.f = f
	}
	return nil
}

// Close releases the append handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

var _ journal.Journal = (*Journal)(nil)
