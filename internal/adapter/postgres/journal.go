package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/research-developer/agentmux/internal/port/journal"
)

// Journal implements journal.Journal on top of the append-only
// journal_records table. One Journal covers one record kind; all kinds
// share the table and are partitioned by the kind column.
type Journal struct {
	pool *pgxpool.Pool
	kind journal.Kind
	log  *slog.Logger
}

var _ journal.Journal = (*Journal)(nil)

// NewJournal creates a journal for one record kind backed by the given pool.
func NewJournal(pool *pgxpool.Pool, kind journal.Kind, logger *slog.Logger) *Journal {
	return &Journal{pool: pool, kind: kind, log: logger.With("journal", string(kind))}
}

// NewSet builds the full journal set over a single connection pool.
func NewSet(pool *pgxpool.Pool, logger *slog.Logger) *journal.Set {
	return &journal.Set{
		Agents:     NewJournal(pool, journal.KindAgents, logger),
		Teams:      NewJournal(pool, journal.KindTeams, logger),
		Roles:      NewJournal(pool, journal.KindRoles, logger),
		Dispatches: NewJournal(pool, journal.KindDispatches, logger),
	}
}

// Append inserts one record. Rows are never updated in place.
func (j *Journal) Append(ctx context.Context, rec journal.Record) error {
	data, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = j.pool.Exec(ctx,
		`INSERT INTO journal_records (kind, record) VALUES ($1, $2)`,
		string(j.kind), data)
	if err != nil {
		return fmt.Errorf("append %s record: %w", j.kind, err)
	}
	return nil
}

// LoadAll returns all records of this journal's kind in insertion order,
// plus the count of rows whose payload could not be decoded. Undecodable
// rows are skipped so that one bad row does not block recovery.
func (j *Journal) LoadAll(ctx context.Context) ([]journal.Record, int, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT id, record FROM journal_records WHERE kind = $1 ORDER BY id ASC`,
		string(j.kind))
	if err != nil {
		return nil, 0, fmt.Errorf("load %s records: %w", j.kind, err)
	}
	defer rows.Close()

	var (
		records []journal.Record
		skipped int
	)
	for rows.Next() {
		var (
			id   int64
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, skipped, fmt.Errorf("scan %s record: %w", j.kind, err)
		}
		rec, err := journal.Decode(data)
		if err != nil {
			skipped++
			j.log.Warn("skipping undecodable journal row", "id", id, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, skipped, fmt.Errorf("iterate %s records: %w", j.kind, err)
	}
	return records, skipped, nil
}

// Compact replaces this kind's rows with the given minimal record set in
// one transaction, so a crash mid-compaction never leaves a partial log.
func (j *Journal) Compact(ctx context.Context, records []journal.Record) error {
	tx, err := j.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin compaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM journal_records WHERE kind = $1`, string(j.kind)); err != nil {
		return fmt.Errorf("clear %s records: %w", j.kind, err)
	}

	for _, rec := range records {
		data, err := rec.Encode()
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO journal_records (kind, record) VALUES ($1, $2)`,
			string(j.kind), data); err != nil {
			return fmt.Errorf("write compacted %s record: %w", j.kind, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit compaction: %w", err)
	}
	return nil
}

// Close is a no-op; the shared pool is owned and closed by the caller.
func (j *Journal) Close() error { return nil }
