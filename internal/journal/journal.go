package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one cycle outcome kept in the local journal. The journal is
// a debugging trace, not a write-behind buffer: entries are never
// replayed into the time-series store.
type Entry struct {
	ID        string
	Kind      string
	StartedAt time.Time
	Outcome   string
	Detail    string
}

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cycles_started_at ON cycles(started_at);
`

// Journal stores cycle outcomes in a local SQLite file.
type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO cycles (id, kind, started_at, outcome, detail) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.StartedAt.UTC().Unix(), e.Outcome, e.Detail)
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, started_at, outcome, detail FROM cycles ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedAt int64
		if err := rows.Scan(&e.ID, &e.Kind, &startedAt, &e.Outcome, &e.Detail); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.StartedAt = time.Unix(startedAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
