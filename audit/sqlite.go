package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const rewriteAuditSchema = `
CREATE TABLE IF NOT EXISTS rewrite_audit (
    id          TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL,
    model       TEXT NOT NULL,
    attempt     INTEGER NOT NULL,
    prompt      TEXT NOT NULL,
    response    TEXT NOT NULL,
    created_at  TEXT NOT NULL
);
`

const rewriteAuditIndex = `
CREATE INDEX IF NOT EXISTS idx_rewrite_audit_run
ON rewrite_audit(run_id, created_at);
`

// SQLiteSink stores entries in the rewrite_audit table. Rows are only ever inserted.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and prepares the table.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	s, err := NewSQLiteSink(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteSink initializes the schema on an existing handle.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	if _, err := db.Exec(rewriteAuditSchema); err != nil {
		return nil, fmt.Errorf("create rewrite_audit: %w", err)
	}
	if _, err := db.Exec(rewriteAuditIndex); err != nil {
		return nil, fmt.Errorf("create rewrite_audit index: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rewrite_audit
		(id, run_id, model, attempt, prompt, response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.RunID,
		e.Model,
		e.Attempt,
		e.Prompt,
		e.Response,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert rewrite_audit: %w", err)
	}
	return nil
}

// ListRun returns the entries of one run in insertion order.
func (s *SQLiteSink) ListRun(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, model, attempt, prompt, response, created_at
		FROM rewrite_audit
		WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Model, &e.Attempt, &e.Prompt, &e.Response, &created); err != nil {
			return nil, err
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
