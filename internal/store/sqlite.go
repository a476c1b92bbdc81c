// Package store provides SQLite-backed persistence for scored essays and the
// event outbox.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS scored_essays (
	result_id     TEXT PRIMARY KEY,
	essay_id      TEXT NOT NULL,
	batch_id      TEXT NOT NULL DEFAULT '',
	rubric        INTEGER NOT NULL,
	scale         INTEGER NOT NULL,
	overall_score REAL NOT NULL,
	final_score   TEXT NOT NULL,
	band          TEXT NOT NULL DEFAULT '',
	result_json   TEXT NOT NULL,
	scored_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scored_essays_batch ON scored_essays(batch_id);
CREATE INDEX IF NOT EXISTS idx_scored_essays_scored_at ON scored_essays(scored_at);

CREATE TABLE IF NOT EXISTS event_outbox (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id        TEXT NOT NULL,
	idempotency_key TEXT NOT NULL UNIQUE,
	event_type      TEXT NOT NULL,
	subject         TEXT NOT NULL DEFAULT '',
	envelope_json   TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	published_at    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON event_outbox(published_at, id);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration. The parent directory is created if
// missing.
func NewDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer; WAL still serves concurrent reads.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
