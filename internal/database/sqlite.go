package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS offerings (
	id               TEXT PRIMARY KEY,
	kind             TEXT NOT NULL,
	title            TEXT NOT NULL,
	organizer_id     TEXT NOT NULL,
	capacity         INTEGER NOT NULL CHECK (capacity > 0),
	policy           TEXT NOT NULL,
	lifecycle_state  TEXT NOT NULL,
	registered_count INTEGER NOT NULL DEFAULT 0 CHECK (registered_count >= 0 AND registered_count <= capacity),
	next_seq         INTEGER NOT NULL DEFAULT 1,
	created_at       TEXT NOT NULL,
	cancelled_at     TEXT
);

CREATE TABLE IF NOT EXISTS enrollments (
	offering_id  TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	status       TEXT NOT NULL,
	requested_at TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	updated_at   TEXT NOT NULL,
	PRIMARY KEY (offering_id, user_id),
	FOREIGN KEY (offering_id) REFERENCES offerings(id)
);

CREATE INDEX IF NOT EXISTS enrollments_queue_idx
	ON enrollments (offering_id, status, requested_at, seq);
`

// OpenSQLite opens a SQLite database and applies the schema.
// The handle is limited to one connection so every unit of work is serialised
// and ":memory:" databases stay shared across calls.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitSQLite enables WAL and foreign keys, then creates the tables.
func InitSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}
