// Package database provides PostgreSQL and SQLite connection management
// and the schema shared by both stores.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/config"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS offerings (
	id               TEXT PRIMARY KEY,
	kind             TEXT NOT NULL,
	title            TEXT NOT NULL,
	organizer_id     TEXT NOT NULL,
	capacity         INTEGER NOT NULL CHECK (capacity > 0),
	policy           TEXT NOT NULL,
	lifecycle_state  TEXT NOT NULL,
	registered_count INTEGER NOT NULL DEFAULT 0 CHECK (registered_count >= 0 AND registered_count <= capacity),
	next_seq         BIGINT NOT NULL DEFAULT 1,
	created_at       TIMESTAMPTZ NOT NULL,
	cancelled_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS enrollments (
	offering_id  TEXT NOT NULL REFERENCES offerings(id),
	user_id      TEXT NOT NULL,
	status       TEXT NOT NULL,
	requested_at TIMESTAMPTZ NOT NULL,
	seq          BIGINT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (offering_id, user_id)
);

CREATE INDEX IF NOT EXISTS enrollments_queue_idx
	ON enrollments (offering_id, status, requested_at, seq);
`

// NewPool creates and validates a pgxpool connection pool.
// It retries up to 5 times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		slog.Warn("db_connect_retry", "attempt", attempt, "max_attempts", 5, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return pool, nil
}

// MigratePostgres creates the offering and enrollment tables if missing.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}
