package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type IN ('table','index') AND name NOT LIKE 'sqlite_%' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, []string{"enrollments", "enrollments_queue_idx", "offerings"}, names)
}

func TestInitSQLite_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	assert.NoError(t, InitSQLite(ctx, db))
}

func TestSQLiteSchema_EnforcesCapacity(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx,
		`INSERT INTO offerings (id, kind, title, organizer_id, capacity, policy, lifecycle_state, registered_count, created_at)
		 VALUES ('o1', 'outing', 'Hike', 'org', 1, 'automatic', 'open', 2, '2026-01-01T00:00:00Z')`)
	assert.Error(t, err, "registered_count above capacity must be rejected")
}
