package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annolab/concord/internal/domain/annotation"
	"github.com/annolab/concord/internal/domain/round"
	"github.com/annolab/concord/internal/domain/schema"
	"github.com/annolab/concord/internal/domain/unit"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	// Verify all tables were created
	tables := []string{
		"units",
		"annotations",
		"audit_log",
		"rounds",
		"tasks",
		"score_cache",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")
}

// TestMigrationsIdempotent verifies migrations can run twice
func TestMigrationsIdempotent(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.RunMigrations())
}

// TestInTxRollsBackOnError verifies that a failing function undoes its writes
func TestInTxRollsBackOnError(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	boom := assert.AnError
	err := db.InTx(ctx, func(ctx context.Context) error {
		_, execErr := db.q(ctx).ExecContext(ctx,
			`INSERT INTO units (id, project_id, body) VALUES (?, ?, ?)`,
			"u1", "p1", "body")
		require.NoError(t, execErr)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM units`).Scan(&count))
	require.Equal(t, 0, count, "rolled-back insert still visible")
}

// TestInTxCommits verifies that writes survive a successful transaction
func TestInTxCommits(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	err := db.InTx(ctx, func(ctx context.Context) error {
		_, execErr := db.q(ctx).ExecContext(ctx,
			`INSERT INTO units (id, project_id, body) VALUES (?, ?, ?)`,
			"u1", "p1", "body")
		return execErr
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM units`).Scan(&count))
	require.Equal(t, 1, count)
}

// --- shared fixtures ---

func insertTestUnit(t *testing.T, db *DB, id, projectID string) *unit.Unit {
	t.Helper()
	u := &unit.Unit{ID: id, ProjectID: projectID, Body: "test body " + id}
	require.NoError(t, NewUnitRepository(db).Insert(context.Background(), u))
	return u
}

func insertTestAnnotation(t *testing.T, db *DB, unitID, raterID string, version int, fields schema.Fields) *annotation.Record {
	t.Helper()
	rec := &annotation.Record{
		ID:        uuid.NewString(),
		UnitID:    unitID,
		RaterID:   raterID,
		Version:   version,
		Fields:    fields,
		Status:    annotation.StatusCompleted,
		SaveCount: 1,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, NewAnnotationRepository(db).Insert(context.Background(), rec))
	return rec
}

func insertTestRound(t *testing.T, db *DB, projectID string, number int) *round.Round {
	t.Helper()
	rnd := &round.Round{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Number:    number,
		Group:     schema.GroupPromise,
		Threshold: 0.6,
		Status:    round.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, NewRoundRepository(db).Insert(context.Background(), rnd))
	return rnd
}

func insertTestTask(t *testing.T, db *DB, roundID, unitID, raterID string) *round.Task {
	t.Helper()
	task := &round.Task{
		ID:         uuid.NewString(),
		RoundID:    roundID,
		UnitID:     unitID,
		RaterID:    raterID,
		Group:      schema.GroupPromise,
		Flagged:    []round.FlaggedDimension{{Dimension: schema.PromiseStatus, Score: 0.2}},
		Status:     round.TaskPending,
		AssignedAt: time.Now().UTC(),
	}
	require.NoError(t, NewTaskRepository(db).Insert(context.Background(), task))
	return task
}
