// Package sqlite implements the persistence layer over a single shared
// SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection.
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema.
func (db *DB) RunMigrations() error {
	migration := `
-- Corpus units, created at ingestion
CREATE TABLE IF NOT EXISTS units (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    body TEXT NOT NULL,
    page_ref TEXT NOT NULL DEFAULT '',
    seq INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_units_project ON units(project_id);

-- Append-only annotation versions
CREATE TABLE IF NOT EXISTS annotations (
    id TEXT PRIMARY KEY,
    unit_id TEXT NOT NULL,
    rater_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    round INTEGER NOT NULL DEFAULT 0,
    fields TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL CHECK(status IN ('in_progress', 'completed')),
    skipped INTEGER NOT NULL DEFAULT 0,
    save_count INTEGER NOT NULL DEFAULT 1,
    persist INTEGER NOT NULL DEFAULT 0,
    comment TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    UNIQUE(unit_id, rater_id, version),
    FOREIGN KEY (unit_id) REFERENCES units(id)
);
CREATE INDEX IF NOT EXISTS idx_annotations_unit ON annotations(unit_id);
CREATE INDEX IF NOT EXISTS idx_annotations_rater ON annotations(rater_id);

-- Field-level change log, one row per changed field per submission
CREATE TABLE IF NOT EXISTS audit_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    unit_id TEXT NOT NULL,
    rater_id TEXT NOT NULL,
    field TEXT NOT NULL,
    old_value TEXT NOT NULL DEFAULT '',
    new_value TEXT NOT NULL DEFAULT '',
    round INTEGER NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_unit ON audit_log(unit_id);

-- Reannotation rounds
CREATE TABLE IF NOT EXISTS rounds (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    dimension_group TEXT NOT NULL,
    threshold REAL NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('active', 'completed', 'cancelled')),
    created_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP,
    UNIQUE(project_id, number, dimension_group)
);
CREATE INDEX IF NOT EXISTS idx_rounds_project ON rounds(project_id);

-- Task assignments, one per (round, unit, rater)
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    round_id TEXT NOT NULL,
    unit_id TEXT NOT NULL,
    rater_id TEXT NOT NULL,
    dimension_group TEXT NOT NULL,
    flagged TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL CHECK(status IN ('pending', 'in_progress', 'submitted', 'skipped')),
    assigned_at TIMESTAMP NOT NULL,
    submitted_at TIMESTAMP,
    UNIQUE(round_id, unit_id, rater_id),
    FOREIGN KEY (round_id) REFERENCES rounds(id),
    FOREIGN KEY (unit_id) REFERENCES units(id)
);
CREATE INDEX IF NOT EXISTS idx_tasks_rater ON tasks(rater_id);
CREATE INDEX IF NOT EXISTS idx_tasks_round ON tasks(round_id);

-- Memoized agreement scores; unit_id '' marks the global entry
CREATE TABLE IF NOT EXISTS score_cache (
    project_id TEXT NOT NULL,
    unit_id TEXT NOT NULL DEFAULT '',
    round INTEGER NOT NULL,
    dimension TEXT NOT NULL,
    score REAL NOT NULL,
    rater_count INTEGER NOT NULL,
    computed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (project_id, unit_id, round, dimension)
);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
