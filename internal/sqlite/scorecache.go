package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/annolab/concord/internal/scorecache"
)

// ScoreCacheRepository implements scorecache.Cache over the shared
// database so cached scores survive restarts with the data they derive
// from.
type ScoreCacheRepository struct {
	db *DB
}

// NewScoreCacheRepository creates a new ScoreCacheRepository.
func NewScoreCacheRepository(db *DB) *ScoreCacheRepository {
	return &ScoreCacheRepository{db: db}
}

// Get returns the cached entry for key, or (nil, nil) on a miss.
func (r *ScoreCacheRepository) Get(ctx context.Context, key scorecache.Key) (*scorecache.Entry, error) {
	query := `
		SELECT score, rater_count, computed_at
		FROM score_cache
		WHERE project_id = ? AND unit_id = ? AND round = ? AND dimension = ?
	`
	entry := scorecache.Entry{Key: key}
	err := r.db.q(ctx).QueryRowContext(ctx, query, key.ProjectID, key.UnitID, key.Round, key.Dimension).
		Scan(&entry.Score, &entry.RaterCount, &entry.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached score: %w", err)
	}
	return &entry, nil
}

// Put upserts one entry.
func (r *ScoreCacheRepository) Put(ctx context.Context, entry *scorecache.Entry) error {
	query := `
		INSERT INTO score_cache (project_id, unit_id, round, dimension, score, rater_count, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, unit_id, round, dimension)
		DO UPDATE SET score = excluded.score, rater_count = excluded.rater_count, computed_at = excluded.computed_at
	`
	_, err := r.db.q(ctx).ExecContext(ctx, query,
		entry.ProjectID,
		entry.UnitID,
		entry.Round,
		entry.Dimension,
		entry.Score,
		entry.RaterCount,
		entry.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put cached score: %w", err)
	}
	return nil
}

// Invalidate deletes every dimension entry for (project, unit, round).
func (r *ScoreCacheRepository) Invalidate(ctx context.Context, projectID, unitID string, round int) error {
	query := `DELETE FROM score_cache WHERE project_id = ? AND unit_id = ? AND round = ?`
	if _, err := r.db.q(ctx).ExecContext(ctx, query, projectID, unitID, round); err != nil {
		return fmt.Errorf("failed to invalidate cached scores: %w", err)
	}
	return nil
}
