package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/annolab/concord/internal/domain/round"
	"github.com/annolab/concord/internal/repository"
)

// RoundRepository implements round persistence for SQLite.
type RoundRepository struct {
	db *DB
}

// NewRoundRepository creates a new RoundRepository.
func NewRoundRepository(db *DB) *RoundRepository {
	return &RoundRepository{db: db}
}

// Insert creates a new round. A (project, number, group) collision
// surfaces as repository.ErrConflict so callers can retry.
func (r *RoundRepository) Insert(ctx context.Context, rnd *round.Round) error {
	query := `
		INSERT INTO rounds (id, project_id, number, dimension_group, threshold, status, created_by, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.q(ctx).ExecContext(ctx, query,
		rnd.ID,
		rnd.ProjectID,
		rnd.Number,
		rnd.Group,
		rnd.Threshold,
		rnd.Status,
		rnd.CreatedBy,
		rnd.CreatedAt,
		rnd.CompletedAt,
	)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("failed to insert round: %w", err)
	}
	return nil
}

// Get retrieves a round by ID.
func (r *RoundRepository) Get(ctx context.Context, id string) (*round.Round, error) {
	query := `
		SELECT id, project_id, number, dimension_group, threshold, status, created_by, created_at, completed_at
		FROM rounds
		WHERE id = ?
	`
	var rnd round.Round
	err := r.db.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&rnd.ID,
		&rnd.ProjectID,
		&rnd.Number,
		&rnd.Group,
		&rnd.Threshold,
		&rnd.Status,
		&rnd.CreatedBy,
		&rnd.CreatedAt,
		&rnd.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return &rnd, nil
}

// List returns all rounds for a project, newest first.
func (r *RoundRepository) List(ctx context.Context, projectID string) ([]round.Round, error) {
	query := `
		SELECT id, project_id, number, dimension_group, threshold, status, created_by, created_at, completed_at
		FROM rounds
		WHERE project_id = ?
		ORDER BY number DESC, dimension_group ASC
	`
	rows, err := r.db.q(ctx).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	var out []round.Round
	for rows.Next() {
		var rnd round.Round
		err := rows.Scan(
			&rnd.ID,
			&rnd.ProjectID,
			&rnd.Number,
			&rnd.Group,
			&rnd.Threshold,
			&rnd.Status,
			&rnd.CreatedBy,
			&rnd.CreatedAt,
			&rnd.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		out = append(out, rnd)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating round rows: %w", err)
	}
	return out, nil
}

// NextNumber allocates the next sequential round number for a project.
func (r *RoundRepository) NextNumber(ctx context.Context, projectID string) (int, error) {
	var next int
	query := `SELECT COALESCE(MAX(number), 0) + 1 FROM rounds WHERE project_id = ?`
	if err := r.db.q(ctx).QueryRowContext(ctx, query, projectID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to allocate round number: %w", err)
	}
	return next, nil
}

// LatestNumber returns the highest round number for a project, or 0.
func (r *RoundRepository) LatestNumber(ctx context.Context, projectID string) (int, error) {
	var latest int
	query := `SELECT COALESCE(MAX(number), 0) FROM rounds WHERE project_id = ?`
	if err := r.db.q(ctx).QueryRowContext(ctx, query, projectID).Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to get latest round number: %w", err)
	}
	return latest, nil
}

// SetStatus transitions a round from one status to another, returning
// repository.ErrConflict when the round is not in the expected state.
func (r *RoundRepository) SetStatus(ctx context.Context, id string, from, to round.Status, completedAt *time.Time) error {
	query := `UPDATE rounds SET status = ?, completed_at = ? WHERE id = ? AND status = ?`
	result, err := r.db.q(ctx).ExecContext(ctx, query, to, completedAt, id, from)
	if err != nil {
		return fmt.Errorf("failed to update round status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		check := `SELECT EXISTS(SELECT 1 FROM rounds WHERE id = ?)`
		if err := r.db.q(ctx).QueryRowContext(ctx, check, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check round existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

// Delete removes a round.
func (r *RoundRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.q(ctx).ExecContext(ctx, `DELETE FROM rounds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete round: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
