package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/annolab/concord/internal/domain/round"
	"github.com/annolab/concord/internal/repository"
)

// TaskRepository implements task persistence for SQLite.
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `
	t.id, t.round_id, t.unit_id, t.rater_id, t.dimension_group,
	t.flagged, t.status, t.assigned_at, t.submitted_at
`

// Insert creates a new task. A duplicate (round, unit, rater) surfaces
// as repository.ErrConflict.
func (r *TaskRepository) Insert(ctx context.Context, t *round.Task) error {
	flagged, err := json.Marshal(t.Flagged)
	if err != nil {
		return fmt.Errorf("failed to encode flagged dimensions: %w", err)
	}

	query := `
		INSERT INTO tasks (id, round_id, unit_id, rater_id, dimension_group, flagged, status, assigned_at, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.q(ctx).ExecContext(ctx, query,
		t.ID,
		t.RoundID,
		t.UnitID,
		t.RaterID,
		t.Group,
		string(flagged),
		t.Status,
		t.AssignedAt,
		t.SubmittedAt,
	)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Get retrieves a task by ID.
func (r *TaskRepository) Get(ctx context.Context, id string) (*round.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = ?`
	t, err := scanTask(r.db.q(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListForRater returns a rater's tasks matching the given filters.
func (r *TaskRepository) ListForRater(ctx context.Context, raterID string, opts round.TaskListOptions) ([]round.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN rounds r ON r.id = t.round_id
		WHERE t.rater_id = ?
	`
	args := []any{raterID}
	var conditions []string

	if opts.ProjectID != "" {
		conditions = append(conditions, "r.project_id = ?")
		args = append(args, opts.ProjectID)
	}
	if opts.RoundID != "" {
		conditions = append(conditions, "t.round_id = ?")
		args = append(args, opts.RoundID)
	}
	if opts.Group != "" {
		conditions = append(conditions, "t.dimension_group = ?")
		args = append(args, opts.Group)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY t.assigned_at ASC, t.unit_id ASC"

	rows, err := r.db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []round.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return out, nil
}

// UpdateStatus transitions a task from one of the given states,
// returning repository.ErrConflict when the current state is not among
// them.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, from []round.TaskStatus, to round.TaskStatus, submittedAt *time.Time) error {
	placeholders := make([]string, len(from))
	args := []any{to, submittedAt, id}
	for i, status := range from {
		placeholders[i] = "?"
		args = append(args, status)
	}
	query := fmt.Sprintf(
		`UPDATE tasks SET status = ?, submitted_at = COALESCE(?, submitted_at) WHERE id = ? AND status IN (%s)`,
		strings.Join(placeholders, ","),
	)

	result, err := r.db.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		check := `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = ?)`
		if err := r.db.q(ctx).QueryRowContext(ctx, check, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check task existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

// Reassign moves a task to another rater. A duplicate assignment
// surfaces as repository.ErrConflict.
func (r *TaskRepository) Reassign(ctx context.Context, id, raterID string) error {
	result, err := r.db.q(ctx).ExecContext(ctx, `UPDATE tasks SET rater_id = ? WHERE id = ?`, raterID, id)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("failed to reassign task: %w", err)
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

// DeleteByRound removes all tasks belonging to a round.
func (r *TaskRepository) DeleteByRound(ctx context.Context, roundID string) error {
	_, err := r.db.q(ctx).ExecContext(ctx, `DELETE FROM tasks WHERE round_id = ?`, roundID)
	if err != nil {
		return fmt.Errorf("failed to delete tasks: %w", err)
	}
	return nil
}

// UnitProgress counts assigned and terminal raters per unit for a round.
func (r *TaskRepository) UnitProgress(ctx context.Context, roundID string) ([]round.UnitProgress, error) {
	query := `
		SELECT unit_id,
		       COUNT(*) AS raters,
		       SUM(CASE WHEN status IN ('submitted', 'skipped') THEN 1 ELSE 0 END) AS terminal
		FROM tasks
		WHERE round_id = ?
		GROUP BY unit_id
		ORDER BY unit_id ASC
	`
	rows, err := r.db.q(ctx).QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unit progress: %w", err)
	}
	defer rows.Close()

	var out []round.UnitProgress
	for rows.Next() {
		var p round.UnitProgress
		if err := rows.Scan(&p.UnitID, &p.Raters, &p.Terminal); err != nil {
			return nil, fmt.Errorf("failed to scan unit progress: %w", err)
		}
		out = append(out, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress rows: %w", err)
	}
	return out, nil
}

func scanTask(row rowScanner) (*round.Task, error) {
	var t round.Task
	var flagged string
	err := row.Scan(
		&t.ID,
		&t.RoundID,
		&t.UnitID,
		&t.RaterID,
		&t.Group,
		&flagged,
		&t.Status,
		&t.AssignedAt,
		&t.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(flagged), &t.Flagged); err != nil {
		return nil, fmt.Errorf("failed to decode flagged dimensions: %w", err)
	}
	return &t, nil
}
