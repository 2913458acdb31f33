package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/annolab/concord/internal/domain/unit"
	"github.com/annolab/concord/internal/repository"
)

// UnitRepository implements corpus unit persistence for SQLite. Units
// are written at ingestion time and read-only afterwards.
type UnitRepository struct {
	db *DB
}

// NewUnitRepository creates a new UnitRepository.
func NewUnitRepository(db *DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// Insert creates a new unit.
func (r *UnitRepository) Insert(ctx context.Context, u *unit.Unit) error {
	query := `INSERT INTO units (id, project_id, body, page_ref, seq) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.q(ctx).ExecContext(ctx, query, u.ID, u.ProjectID, u.Body, u.PageRef, u.Seq)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("failed to insert unit: %w", err)
	}
	return nil
}

// Get retrieves a unit by ID.
func (r *UnitRepository) Get(ctx context.Context, id string) (*unit.Unit, error) {
	query := `SELECT id, project_id, body, page_ref, seq FROM units WHERE id = ?`
	var u unit.Unit
	err := r.db.q(ctx).QueryRowContext(ctx, query, id).Scan(&u.ID, &u.ProjectID, &u.Body, &u.PageRef, &u.Seq)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}
	return &u, nil
}

// ListByProject returns a project's units in sequence order.
func (r *UnitRepository) ListByProject(ctx context.Context, projectID string) ([]unit.Unit, error) {
	query := `SELECT id, project_id, body, page_ref, seq FROM units WHERE project_id = ? ORDER BY seq ASC, id ASC`
	rows, err := r.db.q(ctx).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var out []unit.Unit
	for rows.Next() {
		var u unit.Unit
		if err := rows.Scan(&u.ID, &u.ProjectID, &u.Body, &u.PageRef, &u.Seq); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		out = append(out, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unit rows: %w", err)
	}
	return out, nil
}
