package sqlite

import (
	"context"
	"fmt"

	"github.com/annolab/concord/internal/domain/annotation"
)

// AuditRepository implements the field-level change log for SQLite.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one change entry and fills in its generated ID.
func (r *AuditRepository) Append(ctx context.Context, entry *annotation.AuditEntry) error {
	query := `
		INSERT INTO audit_log (unit_id, rater_id, field, old_value, new_value, round, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.q(ctx).ExecContext(ctx, query,
		entry.UnitID,
		entry.RaterID,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
		entry.Round,
		entry.Reason,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// ListForUnit returns all change entries for a unit, oldest first.
func (r *AuditRepository) ListForUnit(ctx context.Context, unitID string) ([]annotation.AuditEntry, error) {
	query := `
		SELECT id, unit_id, rater_id, field, old_value, new_value, round, reason, created_at
		FROM audit_log
		WHERE unit_id = ?
		ORDER BY id ASC
	`
	rows, err := r.db.q(ctx).QueryContext(ctx, query, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []annotation.AuditEntry
	for rows.Next() {
		var entry annotation.AuditEntry
		err := rows.Scan(
			&entry.ID,
			&entry.UnitID,
			&entry.RaterID,
			&entry.Field,
			&entry.OldValue,
			&entry.NewValue,
			&entry.Round,
			&entry.Reason,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		out = append(out, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return out, nil
}
