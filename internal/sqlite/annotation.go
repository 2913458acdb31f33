package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/annolab/concord/internal/domain/annotation"
	"github.com/annolab/concord/internal/domain/schema"
	"github.com/annolab/concord/internal/repository"
)

// AnnotationRepository implements annotation record persistence for
// SQLite.
type AnnotationRepository struct {
	db *DB
}

// NewAnnotationRepository creates a new AnnotationRepository.
func NewAnnotationRepository(db *DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

const annotationColumns = `
	id, unit_id, rater_id, version, round, fields,
	status, skipped, save_count, persist, comment, created_at
`

// latestFilter keeps only the newest completed, non-skipped version per
// (unit, rater). Versions are unique per pair, so version order decides.
const latestFilter = `
	a.status = 'completed' AND a.skipped = 0
	AND NOT EXISTS (
		SELECT 1 FROM annotations b
		WHERE b.unit_id = a.unit_id AND b.rater_id = a.rater_id
		  AND b.status = 'completed' AND b.skipped = 0
		  AND b.version > a.version
	)
`

// Insert appends a new annotation version.
func (r *AnnotationRepository) Insert(ctx context.Context, rec *annotation.Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	query := `
		INSERT INTO annotations (` + annotationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.q(ctx).ExecContext(ctx, query,
		rec.ID,
		rec.UnitID,
		rec.RaterID,
		rec.Version,
		rec.Round,
		string(fields),
		rec.Status,
		rec.Skipped,
		rec.SaveCount,
		rec.Persist,
		rec.Comment,
		rec.CreatedAt,
	)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("failed to insert annotation: %w", err)
	}
	return nil
}

// Latest returns the newest version for (unit, rater) regardless of
// status, ordered by version, then round, then timestamp.
func (r *AnnotationRepository) Latest(ctx context.Context, unitID, raterID string) (*annotation.Record, error) {
	query := `
		SELECT ` + annotationColumns + `
		FROM annotations
		WHERE unit_id = ? AND rater_id = ?
		ORDER BY version DESC, round DESC, created_at DESC
		LIMIT 1
	`
	rec, err := scanAnnotation(r.db.q(ctx).QueryRowContext(ctx, query, unitID, raterID))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest annotation: %w", err)
	}
	return rec, nil
}

// LatestForUnit returns the newest completed, non-skipped record per
// rater for one unit.
func (r *AnnotationRepository) LatestForUnit(ctx context.Context, unitID string) (map[string]annotation.Record, error) {
	query := `
		SELECT ` + annotationColumns + `
		FROM annotations a
		WHERE a.unit_id = ? AND ` + latestFilter + `
		ORDER BY a.rater_id ASC
	`
	rows, err := r.db.q(ctx).QueryContext(ctx, query, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest for unit: %w", err)
	}
	defer rows.Close()

	out := make(map[string]annotation.Record)
	for rows.Next() {
		rec, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		out[rec.RaterID] = *rec
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotation rows: %w", err)
	}
	return out, nil
}

// LatestByProject returns the newest completed, non-skipped record per
// (unit, rater) across a whole project.
func (r *AnnotationRepository) LatestByProject(ctx context.Context, projectID string) ([]annotation.Record, error) {
	query := `
		SELECT
			a.id, a.unit_id, a.rater_id, a.version, a.round, a.fields,
			a.status, a.skipped, a.save_count, a.persist, a.comment, a.created_at
		FROM annotations a
		JOIN units u ON u.id = a.unit_id
		WHERE u.project_id = ? AND ` + latestFilter + `
		ORDER BY a.unit_id ASC, a.rater_id ASC
	`
	rows, err := r.db.q(ctx).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest by project: %w", err)
	}
	defer rows.Close()

	var out []annotation.Record
	for rows.Next() {
		rec, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		out = append(out, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotation rows: %w", err)
	}
	return out, nil
}

// History returns all versions for (unit, rater), oldest first.
func (r *AnnotationRepository) History(ctx context.Context, unitID, raterID string) ([]annotation.Record, error) {
	query := `
		SELECT ` + annotationColumns + `
		FROM annotations
		WHERE unit_id = ? AND rater_id = ?
		ORDER BY version ASC
	`
	rows, err := r.db.q(ctx).QueryContext(ctx, query, unitID, raterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var out []annotation.Record
	for rows.Next() {
		rec, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		out = append(out, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(row rowScanner) (*annotation.Record, error) {
	var rec annotation.Record
	var fields string
	err := row.Scan(
		&rec.ID,
		&rec.UnitID,
		&rec.RaterID,
		&rec.Version,
		&rec.Round,
		&fields,
		&rec.Status,
		&rec.Skipped,
		&rec.SaveCount,
		&rec.Persist,
		&rec.Comment,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Fields = schema.Fields{}
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return &rec, nil
}
