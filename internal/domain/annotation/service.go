package annotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/annolab/concord/internal/domain/schema"
	"github.com/annolab/concord/internal/repository"
	"github.com/google/uuid"
)

// Service is the versioned annotation store: it resolves current answers
// and appends new versions with a field-level audit trail.
type Service struct {
	db      TxRunner
	records RecordRepository
	audit   AuditRepository
	logger  *slog.Logger
}

// NewService creates a new annotation store service.
func NewService(db TxRunner, records RecordRepository, audit AuditRepository, logger *slog.Logger) *Service {
	return &Service{
		db:      db,
		records: records,
		audit:   audit,
		logger:  logger,
	}
}

// AppendRequest describes one reannotation submission.
type AppendRequest struct {
	UnitID  string
	RaterID string
	Fields  schema.Fields
	Round   int
	Comment string
	Persist bool
}

// AppendResult reports the outcome of a version append.
type AppendResult struct {
	Version       int `json:"version"`
	ChangedFields int `json:"changed_fields"`
}

// LatestForUnit returns the current answer per rater for one unit,
// restricted to completed, non-skipped records.
func (s *Service) LatestForUnit(ctx context.Context, unitID string) (map[string]Record, error) {
	if unitID == "" {
		return nil, fmt.Errorf("%w: unit id is required", ErrInvalidInput)
	}
	latest, err := s.records.LatestForUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("loading latest records: %w", err)
	}
	return latest, nil
}

// AppendVersion writes a new version for (unit, rater) inside one
// transaction: audit entries for changed fields plus the new record.
func (s *Service) AppendVersion(ctx context.Context, req AppendRequest) (AppendResult, error) {
	if err := validateAppend(req); err != nil {
		return AppendResult{}, err
	}

	var result AppendResult
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = Append(ctx, s.records, s.audit, req)
		return err
	})
	if err != nil {
		return AppendResult{}, err
	}

	s.logger.Info("annotation version appended",
		"unit", req.UnitID,
		"rater", req.RaterID,
		"version", result.Version,
		"changed", result.ChangedFields,
	)
	return result, nil
}

// History returns all versions for (unit, rater), oldest first.
func (s *Service) History(ctx context.Context, unitID, raterID string) ([]Record, error) {
	if unitID == "" || raterID == "" {
		return nil, fmt.Errorf("%w: unit and rater ids are required", ErrInvalidInput)
	}
	recs, err := s.records.History(ctx, unitID, raterID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return recs, nil
}

// AuditTrail returns all field-level changes recorded for a unit.
func (s *Service) AuditTrail(ctx context.Context, unitID string) ([]AuditEntry, error) {
	if unitID == "" {
		return nil, fmt.Errorf("%w: unit id is required", ErrInvalidInput)
	}
	entries, err := s.audit.ListForUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("loading audit trail: %w", err)
	}
	return entries, nil
}

// Append runs the versioning core against the given repositories. The
// caller owns transactional scope; the task lifecycle composes this into
// its own submission transaction.
func Append(ctx context.Context, records RecordRepository, audit AuditRepository, req AppendRequest) (AppendResult, error) {
	prior, err := records.Latest(ctx, req.UnitID, req.RaterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AppendResult{}, fmt.Errorf("%w: %s/%s", ErrNoPriorRecord, req.UnitID, req.RaterID)
		}
		return AppendResult{}, fmt.Errorf("loading prior record: %w", err)
	}

	now := time.Now().UTC()
	next := Record{
		ID:        uuid.NewString(),
		UnitID:    req.UnitID,
		RaterID:   req.RaterID,
		Version:   prior.Version + 1,
		Round:     req.Round,
		Fields:    prior.Fields.Clone(),
		Status:    StatusCompleted,
		Skipped:   false,
		SaveCount: prior.SaveCount + 1,
		Persist:   req.Persist,
		Comment:   req.Comment,
		CreatedAt: now,
	}

	changed := 0
	for _, dim := range schema.Dimensions() {
		value, submitted := req.Fields[dim]
		if !submitted {
			continue
		}
		old := prior.Fields[dim]
		next.Fields[dim] = value
		if value == old {
			continue
		}
		entry := &AuditEntry{
			UnitID:    req.UnitID,
			RaterID:   req.RaterID,
			Field:     dim,
			OldValue:  old,
			NewValue:  value,
			Round:     req.Round,
			Reason:    req.Comment,
			CreatedAt: now,
		}
		if err := audit.Append(ctx, entry); err != nil {
			return AppendResult{}, fmt.Errorf("appending audit entry: %w", err)
		}
		changed++
	}

	if err := records.Insert(ctx, &next); err != nil {
		return AppendResult{}, fmt.Errorf("inserting record: %w", err)
	}

	return AppendResult{Version: next.Version, ChangedFields: changed}, nil
}

func validateAppend(req AppendRequest) error {
	if req.UnitID == "" || req.RaterID == "" {
		return fmt.Errorf("%w: unit and rater ids are required", ErrInvalidInput)
	}
	if req.Round < 0 {
		return fmt.Errorf("%w: round must not be negative", ErrInvalidInput)
	}
	if err := req.Fields.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
