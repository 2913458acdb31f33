package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/annolab/concord/internal/domain/annotation"
	"github.com/annolab/concord/internal/domain/round"
	"github.com/annolab/concord/internal/domain/schema"
	"github.com/annolab/concord/internal/metrics"
	"github.com/annolab/concord/internal/repository"
	"github.com/annolab/concord/internal/scorecache"
)

// Service tracks assigned tasks through their lifecycle and turns
// submissions into new annotation versions.
type Service struct {
	db          TxRunner
	tasks       TaskRepository
	rounds      RoundRepository
	annotations annotation.RecordRepository
	audit       annotation.AuditRepository
	scores      scorecache.Cache
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewService creates a new task lifecycle manager.
func NewService(
	db TxRunner,
	tasks TaskRepository,
	rounds RoundRepository,
	annotations annotation.RecordRepository,
	audit annotation.AuditRepository,
	scores scorecache.Cache,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:          db,
		tasks:       tasks,
		rounds:      rounds,
		annotations: annotations,
		audit:       audit,
		scores:      scores,
		metrics:     m,
		logger:      logger,
	}
}

// View is a task with the rater's current answer embedded, as served to
// the annotation UI.
type View struct {
	round.Task
	CurrentAnswer *annotation.Record `json:"current_answer,omitempty"`
}

// SubmitRequest describes one task submission.
type SubmitRequest struct {
	TaskID  string
	RaterID string
	Fields  schema.Fields
	Persist bool
	Comment string
}

// ListForRater returns a rater's tasks with their current-answer
// snapshots and the flagged-dimension scores captured at assignment.
func (s *Service) ListForRater(ctx context.Context, raterID string, opts round.TaskListOptions) ([]View, error) {
	if raterID == "" {
		return nil, fmt.Errorf("%w: rater id is required", ErrInvalidInput)
	}
	tasks, err := s.tasks.ListForRater(ctx, raterID, opts)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	views := make([]View, 0, len(tasks))
	for _, t := range tasks {
		view := View{Task: t}
		rec, err := s.annotations.Latest(ctx, t.UnitID, raterID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("loading current answer: %w", err)
		}
		if err == nil {
			view.CurrentAnswer = rec
		}
		views = append(views, view)
	}
	return views, nil
}

// Start moves a pending task to in_progress for the owning rater.
func (s *Service) Start(ctx context.Context, taskID, raterID string) error {
	t, err := s.owned(ctx, taskID, raterID)
	if err != nil {
		return err
	}
	if t.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, taskID)
	}
	if t.Status == round.TaskInProgress {
		return nil
	}
	err = s.tasks.UpdateStatus(ctx, taskID, []round.TaskStatus{round.TaskPending}, round.TaskInProgress, nil)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: %s", ErrAlreadyResolved, taskID)
		}
		return fmt.Errorf("starting task: %w", err)
	}
	return nil
}

// Submit verifies ownership, appends a new annotation version with its
// audit entries, marks the task submitted, and invalidates the cached
// scores for the affected unit and round, all in one transaction.
// Re-submitting a resolved task is rejected; the task, not the record,
// is the idempotency boundary.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (annotation.AppendResult, error) {
	t, err := s.owned(ctx, req.TaskID, req.RaterID)
	if err != nil {
		return annotation.AppendResult{}, err
	}
	if t.Status.Terminal() {
		return annotation.AppendResult{}, fmt.Errorf("%w: %s", ErrAlreadyResolved, req.TaskID)
	}
	if err := req.Fields.ValidateForGroup(t.Group); err != nil {
		return annotation.AppendResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	r, err := s.rounds.Get(ctx, t.RoundID)
	if err != nil {
		return annotation.AppendResult{}, fmt.Errorf("loading round: %w", err)
	}

	now := time.Now().UTC()
	var result annotation.AppendResult
	err = s.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = annotation.Append(ctx, s.annotations, s.audit, annotation.AppendRequest{
			UnitID:  t.UnitID,
			RaterID: req.RaterID,
			Fields:  req.Fields,
			Round:   r.Number,
			Comment: req.Comment,
			Persist: req.Persist,
		})
		if err != nil {
			return err
		}

		active := []round.TaskStatus{round.TaskPending, round.TaskInProgress}
		if err := s.tasks.UpdateStatus(ctx, t.ID, active, round.TaskSubmitted, &now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: %s", ErrAlreadyResolved, t.ID)
			}
			return fmt.Errorf("marking task submitted: %w", err)
		}

		// Cached scores are keyed by the round number current at compute
		// time, so rounds opened after this one hold entries derived from
		// the old answer too. Drop the unit's and the global entries for
		// every round from this task's up to the project's latest.
		latest, err := s.rounds.LatestNumber(ctx, r.ProjectID)
		if err != nil {
			return fmt.Errorf("loading latest round number: %w", err)
		}
		if latest < r.Number {
			latest = r.Number
		}
		for n := r.Number; n <= latest; n++ {
			if err := s.scores.Invalidate(ctx, r.ProjectID, t.UnitID, n); err != nil {
				return fmt.Errorf("invalidating unit scores: %w", err)
			}
			if err := s.scores.Invalidate(ctx, r.ProjectID, scorecache.GlobalUnit, n); err != nil {
				return fmt.Errorf("invalidating global scores: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return annotation.AppendResult{}, err
	}

	s.metrics.TaskSubmitted()
	s.logger.Info("task submitted",
		"task", t.ID,
		"unit", t.UnitID,
		"rater", req.RaterID,
		"round", r.Number,
		"version", result.Version,
		"changed", result.ChangedFields,
	)
	return result, nil
}

// Skip resolves a task as skipped without writing a new annotation
// version.
func (s *Service) Skip(ctx context.Context, taskID, raterID string) error {
	t, err := s.owned(ctx, taskID, raterID)
	if err != nil {
		return err
	}
	if t.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, taskID)
	}
	active := []round.TaskStatus{round.TaskPending, round.TaskInProgress}
	if err := s.tasks.UpdateStatus(ctx, taskID, active, round.TaskSkipped, nil); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: %s", ErrAlreadyResolved, taskID)
		}
		return fmt.Errorf("skipping task: %w", err)
	}
	s.metrics.TaskSkipped()
	return nil
}

// Reassign moves a pending task to another rater. Administration
// pass-through; duplicate assignments surface as ErrConflict.
func (s *Service) Reassign(ctx context.Context, taskID, raterID string) error {
	if raterID == "" {
		return fmt.Errorf("%w: rater id is required", ErrInvalidInput)
	}
	t, err := s.get(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status != round.TaskPending {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, taskID)
	}
	if err := s.tasks.Reassign(ctx, taskID, raterID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: rater %s already assigned", ErrConflict, raterID)
		}
		return fmt.Errorf("reassigning task: %w", err)
	}
	s.logger.Info("task reassigned", "task", taskID, "rater", raterID)
	return nil
}

func (s *Service) get(ctx context.Context, taskID string) (*round.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: task id is required", ErrInvalidInput)
	}
	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return nil, fmt.Errorf("loading task: %w", err)
	}
	return t, nil
}

func (s *Service) owned(ctx context.Context, taskID, raterID string) (*round.Task, error) {
	if raterID == "" {
		return nil, fmt.Errorf("%w: rater id is required", ErrInvalidInput)
	}
	t, err := s.get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.RaterID != raterID {
		return nil, fmt.Errorf("%w: %s", ErrNotOwner, taskID)
	}
	return t, nil
}
