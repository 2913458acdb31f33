package round

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/annolab/concord/internal/agreement"
	"github.com/annolab/concord/internal/domain/annotation"
	"github.com/annolab/concord/internal/domain/schema"
	"github.com/annolab/concord/internal/metrics"
	"github.com/annolab/concord/internal/repository"
	"github.com/annolab/concord/internal/scorecache"
	"github.com/google/uuid"
)

// Service orchestrates reannotation rounds: it scores a project's latest
// answers, flags low-agreement units, and materializes rounds and tasks.
type Service struct {
	db          TxRunner
	annotations AnnotationRepository
	rounds      RoundRepository
	tasks       TaskRepository
	scores      scorecache.Cache
	metrics     *metrics.Metrics
	quorum      int
	logger      *slog.Logger
}

// NewService creates a new round orchestrator.
func NewService(
	db TxRunner,
	annotations AnnotationRepository,
	rounds RoundRepository,
	tasks TaskRepository,
	scores scorecache.Cache,
	m *metrics.Metrics,
	quorum int,
	logger *slog.Logger,
) *Service {
	if quorum < 1 {
		quorum = 1
	}
	return &Service{
		db:          db,
		annotations: annotations,
		rounds:      rounds,
		tasks:       tasks,
		scores:      scores,
		metrics:     m,
		quorum:      quorum,
		logger:      logger,
	}
}

// CreateRequest describes a round creation request.
type CreateRequest struct {
	ProjectID string
	Group     schema.GroupName
	Threshold float64
	CreatedBy string
}

// CreateResult reports the outcome of CreateRound. When no unit scores
// below the threshold, UnitsFlagged is 0 and no round exists.
type CreateResult struct {
	RoundID      string `json:"round_id,omitempty"`
	RoundNumber  int    `json:"round_number,omitempty"`
	UnitsFlagged int    `json:"units_flagged"`
	TasksCreated int    `json:"tasks_created"`
}

// Report is the read-only agreement view for dashboards.
type Report struct {
	ProjectID string                                  `json:"project_id"`
	Round     int                                     `json:"round"`
	Raters    int                                     `json:"raters"`
	Units     int                                     `json:"units"`
	Global    map[schema.Dimension]float64            `json:"global"`
	Local     map[string]map[schema.Dimension]float64 `json:"local"`
}

// UnitProgress counts raters in a terminal task state for one unit.
type UnitProgress struct {
	UnitID   string `json:"unit_id"`
	Raters   int    `json:"raters"`
	Terminal int    `json:"terminal"`
}

// Progress summarizes how far a round has advanced against the quorum
// policy.
type Progress struct {
	RoundID   string         `json:"round_id"`
	Quorum    int            `json:"quorum"`
	Units     []UnitProgress `json:"units"`
	Satisfied bool           `json:"satisfied"`
}

// CreateRound scores the project's latest completed answers for the
// dimension group, flags units below the threshold, and creates a round
// plus one task per (flagged unit, rater) in one transaction. Zero
// flagged units is a normal terminal outcome, not an error.
func (s *Service) CreateRound(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if req.ProjectID == "" {
		return CreateResult{}, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		return CreateResult{}, fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidInput, req.Threshold)
	}
	dims, err := schema.GroupDimensions(req.Group)
	if err != nil {
		return CreateResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	recs, err := s.annotations.LatestByProject(ctx, req.ProjectID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("loading annotations: %w", err)
	}

	units := unitIDs(recs)
	raterCount := len(raterIDs(recs))
	unitRaters := ratersByUnit(recs)

	scoresByDim := make(map[schema.Dimension]map[string]float64, len(dims))
	for _, dim := range dims {
		scoresByDim[dim] = agreement.LocalScores(matrixFor(recs, dim), units)
	}

	flagged := make(map[string][]FlaggedDimension)
	for _, u := range units {
		for _, dim := range dims {
			score := scoresByDim[dim][u]
			if math.IsNaN(score) {
				continue
			}
			if score < req.Threshold {
				flagged[u] = append(flagged[u], FlaggedDimension{Dimension: dim, Score: score})
			}
		}
	}

	if len(flagged) == 0 {
		s.logger.Info("no inconsistent units, round not created",
			"project", req.ProjectID, "group", req.Group, "threshold", req.Threshold)
		return CreateResult{UnitsFlagged: 0, TasksCreated: 0}, nil
	}

	flaggedUnits := make([]string, 0, len(flagged))
	for u := range flagged {
		flaggedUnits = append(flaggedUnits, u)
	}
	slices.Sort(flaggedUnits)

	now := time.Now().UTC()
	var result CreateResult
	err = s.db.InTx(ctx, func(ctx context.Context) error {
		number, err := s.rounds.NextNumber(ctx, req.ProjectID)
		if err != nil {
			return fmt.Errorf("allocating round number: %w", err)
		}

		r := &Round{
			ID:        uuid.NewString(),
			ProjectID: req.ProjectID,
			Number:    number,
			Group:     req.Group,
			Threshold: req.Threshold,
			Status:    StatusActive,
			CreatedBy: req.CreatedBy,
			CreatedAt: now,
		}
		if err := s.rounds.Insert(ctx, r); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: project %s number %d", ErrConflict, req.ProjectID, number)
			}
			return fmt.Errorf("inserting round: %w", err)
		}

		tasksCreated := 0
		for _, u := range flaggedUnits {
			raters := unitRaters[u]
			slices.Sort(raters)
			for _, rater := range raters {
				t := &Task{
					ID:         uuid.NewString(),
					RoundID:    r.ID,
					UnitID:     u,
					RaterID:    rater,
					Group:      req.Group,
					Flagged:    flagged[u],
					Status:     TaskPending,
					AssignedAt: now,
				}
				if err := s.tasks.Insert(ctx, t); err != nil {
					return fmt.Errorf("inserting task: %w", err)
				}
				tasksCreated++
			}
		}

		for _, dim := range dims {
			for _, u := range units {
				score := scoresByDim[dim][u]
				if math.IsNaN(score) {
					continue
				}
				entry := &scorecache.Entry{
					Key: scorecache.Key{
						ProjectID: req.ProjectID,
						UnitID:    u,
						Round:     number,
						Dimension: dim,
					},
					Score:      score,
					RaterCount: raterCount,
					ComputedAt: now,
				}
				if err := s.scores.Put(ctx, entry); err != nil {
					return fmt.Errorf("caching unit score: %w", err)
				}
			}
			global := &scorecache.Entry{
				Key: scorecache.Key{
					ProjectID: req.ProjectID,
					UnitID:    scorecache.GlobalUnit,
					Round:     number,
					Dimension: dim,
				},
				Score:      agreement.Alpha(matrixFor(recs, dim)),
				RaterCount: raterCount,
				ComputedAt: now,
			}
			if err := s.scores.Put(ctx, global); err != nil {
				return fmt.Errorf("caching global score: %w", err)
			}
		}

		result = CreateResult{
			RoundID:      r.ID,
			RoundNumber:  number,
			UnitsFlagged: len(flaggedUnits),
			TasksCreated: tasksCreated,
		}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	s.metrics.RoundCreated()
	s.metrics.TasksCreated(result.TasksCreated)
	s.logger.Info("round created",
		"project", req.ProjectID,
		"round", result.RoundNumber,
		"group", req.Group,
		"flagged", result.UnitsFlagged,
		"tasks", result.TasksCreated,
	)
	return result, nil
}

// ComputeAgreement returns the global coefficient per dimension and the
// per-unit local scores, served through the score cache keyed by the
// project's latest round number.
func (s *Service) ComputeAgreement(ctx context.Context, projectID string) (*Report, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}

	number, err := s.rounds.LatestNumber(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading latest round number: %w", err)
	}

	recs, err := s.annotations.LatestByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading annotations: %w", err)
	}
	units := unitIDs(recs)
	raterCount := len(raterIDs(recs))

	report := &Report{
		ProjectID: projectID,
		Round:     number,
		Raters:    raterCount,
		Units:     len(units),
		Global:    make(map[schema.Dimension]float64),
		Local:     make(map[string]map[schema.Dimension]float64),
	}

	now := time.Now().UTC()
	for _, dim := range schema.Dimensions() {
		globalKey := scorecache.Key{
			ProjectID: projectID,
			UnitID:    scorecache.GlobalUnit,
			Round:     number,
			Dimension: dim,
		}
		if entry, err := s.scores.Get(ctx, globalKey); err != nil {
			return nil, fmt.Errorf("reading score cache: %w", err)
		} else if entry != nil {
			s.metrics.CacheHit()
			report.Global[dim] = entry.Score
		} else {
			s.metrics.CacheMiss()
			score := agreement.Alpha(matrixFor(recs, dim))
			report.Global[dim] = score
			put := &scorecache.Entry{Key: globalKey, Score: score, RaterCount: raterCount, ComputedAt: now}
			if err := s.scores.Put(ctx, put); err != nil {
				return nil, fmt.Errorf("caching global score: %w", err)
			}
		}

		local, err := s.localScoresCached(ctx, projectID, number, dim, recs, units, raterCount, now)
		if err != nil {
			return nil, err
		}
		for u, score := range local {
			if report.Local[u] == nil {
				report.Local[u] = make(map[schema.Dimension]float64)
			}
			report.Local[u][dim] = score
		}
	}

	return report, nil
}

// localScoresCached serves a dimension's unit scores from the cache when
// every unit is present, recomputing and repopulating otherwise.
func (s *Service) localScoresCached(
	ctx context.Context,
	projectID string,
	number int,
	dim schema.Dimension,
	recs []annotation.Record,
	units []string,
	raterCount int,
	now time.Time,
) (map[string]float64, error) {
	cached := make(map[string]float64, len(units))
	complete := true
	for _, u := range units {
		key := scorecache.Key{ProjectID: projectID, UnitID: u, Round: number, Dimension: dim}
		entry, err := s.scores.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading score cache: %w", err)
		}
		if entry == nil {
			complete = false
			break
		}
		cached[u] = entry.Score
	}
	if complete && len(units) > 0 {
		s.metrics.CacheHit()
		return cached, nil
	}

	s.metrics.CacheMiss()
	scores := agreement.LocalScores(matrixFor(recs, dim), units)
	out := make(map[string]float64, len(scores))
	for u, score := range scores {
		// NaN means "not yet scoreable"; such units are left out of the
		// report and the cache rather than serialized.
		if math.IsNaN(score) {
			continue
		}
		out[u] = score
		entry := &scorecache.Entry{
			Key:        scorecache.Key{ProjectID: projectID, UnitID: u, Round: number, Dimension: dim},
			Score:      score,
			RaterCount: raterCount,
			ComputedAt: now,
		}
		if err := s.scores.Put(ctx, entry); err != nil {
			return nil, fmt.Errorf("caching unit score: %w", err)
		}
	}
	return out, nil
}

// Get returns a round by ID.
func (s *Service) Get(ctx context.Context, id string) (*Round, error) {
	r, err := s.rounds.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoundNotFound, id)
		}
		return nil, fmt.Errorf("loading round: %w", err)
	}
	return r, nil
}

// List returns all rounds for a project, newest first.
func (s *Service) List(ctx context.Context, projectID string) ([]Round, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}
	return s.rounds.List(ctx, projectID)
}

// Progress reports per-unit terminal rater counts against the quorum.
// A unit with fewer assigned raters than the quorum is satisfied once
// all of them are terminal.
func (s *Service) Progress(ctx context.Context, roundID string) (*Progress, error) {
	if _, err := s.Get(ctx, roundID); err != nil {
		return nil, err
	}
	units, err := s.tasks.UnitProgress(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("loading unit progress: %w", err)
	}

	satisfied := true
	for _, u := range units {
		required := s.quorum
		if u.Raters < required {
			required = u.Raters
		}
		if u.Terminal < required {
			satisfied = false
			break
		}
	}

	return &Progress{
		RoundID:   roundID,
		Quorum:    s.quorum,
		Units:     units,
		Satisfied: satisfied,
	}, nil
}

// Complete marks an active round completed. Terminal.
func (s *Service) Complete(ctx context.Context, id string) error {
	return s.finish(ctx, id, StatusCompleted)
}

// Cancel marks an active round cancelled. Terminal.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.finish(ctx, id, StatusCancelled)
}

func (s *Service) finish(ctx context.Context, id string, to Status) error {
	now := time.Now().UTC()
	err := s.rounds.SetStatus(ctx, id, StatusActive, to, &now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRoundNotFound, id)
		}
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: %s", ErrNotActive, id)
		}
		return fmt.Errorf("updating round status: %w", err)
	}
	s.logger.Info("round finished", "round", id, "status", to)
	return nil
}

// Delete removes a round and its tasks in one transaction.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.tasks.DeleteByRound(ctx, id); err != nil {
			return fmt.Errorf("deleting tasks: %w", err)
		}
		if err := s.rounds.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting round: %w", err)
		}
		return nil
	})
}

func matrixFor(recs []annotation.Record, dim schema.Dimension) agreement.Matrix[string] {
	m := agreement.Matrix[string]{}
	for _, rec := range recs {
		if m[rec.RaterID] == nil {
			m[rec.RaterID] = make(map[string]string)
		}
		if v := rec.Fields[dim]; v != "" {
			m[rec.RaterID][rec.UnitID] = v
		}
	}
	return m
}

func unitIDs(recs []annotation.Record) []string {
	seen := make(map[string]struct{})
	for _, rec := range recs {
		seen[rec.UnitID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}

func raterIDs(recs []annotation.Record) []string {
	seen := make(map[string]struct{})
	for _, rec := range recs {
		seen[rec.RaterID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

func ratersByUnit(recs []annotation.Record) map[string][]string {
	out := make(map[string][]string)
	for _, rec := range recs {
		out[rec.UnitID] = append(out[rec.UnitID], rec.RaterID)
	}
	return out
}
