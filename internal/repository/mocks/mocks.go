// Package mocks provides testify mocks for the domain repository
// interfaces. TaskRepository carries the union of the orchestrator's and
// the lifecycle manager's method sets so one mock serves both.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/annolab/concord/internal/domain/annotation"
	"github.com/annolab/concord/internal/domain/round"
	"github.com/annolab/concord/internal/scorecache"
)

// TxRunner runs the transactional function directly, without a database.
type TxRunner struct{}

func (TxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// RecordRepository is a mock for annotation.RecordRepository.
type RecordRepository struct {
	mock.Mock
}

func (m *RecordRepository) Insert(ctx context.Context, rec *annotation.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *RecordRepository) Latest(ctx context.Context, unitID, raterID string) (*annotation.Record, error) {
	args := m.Called(ctx, unitID, raterID)
	if rec, ok := args.Get(0).(*annotation.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordRepository) LatestForUnit(ctx context.Context, unitID string) (map[string]annotation.Record, error) {
	args := m.Called(ctx, unitID)
	if recs, ok := args.Get(0).(map[string]annotation.Record); ok {
		return recs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordRepository) LatestByProject(ctx context.Context, projectID string) ([]annotation.Record, error) {
	args := m.Called(ctx, projectID)
	if recs, ok := args.Get(0).([]annotation.Record); ok {
		return recs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordRepository) History(ctx context.Context, unitID, raterID string) ([]annotation.Record, error) {
	args := m.Called(ctx, unitID, raterID)
	if recs, ok := args.Get(0).([]annotation.Record); ok {
		return recs, args.Error(1)
	}
	return nil, args.Error(1)
}

// AuditRepository is a mock for annotation.AuditRepository.
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Append(ctx context.Context, entry *annotation.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *AuditRepository) ListForUnit(ctx context.Context, unitID string) ([]annotation.AuditEntry, error) {
	args := m.Called(ctx, unitID)
	if entries, ok := args.Get(0).([]annotation.AuditEntry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

// RoundRepository is a mock for round.RoundRepository.
type RoundRepository struct {
	mock.Mock
}

func (m *RoundRepository) Insert(ctx context.Context, r *round.Round) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *RoundRepository) Get(ctx context.Context, id string) (*round.Round, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*round.Round); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoundRepository) List(ctx context.Context, projectID string) ([]round.Round, error) {
	args := m.Called(ctx, projectID)
	if rounds, ok := args.Get(0).([]round.Round); ok {
		return rounds, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoundRepository) NextNumber(ctx context.Context, projectID string) (int, error) {
	args := m.Called(ctx, projectID)
	return args.Int(0), args.Error(1)
}

func (m *RoundRepository) LatestNumber(ctx context.Context, projectID string) (int, error) {
	args := m.Called(ctx, projectID)
	return args.Int(0), args.Error(1)
}

func (m *RoundRepository) SetStatus(ctx context.Context, id string, from, to round.Status, completedAt *time.Time) error {
	args := m.Called(ctx, id, from, to, completedAt)
	return args.Error(0)
}

func (m *RoundRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// TaskRepository is a mock for round.TaskRepository and task.TaskRepository.
type TaskRepository struct {
	mock.Mock
}

func (m *TaskRepository) Insert(ctx context.Context, t *round.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *TaskRepository) Get(ctx context.Context, id string) (*round.Task, error) {
	args := m.Called(ctx, id)
	if t, ok := args.Get(0).(*round.Task); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) ListForRater(ctx context.Context, raterID string, opts round.TaskListOptions) ([]round.Task, error) {
	args := m.Called(ctx, raterID, opts)
	if tasks, ok := args.Get(0).([]round.Task); ok {
		return tasks, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) UpdateStatus(ctx context.Context, id string, from []round.TaskStatus, to round.TaskStatus, submittedAt *time.Time) error {
	args := m.Called(ctx, id, from, to, submittedAt)
	return args.Error(0)
}

func (m *TaskRepository) Reassign(ctx context.Context, id, raterID string) error {
	args := m.Called(ctx, id, raterID)
	return args.Error(0)
}

func (m *TaskRepository) DeleteByRound(ctx context.Context, roundID string) error {
	args := m.Called(ctx, roundID)
	return args.Error(0)
}

func (m *TaskRepository) UnitProgress(ctx context.Context, roundID string) ([]round.UnitProgress, error) {
	args := m.Called(ctx, roundID)
	if progress, ok := args.Get(0).([]round.UnitProgress); ok {
		return progress, args.Error(1)
	}
	return nil, args.Error(1)
}

// ScoreCache is a mock for scorecache.Cache.
type ScoreCache struct {
	mock.Mock
}

func (m *ScoreCache) Get(ctx context.Context, key scorecache.Key) (*scorecache.Entry, error) {
	args := m.Called(ctx, key)
	if entry, ok := args.Get(0).(*scorecache.Entry); ok {
		return entry, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ScoreCache) Put(ctx context.Context, entry *scorecache.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ScoreCache) Invalidate(ctx context.Context, projectID, unitID string, round int) error {
	args := m.Called(ctx, projectID, unitID, round)
	return args.Error(0)
}
