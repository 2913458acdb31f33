package task_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/annolab/concord/internal/domain/annotation"
	"github.com/annolab/concord/internal/domain/round"
	"github.com/annolab/concord/internal/domain/schema"
	"github.com/annolab/concord/internal/domain/task"
	"github.com/annolab/concord/internal/repository"
	"github.com/annolab/concord/internal/repository/mocks"
	"github.com/annolab/concord/internal/scorecache"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingTask() *round.Task {
	return &round.Task{
		ID:         "t1",
		RoundID:    "r1",
		UnitID:     "u1",
		RaterID:    "alice",
		Group:      schema.GroupPromise,
		Status:     round.TaskPending,
		AssignedAt: time.Now().UTC(),
	}
}

func activeRound() *round.Round {
	return &round.Round{
		ID:        "r1",
		ProjectID: "p1",
		Number:    2,
		Group:     schema.GroupPromise,
		Threshold: 0.6,
		Status:    round.StatusActive,
	}
}

func TestTaskService_Submit(t *testing.T) {
	ctx := context.Background()

	tasks := &mocks.TaskRepository{}
	rounds := &mocks.RoundRepository{}
	records := &mocks.RecordRepository{}
	audit := &mocks.AuditRepository{}
	cache := scorecache.NewMemory()

	// Seed cached scores that the submission must invalidate
	for _, unitID := range []string{"u1", scorecache.GlobalUnit} {
		require.NoError(t, cache.Put(ctx, &scorecache.Entry{
			Key:   scorecache.Key{ProjectID: "p1", UnitID: unitID, Round: 2, Dimension: schema.PromiseStatus},
			Score: 0.5,
		}))
	}
	untouched := scorecache.Key{ProjectID: "p1", UnitID: "u9", Round: 2, Dimension: schema.PromiseStatus}
	require.NoError(t, cache.Put(ctx, &scorecache.Entry{Key: untouched, Score: 0.9}))

	tasks.On("Get", ctx, "t1").Return(pendingTask(), nil)
	rounds.On("Get", ctx, "r1").Return(activeRound(), nil)
	rounds.On("LatestNumber", ctx, "p1").Return(2, nil)
	records.On("Latest", ctx, "u1", "alice").Return(&annotation.Record{
		ID:        "rec1",
		UnitID:    "u1",
		RaterID:   "alice",
		Version:   1,
		Fields:    schema.Fields{schema.PromiseStatus: "yes"},
		Status:    annotation.StatusCompleted,
		SaveCount: 1,
	}, nil)
	audit.On("Append", ctx, mock.MatchedBy(func(e *annotation.AuditEntry) bool {
		return e.Field == schema.PromiseStatus && e.OldValue == "yes" && e.NewValue == "no" && e.Round == 2
	})).Return(nil)
	records.On("Insert", ctx, mock.MatchedBy(func(rec *annotation.Record) bool {
		return rec.Version == 2 && rec.Round == 2 && rec.Fields[schema.PromiseStatus] == "no"
	})).Return(nil)
	tasks.On("UpdateStatus", ctx, "t1",
		[]round.TaskStatus{round.TaskPending, round.TaskInProgress},
		round.TaskSubmitted, mock.AnythingOfType("*time.Time")).Return(nil)

	svc := task.NewService(mocks.TxRunner{}, tasks, rounds, records, audit, cache, nil, testLogger())
	result, err := svc.Submit(ctx, task.SubmitRequest{
		TaskID:  "t1",
		RaterID: "alice",
		Fields:  schema.Fields{schema.PromiseStatus: "no"},
		Comment: "misread the clause",
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Version)
	require.Equal(t, 1, result.ChangedFields)

	// Unit and global entries for the round are gone, others remain
	require.Equal(t, 1, cache.Len())
	entry, err := cache.Get(ctx, untouched)
	require.NoError(t, err)
	require.NotNil(t, entry)

	tasks.AssertExpectations(t)
	records.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestTaskService_Submit_InvalidatesLaterRounds(t *testing.T) {
	ctx := context.Background()

	tasks := &mocks.TaskRepository{}
	rounds := &mocks.RoundRepository{}
	records := &mocks.RecordRepository{}
	audit := &mocks.AuditRepository{}
	cache := scorecache.NewMemory()

	// The task belongs to round 1, but rounds 2 and 3 were opened since
	// and carry cached scores derived from the same answers.
	earlier := activeRound()
	earlier.Number = 1

	for _, unitID := range []string{"u1", scorecache.GlobalUnit} {
		for n := 1; n <= 3; n++ {
			require.NoError(t, cache.Put(ctx, &scorecache.Entry{
				Key:   scorecache.Key{ProjectID: "p1", UnitID: unitID, Round: n, Dimension: schema.PromiseStatus},
				Score: 0.5,
			}))
		}
	}
	untouched := scorecache.Key{ProjectID: "p1", UnitID: "u9", Round: 3, Dimension: schema.PromiseStatus}
	require.NoError(t, cache.Put(ctx, &scorecache.Entry{Key: untouched, Score: 0.9}))

	tasks.On("Get", ctx, "t1").Return(pendingTask(), nil)
	rounds.On("Get", ctx, "r1").Return(earlier, nil)
	rounds.On("LatestNumber", ctx, "p1").Return(3, nil)
	records.On("Latest", ctx, "u1", "alice").Return(&annotation.Record{
		ID:        "rec1",
		UnitID:    "u1",
		RaterID:   "alice",
		Version:   1,
		Fields:    schema.Fields{schema.PromiseStatus: "yes"},
		Status:    annotation.StatusCompleted,
		SaveCount: 1,
	}, nil)
	audit.On("Append", ctx, mock.Anything).Return(nil)
	records.On("Insert", ctx, mock.Anything).Return(nil)
	tasks.On("UpdateStatus", ctx, "t1",
		[]round.TaskStatus{round.TaskPending, round.TaskInProgress},
		round.TaskSubmitted, mock.AnythingOfType("*time.Time")).Return(nil)

	svc := task.NewService(mocks.TxRunner{}, tasks, rounds, records, audit, cache, nil, testLogger())
	_, err := svc.Submit(ctx, task.SubmitRequest{
		TaskID:  "t1",
		RaterID: "alice",
		Fields:  schema.Fields{schema.PromiseStatus: "no"},
	})
	require.NoError(t, err)

	// Every round up to the latest is cleared for the unit and for the
	// global entries; unrelated units keep their entries.
	require.Equal(t, 1, cache.Len())
	entry, err := cache.Get(ctx, untouched)
	require.NoError(t, err)
	require.NotNil(t, entry)
}

func TestTaskService_Submit_NotOwner(t *testing.T) {
	ctx := context.Background()

	tasks := &mocks.TaskRepository{}
	tasks.On("Get", ctx, "t1").Return(pendingTask(), nil)

	svc := task.NewService(mocks.TxRunner{}, tasks, &mocks.RoundRepository{}, &mocks.RecordRepository{},
		&mocks.AuditRepository{}, scorecache.NewMemory(), nil, testLogger())
	_, err := svc.Submit(ctx, task.SubmitRequest{
		TaskID:  "t1",
		RaterID: "mallory",
		Fields:  schema.Fields{schema.PromiseStatus: "no"},
	})
	require.ErrorIs(t, err, task.ErrNotOwner)
}

func TestTaskService_Submit_AlreadyResolved(t *testing.T) {
	ctx := context.Background()

	resolved := pendingTask()
	resolved.Status = round.TaskSubmitted

	tasks := &mocks.TaskRepository{}
	tasks.On("Get", ctx, "t1").Return(resolved, nil)

	svc := task.NewService(mocks.TxRunner{}, tasks, &mocks.RoundRepository{}, &mocks.RecordRepository{},
		&mocks.AuditRepository{}, scorecache.NewMemory(), nil, testLogger())
	_, err := svc.Submit(ctx, task.SubmitRequest{
		TaskID:  "t1",
		RaterID: "alice",
		Fields:  schema.Fields{schema.PromiseStatus: "no"},
	})
	require.ErrorIs(t, err, task.ErrAlreadyResolved)
}

func TestTaskService_Submit_FieldsOutsideGroup(t *testing.T) {
	ctx := context.Background()

	tasks := &mocks.TaskRepository{}
	tasks.On("Get", ctx, "t1").Return(pendingTask(), nil)

	svc := task.NewService(mocks.TxRunner{}, tasks, &mocks.RoundRepository{}, &mocks.RecordRepository{},
		&mocks.AuditRepository{}, scorecache.NewMemory(), nil, testLogger())
	_, err := svc.Submit(ctx, task.SubmitRequest{
		TaskID:  "t1",
		RaterID: "alice",
		Fields:  schema.Fields{schema.EvidenceStatus: "yes"},
	})
	require.ErrorIs(t, err, task.ErrInvalidInput)
}

func TestTaskService_Submit_TaskNotFound(t *testing.T) {
	ctx := context.Background()

	tasks := &mocks.TaskRepository{}
	tasks.On("Get", ctx, "missing").Return(nil, repository.ErrNotFound)

	svc := task.NewService(mocks.TxRunner{}, tasks, &mocks.RoundRepository{}, &mocks.RecordRepository{},
		&mocks.AuditRepository{}, scorecache.NewMemory(), nil, testLogger())
	_, err := svc.Submit(ctx, task.SubmitRequest{TaskID: "missing", RaterID: "alice"})
	require.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestTaskService_Start(t *testing.T) {
	ctx := context.Background()

	tasks := &mocks.TaskRepository{}
	tasks.On("Get", ctx, "t1").Return(pendingTask(), nil)
	tasks.On("UpdateStatus", ctx, "t1",
		[]round.TaskStatus{round.TaskPending}, round.TaskInProgress, (*time.Time)(nil)).Return(nil)

	svc := task.NewService(mocks.TxRunner{}, tasks, &mocks.RoundRepository{}, &mocks.RecordRepository{},
		&mocks.AuditRepository{}, scorecache.NewMemory(), nil, testLogger())
	require.NoError(t, svc.Start(ctx, "t1", "alice"))
}

func TestTaskService_Start_AlreadyInProgress(t *testing.T) {
	ctx := context.Background()

	started := pendingTask()
	started.Status = round.TaskInProgress

	tasks := &mocks.TaskRepository{}
	tasks.On("Get", ctx, "t1").Return(started, nil)

	svc := task.NewService(mocks.TxRunner{}, tasks, &mocks.RoundRepository{}, &mocks.RecordRepository{},
		&mocks.AuditRepository{}, scorecache.NewMemory(), nil, testLogger())
	// Idempotent, no transition attempted
	require.NoError(t, svc.Start(ctx, "t1", "alice"))
	tasks.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskService_Skip(t *testing.T) {
	ctx := context.Background()

	tasks := &mocks.TaskRepository{}
	tasks.On("Get", ctx, "t1").Return(pendingTask(), nil)
	tasks.On("UpdateStatus", ctx, "t1",
		[]round.TaskStatus{round.TaskPending, round.TaskInProgress},
		round.TaskSkipped, (*time.Time)(nil)).Return(nil)

	records := &mocks.RecordRepository{}
	svc := task.NewService(mocks.TxRunner{}, tasks, &mocks.RoundRepository{}, records,
		&mocks.AuditRepository{}, scorecache.NewMemory(), nil, testLogger())
	require.NoError(t, svc.Skip(ctx, "t1", "alice"))

	// No annotation version is written on skip
	records.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestTaskService_Reassign(t *testing.T) {
	ctx := context.Background()

	tasks := &mocks.TaskRepository{}
	tasks.On("Get", ctx, "t1").Return(pendingTask(), nil)
	tasks.On("Reassign", ctx, "t1", "bob").Return(nil)
	tasks.On("Reassign", ctx, "t1", "carol").Return(repository.ErrConflict)

	svc := task.NewService(mocks.TxRunner{}, tasks, &mocks.RoundRepository{}, &mocks.RecordRepository{},
		&mocks.AuditRepository{}, scorecache.NewMemory(), nil, testLogger())
	require.NoError(t, svc.Reassign(ctx, "t1", "bob"))
	require.ErrorIs(t, svc.Reassign(ctx, "t1", "carol"), task.ErrConflict)
}

func TestTaskService_Reassign_NotPending(t *testing.T) {
	ctx := context.Background()

	started := pendingTask()
	started.Status = round.TaskInProgress

	tasks := &mocks.TaskRepository{}
	tasks.On("Get", ctx, "t1").Return(started, nil)

	svc := task.NewService(mocks.TxRunner{}, tasks, &mocks.RoundRepository{}, &mocks.RecordRepository{},
		&mocks.AuditRepository{}, scorecache.NewMemory(), nil, testLogger())
	require.ErrorIs(t, svc.Reassign(ctx, "t1", "bob"), task.ErrAlreadyResolved)
}

func TestTaskService_ListForRater(t *testing.T) {
	ctx := context.Background()

	tasks := &mocks.TaskRepository{}
	records := &mocks.RecordRepository{}

	tasks.On("ListForRater", ctx, "alice", round.TaskListOptions{ProjectID: "p1"}).Return([]round.Task{
		{ID: "t1", RoundID: "r1", UnitID: "u1", RaterID: "alice"},
		{ID: "t2", RoundID: "r1", UnitID: "u2", RaterID: "alice"},
	}, nil)
	records.On("Latest", ctx, "u1", "alice").Return(&annotation.Record{
		ID: "rec1", UnitID: "u1", RaterID: "alice", Version: 3,
	}, nil)
	records.On("Latest", ctx, "u2", "alice").Return(nil, repository.ErrNotFound)

	svc := task.NewService(mocks.TxRunner{}, tasks, &mocks.RoundRepository{}, records,
		&mocks.AuditRepository{}, scorecache.NewMemory(), nil, testLogger())
	views, err := svc.ListForRater(ctx, "alice", round.TaskListOptions{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.NotNil(t, views[0].CurrentAnswer)
	require.Equal(t, 3, views[0].CurrentAnswer.Version)
	require.Nil(t, views[1].CurrentAnswer)

	_, err = svc.ListForRater(ctx, "", round.TaskListOptions{})
	require.ErrorIs(t, err, task.ErrInvalidInput)
}
