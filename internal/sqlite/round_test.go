package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/annolab/concord/internal/domain/round"
	"github.com/annolab/concord/internal/domain/schema"
	"github.com/annolab/concord/internal/repository"
)

func TestRoundInsertAndGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRoundRepository(db)

	rnd := insertTestRound(t, db, "p1", 1)

	got, err := repo.Get(ctx, rnd.ID)
	require.NoError(t, err)
	require.Equal(t, rnd.ID, got.ID)
	require.Equal(t, "p1", got.ProjectID)
	require.Equal(t, 1, got.Number)
	require.Equal(t, schema.GroupPromise, got.Group)
	require.Equal(t, round.StatusActive, got.Status)
	require.Nil(t, got.CompletedAt)
}

func TestRoundGetNotFound(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRoundRepository(db)

	_, err := repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRoundInsertConflict(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRoundRepository(db)

	insertTestRound(t, db, "p1", 1)

	dup := &round.Round{
		ID:        uuid.NewString(),
		ProjectID: "p1",
		Number:    1,
		Group:     schema.GroupPromise,
		Threshold: 0.5,
		Status:    round.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	err := repo.Insert(ctx, dup)
	require.ErrorIs(t, err, repository.ErrConflict)

	// Same number for the other group is allowed
	dup.ID = uuid.NewString()
	dup.Group = schema.GroupEvidence
	require.NoError(t, repo.Insert(ctx, dup))
}

func TestRoundNumbersAreSequential(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRoundRepository(db)

	next, err := repo.NextNumber(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, next)

	insertTestRound(t, db, "p1", 1)
	insertTestRound(t, db, "p1", 2)
	insertTestRound(t, db, "p2", 1)

	next, err = repo.NextNumber(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 3, next)

	latest, err := repo.LatestNumber(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 2, latest)

	latest, err = repo.LatestNumber(ctx, "empty")
	require.NoError(t, err)
	require.Equal(t, 0, latest)
}

func TestRoundList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRoundRepository(db)

	insertTestRound(t, db, "p1", 1)
	insertTestRound(t, db, "p1", 2)
	insertTestRound(t, db, "p2", 1)

	rounds, err := repo.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	// Newest first
	require.Equal(t, 2, rounds[0].Number)
	require.Equal(t, 1, rounds[1].Number)
}

func TestRoundSetStatus(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRoundRepository(db)

	rnd := insertTestRound(t, db, "p1", 1)

	now := time.Now().UTC()
	err := repo.SetStatus(ctx, rnd.ID, round.StatusActive, round.StatusCompleted, &now)
	require.NoError(t, err)

	got, err := repo.Get(ctx, rnd.ID)
	require.NoError(t, err)
	require.Equal(t, round.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	// Already terminal
	err = repo.SetStatus(ctx, rnd.ID, round.StatusActive, round.StatusCancelled, &now)
	require.ErrorIs(t, err, repository.ErrConflict)

	err = repo.SetStatus(ctx, "missing", round.StatusActive, round.StatusCompleted, &now)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRoundDelete(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRoundRepository(db)

	rnd := insertTestRound(t, db, "p1", 1)

	require.NoError(t, repo.Delete(ctx, rnd.ID))
	_, err := repo.Get(ctx, rnd.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.ErrorIs(t, repo.Delete(ctx, rnd.ID), repository.ErrNotFound)
}
