package scorecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/annolab/concord/internal/domain/schema"
)

func entry(unitID string, round int, dim schema.Dimension, score float64) *Entry {
	return &Entry{
		Key:        Key{ProjectID: "p1", UnitID: unitID, Round: round, Dimension: dim},
		Score:      score,
		RaterCount: 3,
		ComputedAt: time.Now().UTC(),
	}
}

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory()

	got, err := cache.Get(ctx, Key{ProjectID: "p1", UnitID: "u1", Round: 1, Dimension: schema.PromiseStatus})
	require.NoError(t, err)
	require.Nil(t, got, "miss must return nil without error")

	e := entry("u1", 1, schema.PromiseStatus, 0.8)
	require.NoError(t, cache.Put(ctx, e))

	got, err = cache.Get(ctx, e.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.InDelta(t, 0.8, got.Score, 1e-9)

	// Returned entry is a copy, mutating it must not affect the cache
	got.Score = 0.0
	again, err := cache.Get(ctx, e.Key)
	require.NoError(t, err)
	require.InDelta(t, 0.8, again.Score, 1e-9)
}

func TestMemoryPutOverwrites(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory()

	require.NoError(t, cache.Put(ctx, entry("u1", 1, schema.PromiseStatus, 0.5)))
	require.NoError(t, cache.Put(ctx, entry("u1", 1, schema.PromiseStatus, -0.5)))
	require.Equal(t, 1, cache.Len())

	got, err := cache.Get(ctx, Key{ProjectID: "p1", UnitID: "u1", Round: 1, Dimension: schema.PromiseStatus})
	require.NoError(t, err)
	require.InDelta(t, -0.5, got.Score, 1e-9)
}

func TestMemoryInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory()

	require.NoError(t, cache.Put(ctx, entry("u1", 1, schema.PromiseStatus, 0.5)))
	require.NoError(t, cache.Put(ctx, entry("u1", 1, schema.VerificationTimeline, 0.7)))
	require.NoError(t, cache.Put(ctx, entry("u1", 2, schema.PromiseStatus, 0.9)))
	require.NoError(t, cache.Put(ctx, entry("u2", 1, schema.PromiseStatus, 1.0)))
	require.NoError(t, cache.Put(ctx, entry(GlobalUnit, 1, schema.PromiseStatus, 0.6)))

	require.NoError(t, cache.Invalidate(ctx, "p1", "u1", 1))
	require.Equal(t, 3, cache.Len())

	got, err := cache.Get(ctx, Key{ProjectID: "p1", UnitID: "u1", Round: 1, Dimension: schema.PromiseStatus})
	require.NoError(t, err)
	require.Nil(t, got)

	// Other rounds, units, and the global entry survive
	for _, key := range []Key{
		{ProjectID: "p1", UnitID: "u1", Round: 2, Dimension: schema.PromiseStatus},
		{ProjectID: "p1", UnitID: "u2", Round: 1, Dimension: schema.PromiseStatus},
		{ProjectID: "p1", UnitID: GlobalUnit, Round: 1, Dimension: schema.PromiseStatus},
	} {
		got, err := cache.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, got)
	}
}
