// Package scorecache memoizes agreement scores keyed by project, unit,
// round, and dimension. The cache is never the source of truth: every
// entry is reconstructible from the annotation store via the agreement
// engine.
package scorecache

import (
	"context"
	"time"

	"github.com/annolab/concord/internal/domain/schema"
)

// GlobalUnit is the unit key of a project-wide (global) score entry.
const GlobalUnit = ""

// Key identifies one cached score. UnitID is GlobalUnit for the
// project-wide coefficient of a dimension.
type Key struct {
	ProjectID string           `json:"project_id"`
	UnitID    string           `json:"unit_id"`
	Round     int              `json:"round"`
	Dimension schema.Dimension `json:"dimension"`
}

// Entry is one memoized score.
type Entry struct {
	Key
	Score      float64   `json:"score"`
	RaterCount int       `json:"rater_count"`
	ComputedAt time.Time `json:"computed_at"`
}

// Cache is an explicit injected dependency, never ambient state. Get
// returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	// Invalidate deletes every entry for (project, unit, round) across
	// all dimensions.
	Invalidate(ctx context.Context, projectID, unitID string, round int) error
}
