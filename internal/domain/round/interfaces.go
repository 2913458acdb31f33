package round

import (
	"context"
	"time"

	"github.com/annolab/concord/internal/domain/annotation"
)

// AnnotationRepository is the slice of the annotation store the
// orchestrator reads from.
type AnnotationRepository interface {
	LatestByProject(ctx context.Context, projectID string) ([]annotation.Record, error)
}

// RoundRepository manages round persistence.
type RoundRepository interface {
	Insert(ctx context.Context, r *Round) error
	Get(ctx context.Context, id string) (*Round, error)
	List(ctx context.Context, projectID string) ([]Round, error)
	// NextNumber allocates max(existing)+1 for a project, starting at 1.
	NextNumber(ctx context.Context, projectID string) (int, error)
	// LatestNumber returns the highest round number for a project, or 0.
	LatestNumber(ctx context.Context, projectID string) (int, error)
	SetStatus(ctx context.Context, id string, from, to Status, completedAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

// TaskRepository manages task persistence as seen by the orchestrator.
type TaskRepository interface {
	Insert(ctx context.Context, t *Task) error
	DeleteByRound(ctx context.Context, roundID string) error
	UnitProgress(ctx context.Context, roundID string) ([]UnitProgress, error)
}

// TxRunner runs a function inside a serializable transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
