package task

import (
	"context"
	"time"

	"github.com/annolab/concord/internal/domain/round"
)

// TaskRepository manages task persistence for the lifecycle manager.
type TaskRepository interface {
	Get(ctx context.Context, id string) (*round.Task, error)
	ListForRater(ctx context.Context, raterID string, opts round.TaskListOptions) ([]round.Task, error)
	// UpdateStatus transitions a task from one of the given states,
	// returning repository.ErrConflict when the current state is not
	// among them.
	UpdateStatus(ctx context.Context, id string, from []round.TaskStatus, to round.TaskStatus, submittedAt *time.Time) error
	Reassign(ctx context.Context, id, raterID string) error
}

// RoundRepository is the slice of round persistence the lifecycle
// manager reads from.
type RoundRepository interface {
	Get(ctx context.Context, id string) (*round.Round, error)
	// LatestNumber returns the highest round number for a project, or 0.
	LatestNumber(ctx context.Context, projectID string) (int, error)
}

// TxRunner runs a function inside a serializable transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
