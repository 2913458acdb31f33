package round

import (
	"time"

	"github.com/annolab/concord/internal/domain/schema"
)

// Status is the lifecycle state of a reannotation round. Completed and
// cancelled are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// TaskStatus is the lifecycle state of one task. Submitted and skipped
// are terminal.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskSubmitted  TaskStatus = "submitted"
	TaskSkipped    TaskStatus = "skipped"
)

// Round is one reannotation pass over flagged units for one dimension
// group. (ProjectID, Number, Group) is unique.
type Round struct {
	ID          string           `json:"id"`
	ProjectID   string           `json:"project_id"`
	Number      int              `json:"number"`
	Group       schema.GroupName `json:"dimension_group"`
	Threshold   float64          `json:"threshold"`
	Status      Status           `json:"status"`
	CreatedBy   string           `json:"created_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// FlaggedDimension records a dimension whose local score fell below the
// round threshold at task creation time.
type FlaggedDimension struct {
	Dimension schema.Dimension `json:"dimension"`
	Score     float64          `json:"score"`
}

// Task assigns one flagged unit to one rater within one round.
// (RoundID, UnitID, RaterID) is unique: a rater gets at most one task
// per unit per round.
type Task struct {
	ID          string             `json:"id"`
	RoundID     string             `json:"round_id"`
	UnitID      string             `json:"unit_id"`
	RaterID     string             `json:"rater_id"`
	Group       schema.GroupName   `json:"dimension_group"`
	Flagged     []FlaggedDimension `json:"flagged"`
	Status      TaskStatus         `json:"status"`
	AssignedAt  time.Time          `json:"assigned_at"`
	SubmittedAt *time.Time         `json:"submitted_at,omitempty"`
}

// Terminal reports whether the task has reached a terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskSubmitted || s == TaskSkipped
}
