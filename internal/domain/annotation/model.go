package annotation

import (
	"time"

	"github.com/annolab/concord/internal/domain/schema"
)

// Status is the completion status of a record.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Record is one rater's answer set for one unit at one version. Records
// are append-only: a new version is inserted on every submission and no
// record is ever mutated or deleted.
type Record struct {
	ID        string        `json:"id"`
	UnitID    string        `json:"unit_id"`
	RaterID   string        `json:"rater_id"`
	Version   int           `json:"version"`
	Round     int           `json:"round"`
	Fields    schema.Fields `json:"fields"`
	Status    Status        `json:"status"`
	Skipped   bool          `json:"skipped"`
	SaveCount int           `json:"save_count"`
	Persist   bool          `json:"persist"`
	Comment   string        `json:"comment,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// AuditEntry records one field-level change between two versions. An
// entry exists only where the old and new values actually differ.
type AuditEntry struct {
	ID        int64            `json:"id"`
	UnitID    string           `json:"unit_id"`
	RaterID   string           `json:"rater_id"`
	Field     schema.Dimension `json:"field"`
	OldValue  string           `json:"old_value"`
	NewValue  string           `json:"new_value"`
	Round     int              `json:"round"`
	Reason    string           `json:"reason,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
