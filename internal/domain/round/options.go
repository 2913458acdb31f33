package round

import "github.com/annolab/concord/internal/domain/schema"

// TaskListOptions enumerates the optional filters for task listings.
type TaskListOptions struct {
	ProjectID string
	RoundID   string
	Group     schema.GroupName
}
