package sqlite

import (
	"strings"

	"github.com/annolab/concord/internal/repository"
)

// constraintError translates a SQLite constraint failure into the
// matching repository sentinel, or returns nil when the error is not a
// constraint violation. modernc.org/sqlite surfaces constraint failures
// only through the driver error text, so this matches on the messages
// SQLite itself emits.
func constraintError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return repository.ErrConflict
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return repository.ErrForeignKeyViolation
	}
	return nil
}
