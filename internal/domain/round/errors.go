package round

import "errors"

var (
	// ErrInvalidInput is returned for bad group names, thresholds
	// outside [0,1], or missing identifiers, before any read.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRoundNotFound is returned when the requested round does not
	// exist.
	ErrRoundNotFound = errors.New("round not found")

	// ErrConflict is returned when a round-number race loses to a
	// concurrent creation; callers should retry the whole operation.
	ErrConflict = errors.New("round number conflict")

	// ErrNotActive is returned when a terminal transition targets a
	// round that is already completed or cancelled.
	ErrNotActive = errors.New("round is not active")
)
