package annotation

import "errors"

var (
	// ErrInvalidInput is returned when required identifiers or field
	// values fail validation before any read.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoPriorRecord is returned when a version append targets a
	// (unit, rater) pair with no initial record to extend.
	ErrNoPriorRecord = errors.New("no prior record for unit and rater")
)
