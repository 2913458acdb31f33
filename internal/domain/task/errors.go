package task

import "errors"

var (
	// ErrInvalidInput is returned for missing identifiers or field
	// values outside the task's dimension group.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTaskNotFound is returned when the requested task does not
	// exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNotOwner is returned when a rater acts on a task assigned to
	// someone else.
	ErrNotOwner = errors.New("task belongs to another rater")

	// ErrAlreadyResolved is returned when a submitted or skipped task
	// is acted on again; a new round is required to change the answer.
	ErrAlreadyResolved = errors.New("task already resolved")

	// ErrConflict is returned when a reassignment would duplicate a
	// (round, unit, rater) assignment.
	ErrConflict = errors.New("assignment conflict")
)
