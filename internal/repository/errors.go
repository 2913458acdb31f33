// Package repository defines the persistence-layer error contract shared
// by all repositories and their consumers.
package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a uniqueness or state precondition
	// fails; the caller should retry the whole operation.
	ErrConflict = errors.New("conflict")

	// ErrForeignKeyViolation is returned when a foreign key constraint
	// fails.
	ErrForeignKeyViolation = errors.New("foreign key violation")
)
