package domain

import "errors"

var (
	// ErrValidation marks errors caused by invalid caller input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks lookups for batches that do not exist or belong to another account.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks operations that are illegal in the batch's current state.
	ErrConflict = errors.New("conflict")
)
