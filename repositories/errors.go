package repositories

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or is out of the
	// caller's tenant scope
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert violates a uniqueness constraint
	ErrDuplicate = errors.New("duplicate record")
)
