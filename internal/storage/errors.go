package storage

import (
	"errors"
	"fmt"
)

// Storage errors for append-only stores.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a natural key that already exists. Append-only stores do not allow updates.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownTarget is returned when a watermark is requested for a
	// table/column pair that is not registered.
	ErrUnknownTarget = errors.New("unknown watermark target")

	// ErrLocked is returned when another integrator holds the run lock.
	ErrLocked = errors.New("integrator lock held by another process")
)

// FatalIntegrityError wraps a database failure that is not a natural-key
// conflict. The enclosing transaction has been rolled back.
type FatalIntegrityError struct {
	Op  string
	Err error
}

func (e *FatalIntegrityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalIntegrityError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a natural-key conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}
