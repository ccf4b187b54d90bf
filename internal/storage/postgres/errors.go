package postgres

import (
	"fmt"

	"market-sentiment-lab/internal/storage"
)

// classifyWriteError maps a driver error from an insert onto the storage
// error taxonomy: unique violations become ErrDuplicateKey, other integrity
// violations become ErrInvalidInput wrapped in FatalIntegrityError.
func classifyWriteError(op string, err error) error {
	switch {
	case isDuplicateKeyError(err):
		return storage.ErrDuplicateKey
	case isIntegrityError(err):
		return &storage.FatalIntegrityError{Op: op, Err: fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)}
	}
	return &storage.FatalIntegrityError{Op: op, Err: err}
}
