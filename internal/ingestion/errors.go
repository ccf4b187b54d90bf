package ingestion

import (
	"errors"
	"fmt"
)

// ErrMalformed is matched by every MalformedRecordError.
var ErrMalformed = errors.New("malformed record")

// TransientSourceError wraps a failed fetch from an upstream source.
// Nothing has been written when it is returned.
type TransientSourceError struct {
	Source string
	Err    error
}

func (e *TransientSourceError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *TransientSourceError) Unwrap() error { return e.Err }

// MalformedRecordError reports a source row that cannot be coerced into a
// typed record. The row is skipped and counted.
type MalformedRecordError struct {
	Source string
	Key    string
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s record: %s %s", e.Source, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s record %s: %s %s", e.Source, e.Key, e.Field, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformed }

func malformed(source, key, field, reason string) error {
	return &MalformedRecordError{Source: source, Key: key, Field: field, Reason: reason}
}
