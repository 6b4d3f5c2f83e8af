package remote

import (
	"errors"
	"fmt"
	"time"

	"doc-sync-engine/internal/entity"

	"github.com/google/uuid"
)

// ErrorKind drives the save executor's failure handling: network errors
// are retried with backoff and backed up locally, conflicts are never
// auto-retried, validation errors are surfaced once, anything else is
// retried within the budget.
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindConflict   ErrorKind = "conflict"
	KindValidation ErrorKind = "validation"
	KindUnknown    ErrorKind = "unknown"
)

// NetworkError means the request never reached the store (no
// connectivity, DNS failure, timeout).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConflictError means the store rejected the write because a newer
// version exists. ServerDocument carries the store's current record when
// the backend can supply it.
type ConflictError struct {
	DocumentId      uuid.UUID
	ServerUpdatedAt time.Time
	ServerDocument  *entity.Document
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version mismatch for document %s (server updated at %s)", e.DocumentId, e.ServerUpdatedAt.Format(time.RFC3339))
}

// ValidationError means the payload was malformed. Title normalization
// happens before send, so in practice this should not occur.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: field %s %s", e.Field, e.Reason)
}

// Classify maps an error to its kind. Nil maps to the empty kind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var confErr *ConflictError
	if errors.As(err, &confErr) {
		return KindConflict
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindValidation
	}
	return KindUnknown
}
