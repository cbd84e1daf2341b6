package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shelby-app/shelby/internal/validation"
)

// Sentinel errors returned by the services. The external layer maps them to
// status codes; the core never uses them for ordinary control flow.
var (
	// ErrNotFound means a referenced entity id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness or referential-guard violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidAmount means a posting amount was zero or malformed.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidCredentials means the username/password pair did not match.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError carries per-field violations for malformed input.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for field, code := range e.Violations {
		fields = append(fields, field+": "+code)
	}
	sort.Strings(fields)
	msg := "invalid input"
	for _, f := range fields {
		msg += "; " + f
	}
	return msg
}

// violationsToError returns nil when v is empty, a *ValidationError otherwise.
func violationsToError(v validation.Violations) error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}

// StorageError is a filesystem or embedded-store I/O failure, surfaced as-is
// rather than silently retried.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConsistencyError means an invariant that should be impossible to break was
// found broken, e.g. a document row whose backing file is gone. It is fatal
// for the operation, logged loudly at the detection site, and never repaired
// silently.
type ConsistencyError struct {
	Entity string
	Key    string
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation on %s %s: %s", e.Entity, e.Key, e.Detail)
}
