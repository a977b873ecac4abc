/*
errors.go - Centralized error types for the completion subsystem

PURPOSE:
  All error types in one place. Every file, provider and validation
  failure is converted into one of these at the component boundary so
  nothing escapes as an unclassified fault.

ERROR CATEGORIES:
  1. Validation  - missing/invalid required fields (user-correctable)
  2. NotFound    - delete target missing (no day-log or no matching id)
  3. Persistence - day-log or snapshot unreadable/unwritable
  4. Provider    - upstream data source unavailable or query failed

USAGE:
  if errors.Is(err, completion.ErrNotFound) {
      // 404
  }

  var verr *completion.ValidationError
  if errors.As(err, &verr) {
      fmt.Println(verr.Fields)
  }

SEE ALSO:
  - api/handlers.go: maps these errors to HTTP status codes
*/
package completion

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when required input is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a delete target does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPersistence is returned when a day-log or snapshot cannot be read or written.
	ErrPersistence = errors.New("persistence failure")

	// ErrProvider is returned when the upstream data source fails.
	ErrProvider = errors.New("data provider failure")

	// ErrInvalidKey is returned when a client/product pair cannot be keyed.
	ErrInvalidKey = errors.New("invalid completion key")

	// ErrNoSnapshot is returned by a SnapshotStore when nothing was persisted yet.
	ErrNoSnapshot = errors.New("no tracking snapshot")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Message
	}
	msg := "missing required fields: " + strings.Join(e.Fields, ", ")
	if e.Message != "" {
		msg = e.Message + ": " + msg
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError identifies a record or day-log that does not exist.
type NotFoundError struct {
	Date Day
	ID   string // empty when the whole day-log is missing
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("no completion records for %s", e.Date)
	}
	return fmt.Sprintf("completion record %s not found on %s", e.ID, e.Date)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// PersistenceError wraps a file-level failure.
type PersistenceError struct {
	Op   string // "read", "write", "list", ...
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// ProviderError wraps a data source failure.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrProvider, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidKey)
}

// IsNotFound returns true if the error indicates a missing record or day-log.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
