package types

import (
	"errors"
	"fmt"
)

// ErrCancelled signals that the user dismissed a prompt or declined a
// confirmation. It is not a failure; callers suppress error UI for it.
var ErrCancelled = errors.New("operation cancelled by user")

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("state store is detached")
	ErrAlreadyAttached = errors.New("state store is already attached")
)

// ErrUnsupported is returned by providers for operations their kind does
// not offer.
var ErrUnsupported = errors.New("operation not supported by provider")

// ValidationError reports malformed user input. Message is the text shown
// when re-prompting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConnectionError wraps a failure to reach a backing store. Hint carries
// extra guidance (for example for emulator accounts) and is prepended to
// the underlying message.
type ConnectionError struct {
	Account string
	Hint    string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return e.Hint
	}
	return e.Hint + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ConflictError reports an optimistic-concurrency failure: a single-row
// update or delete affected Count rows instead of exactly one.
type ConflictError struct {
	Op    string
	ID    any
	Count int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("failed to %s document with _id '%v': %d documents affected, expected 1", e.Op, e.ID, e.Count)
}

// ConfigurationError reports an unrecognized provider kind.
type ConfigurationError struct {
	Kind ProviderKind
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unexpected provider kind %q", string(e.Kind))
}

// IsCancelled reports whether err is, or wraps, ErrCancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
