package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyQuery indicates the user submitted a blank question.
	// It is recoverable and should be reported as a message, not a crash.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrUnsupportedFormat indicates no page extractor handles a file type.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrTransient marks collaborator failures that may succeed on retry:
	// network errors, rate limiting and server-side 5xx responses.
	ErrTransient = errors.New("transient failure")

	// ErrStreamClosed is returned when reading from an abandoned stream.
	ErrStreamClosed = errors.New("stream closed")

	// Taxonomy sentinels. The typed errors below match these with errors.Is.

	// ErrConfiguration indicates invalid chunking, search or provider parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbedding indicates the embedding collaborator failed.
	ErrEmbedding = errors.New("embedding error")

	// ErrStoreUnavailable indicates the retrieval store could not be reached
	// or returned a protocol error.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrGeneration indicates the language model collaborator failed.
	ErrGeneration = errors.New("generation error")
)

// ConfigurationError reports an invalid configuration value.
// Values are never clamped; the error is surfaced immediately.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError builds a ConfigurationError with a formatted reason.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// EmbeddingError wraps a failure of the embedding collaborator.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Is matches ErrEmbedding.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbedding
}

// StoreUnavailableError wraps a connectivity or protocol failure of a
// retrieval store backend.
type StoreUnavailableError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// Is matches ErrStoreUnavailable.
func (e *StoreUnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// NewStoreError wraps err as a StoreUnavailableError unless it already is one.
func NewStoreError(backend, op string, err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return &StoreUnavailableError{Backend: backend, Op: op, Err: err}
}

// GenerationError wraps a failure of the language model collaborator.
// Partial holds any answer text emitted before a streaming failure.
type GenerationError struct {
	Op      string
	Err     error
	Partial string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is matches ErrGeneration.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}

// IsTransient reports whether err was marked as retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsServiceFailure reports whether err came from a collaborator rather than
// from user input. Callers use it to tell "no results" apart from an outage.
func IsServiceFailure(err error) bool {
	return errors.Is(err, ErrEmbedding) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrGeneration)
}
