package core

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrEmbeddingFailure aborts a retrieval: nothing can be ranked without
	// a query vector.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrSourceUnavailable marks an unexpected failure of one source.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceNotProvisioned marks a source that has nothing to search yet,
	// e.g. a schema that was never migrated or an owner with no index.
	ErrSourceNotProvisioned = errors.New("source not provisioned")

	// ErrMemoryWrite marks a failed memory write. Writes are never best-effort.
	ErrMemoryWrite = errors.New("memory write failure")

	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Error carries a kind from the list above together with the operation,
// the source that failed (if any) and the underlying cause.
type Error struct {
	Kind   error
	Op     string
	Source string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// EmbeddingFailure wraps an embedder error.
func EmbeddingFailure(err error) error {
	return &Error{Kind: ErrEmbeddingFailure, Op: "embed", Err: err}
}

// SourceUnavailable wraps an unexpected failure of the named source.
func SourceUnavailable(source string, err error) error {
	return &Error{Kind: ErrSourceUnavailable, Op: "search", Source: source, Err: err}
}

// NotProvisioned reports that source has no backing data or schema yet.
func NotProvisioned(source string, err error) error {
	return &Error{Kind: ErrSourceNotProvisioned, Op: "search", Source: source, Err: err}
}

// MemoryWriteFailure wraps a failed memory write.
func MemoryWriteFailure(op string, err error) error {
	return &Error{Kind: ErrMemoryWrite, Op: op, Err: err}
}

// InvalidInput reports a rejected argument.
func InvalidInput(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}

// IsNotProvisioned reports whether err is an expected first-run condition
// rather than an anomaly.
func IsNotProvisioned(err error) bool {
	return errors.Is(err, ErrSourceNotProvisioned)
}
