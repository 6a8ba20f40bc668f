// Package mnemoerr defines the error taxonomy shared by every mnemo
// component: storage backends, indexes, the embedding provider, and the
// query engine all return errors built from this package so callers at
// the wire layer can map them to a transport-appropriate response with a
// single switch.
package mnemoerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way spec §7 requires.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindValidation       Kind = "validation"
	KindPermissionDenied Kind = "permission_denied"
	KindStorage          Kind = "storage"
	KindIndex            Kind = "index"
	KindEmbedding        Kind = "embedding"
	KindInternal         Kind = "internal"
)

// Error is the concrete error type returned by mnemo components. It
// carries a Kind for transport-layer mapping, a human-readable message,
// and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind, wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons where no extra context is needed.
var (
	ErrNotFound         = New(KindNotFound, "not found")
	ErrValidation       = New(KindValidation, "validation failed")
	ErrPermissionDenied = New(KindPermissionDenied, "permission denied")
	ErrStorage          = New(KindStorage, "storage failure")
	ErrIndex            = New(KindIndex, "index failure")
	ErrEmbedding        = New(KindEmbedding, "embedding failure")
	ErrInternal         = New(KindInternal, "internal error")
)

// Is implements errors.Is comparison by Kind, so errors.Is(err,
// mnemoerr.ErrNotFound) matches any *Error of KindNotFound regardless of
// message or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NotFound is a convenience constructor.
func NotFound(format string, args ...any) error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Validation is a convenience constructor.
func Validation(format string, args ...any) error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// PermissionDenied is a convenience constructor.
func PermissionDenied(format string, args ...any) error {
	return New(KindPermissionDenied, fmt.Sprintf(format, args...))
}

// Storage wraps a backend failure.
func Storage(message string, cause error) error {
	return Wrap(KindStorage, message, cause)
}

// Index wraps a vector/full-text index failure.
func Index(message string, cause error) error {
	return Wrap(KindIndex, message, cause)
}

// Embedding wraps an embedding-provider failure.
func Embedding(message string, cause error) error {
	return Wrap(KindEmbedding, message, cause)
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) error {
	return Wrap(KindInternal, message, cause)
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// errors not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
