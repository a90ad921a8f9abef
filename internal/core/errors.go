package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies an error for the boundary layers.
type Kind string

const (
	KindValidation Kind = "validation"
	KindDuplicate  Kind = "duplicate"
	KindNotFound   Kind = "not_found"
	KindStorage    Kind = "storage"
)

// Error is the tagged error every layer below the HTTP/MCP boundary returns.
// Message is always safe to show to a caller; the wrapped cause is not.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// Validation reports malformed caller input.
func Validation(format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)})
}

// Duplicate reports that a value is already cataloged.
func Duplicate(format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: KindDuplicate, Message: fmt.Sprintf(format, args...)})
}

// NotFound reports that a requested record does not exist.
func NotFound(format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)})
}

// Storage wraps a backend failure. The cause is kept for operators only.
func Storage(cause error, message string) error {
	return errors.WithStack(&Error{
		Kind:      KindStorage,
		Message:   message,
		Retryable: true,
		cause:     cause,
	})
}

// KindOf extracts the kind of err. Untagged errors count as storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// MessageOf returns the caller-safe message carried by err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong"
}

// IsKind reports whether err is tagged with kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
