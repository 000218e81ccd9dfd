package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the app layer wraps exactly one of these.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrInternal   = errors.New("internal error")
)

var (
	// ErrSessionNotFound is returned when no session exists for a participant/quiz pair.
	ErrSessionNotFound = fmt.Errorf("quiz session %w", ErrNotFound)
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrSubmissionNotFound is returned when a participant has not submitted yet.
	ErrSubmissionNotFound = fmt.Errorf("submission %w", ErrNotFound)
	// ErrAlreadyCompleted is returned when resuming or mutating a finalized session.
	ErrAlreadyCompleted = fmt.Errorf("quiz already completed: %w", ErrConflict)
	// ErrAlreadySubmitted is the losing side of a submit race, or a submit after expiry.
	ErrAlreadySubmitted = fmt.Errorf("quiz already submitted or expired: %w", ErrConflict)
	// ErrSessionExists is returned by stores when a create loses to an existing record.
	ErrSessionExists = fmt.Errorf("quiz session already exists: %w", ErrConflict)
)

// Kind classifies an error for callers that need to pick a retry or status policy.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindValidation
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// KindOf reports the kind an error wraps. Unclassified errors are treated as internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// Validation builds a validation error with a caller-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InternalError wraps a storage or driver failure. It matches both ErrInternal and the cause.
type InternalError struct {
	Op  string
	Err error
}

// Internal wraps err as an internal failure of op.
func Internal(op string, err error) error {
	return &InternalError{Op: op, Err: err}
}

func (e *InternalError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() []error {
	return []error{ErrInternal, e.Err}
}
