// Package apperror defines the application's error taxonomy.
//
// Every error a store or the session provider returns either IS one of the
// sentinels below (via errors.Is) or is an unexpected infrastructure failure.
// Handlers map sentinels to HTTP status codes; anything else is a 500.
//
//	ErrValidation    → bad input from the user
//	ErrNotFound      → row does not exist (or belongs to someone else)
//	ErrConflict      → uniqueness violation, e.g. email already registered
//	ErrForbidden     → caller lacks permission
//	ErrUnauthorized  → authentication failure: bad credentials, revoked token
//	ErrPrecondition  → operation called out of order: no signed-in user,
//	                   profile not loaded yet. A programming error, never
//	                   shown to the user as a notification.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrPrecondition = errors.New("precondition failed")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for an authentication failure.
// The message is shown to the user, so it must not say WHICH credential was wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// PreconditionFailed returns an AppError for an operation invoked before its
// prerequisites exist (no user, nothing loaded).
func PreconditionFailed(message string) *AppError {
	return &AppError{
		Err:     ErrPrecondition,
		Message: message,
	}
}

// IsUserFacing reports whether err should be surfaced to the user as a
// notification. Precondition failures are ordering bugs and stay silent.
func IsUserFacing(err error) bool {
	return err != nil && !errors.Is(err, ErrPrecondition)
}
