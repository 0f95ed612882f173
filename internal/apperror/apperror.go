// Package apperror defines the error kinds shared by every layer of the catalog.
//
// Each kind is a sentinel error. Constructors return an *AppError that wraps the
// sentinel and carries a human-readable message, so callers can test the kind with
// errors.Is while handlers still have something safe to show the client:
//
//	err := store.CreateRating(ctx, r)
//	if errors.Is(err, apperror.ErrConflict) { ... } // second rating for the same pair
//
// The repository and service layers never translate these into HTTP codes; that
// mapping lives in the handler package.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	// ErrConflict is the ConstraintViolation kind: a unique key or composite key clash.
	ErrConflict          = errors.New("conflict")
	ErrReferenceNotFound = errors.New("reference not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")

	// Password-reset token kinds.
	ErrTokenNotFound    = errors.New("reset token not found")
	ErrTokenExpired     = errors.New("reset token expired")
	ErrTokenAlreadyUsed = errors.New("reset token already used")
	ErrEmailMismatch    = errors.New("email does not match reset token")
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

// Conflict reports a uniqueness violation. field names the key that clashed
// ("email", "user_id,movie_id", ...).
func Conflict(resource, field, value string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s with %s %s already exists", resource, field, value),
		Field:   field,
	}
}

// ReferenceNotFound reports a dangling foreign key: the parent a row points at does not exist.
func ReferenceNotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrReferenceNotFound,
		Message: fmt.Sprintf("referenced %s %s does not exist", resource, id),
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

// Unauthorized is returned when credentials are missing or wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func TokenNotFound() *AppError {
	return &AppError{Err: ErrTokenNotFound, Message: "reset token is invalid"}
}

func TokenExpired() *AppError {
	return &AppError{Err: ErrTokenExpired, Message: "reset token has expired"}
}

func TokenAlreadyUsed() *AppError {
	return &AppError{Err: ErrTokenAlreadyUsed, Message: "reset token has already been used"}
}

func EmailMismatch() *AppError {
	return &AppError{Err: ErrEmailMismatch, Message: "email does not match the reset request", Field: "email"}
}
