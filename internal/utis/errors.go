package utils

import (
	"errors"
	"net/http"
)

// Error kinds. Every AppError unwraps to exactly one of these.
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
)

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_SERVER_ERROR"
)

type AppError struct {
	Kind    error
	Message string
	Details string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

func NewValidationError(msg string, details string) *AppError {
	return &AppError{Kind: ErrValidation, Message: msg, Details: details}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Kind: ErrNotFound, Message: msg}
}

func NewUnauthorizedError(msg string, cause error) *AppError {
	return &AppError{Kind: ErrUnauthorized, Message: msg, Cause: cause}
}

// Classify maps err to its HTTP status and envelope code. Unknown errors are internal.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, CodeRateLimited
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
