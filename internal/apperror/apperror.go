// Package apperror defines the application's error taxonomy.
//
// Every failure that crosses a layer boundary is classified here. The
// service layer returns these; the HTTP layer maps them to status codes in
// handler/response.go via errors.Is. Infrastructure errors that don't fit a
// category stay unclassified and surface as generic internal errors.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAccessRevoked       = errors.New("access revoked")
	ErrGeneration          = errors.New("generation failed")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstream            = errors.New("upstream error")
)

type AppError struct {
	Err     error  // classification sentinel
	Message string // human-readable error message
	Field   string // optional: field causing the error
	Status  int    // optional: upstream HTTP status that caused this
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound covers both missing records and ownership mismatches. A playlist
// that exists but belongs to another user is reported exactly like one that
// doesn't exist, so the API never leaks existence.
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

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func InsufficientCredits(required int) *AppError {
	return &AppError{
		Err:     ErrInsufficientCredits,
		Message: fmt.Sprintf("not enough credits (need %d)", required),
	}
}

// AccessRevoked carries the provider's status code so the client can tell a
// revoked grant (401/403) apart from other failures.
func AccessRevoked(status int) *AppError {
	return &AppError{
		Err:     ErrAccessRevoked,
		Message: "your music platform access has been revoked, please reconnect your account",
		Status:  status,
	}
}

// Generation marks a model call that errored, returned empty content, or
// produced output that doesn't parse as the expected candidate list. It is
// user-retryable.
func Generation(message string) *AppError {
	return &AppError{
		Err:     ErrGeneration,
		Message: message,
	}
}

func RateLimited(message string) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: message,
	}
}

func Upstream(status int, message string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Status:  status,
	}
}
