// Package errors defines the service's sentinel errors and maps them onto
// HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidTarget        = errors.New("target group count must be a positive integer")
	ErrEmptyInput           = errors.New("unit list is empty")
	ErrPartitionUnavailable = errors.New("no partition could be built")

	ErrSourceUnavailable = errors.New("chapter source unavailable")
	ErrExportFailed      = errors.New("schedule export failed")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode picks the response status for err. An AppError's own status
// wins over the sentinel mapping.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidTarget):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a client-safe description of err.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	switch {
	case errors.Is(err, ErrInvalidTarget):
		return "days must be a positive integer"
	case errors.Is(err, ErrRateLimited):
		return "rate limit exceeded"
	case errors.Is(err, ErrSourceUnavailable):
		return "chapter data is temporarily unavailable"
	case errors.Is(err, ErrTimeout):
		return "request timed out"
	case errors.Is(err, ErrEmptyInput), errors.Is(err, ErrPartitionUnavailable):
		return "failed to divide the reading schedule"
	case errors.Is(err, ErrExportFailed):
		return "failed to write the reading schedule"
	default:
		return "internal error"
	}
}
