// Package errors defines the sentinel errors shared by the recommender and
// maps them onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrLoad            = errors.New("catalog load failed")
	ErrNoMatch         = errors.New("no matching title")
	ErrEmptyCatalog    = errors.New("catalog is empty")
	ErrIndexOutOfRange = errors.New("catalog index out of range")
	ErrInvalidInput    = errors.New("invalid input")
	ErrPosterFetch     = errors.New("poster fetch failed")
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
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

// HTTPStatusCode picks the response status for err. NoMatch is an ordinary
// "nothing found" outcome; EmptyCatalog means the service has nothing to
// serve yet.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNoMatch):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrEmptyCatalog), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrPosterFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the short machine-readable error code used in JSON bodies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNoMatch):
		return "no_match"
	case errors.Is(err, ErrEmptyCatalog):
		return "empty_catalog"
	case errors.Is(err, ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrLoad):
		return "load_error"
	default:
		return "internal"
	}
}

// FromCode maps a code produced by Code back to its sentinel. Unknown codes
// map to ErrInternal.
func FromCode(code string) error {
	switch code {
	case "no_match":
		return ErrNoMatch
	case "empty_catalog":
		return ErrEmptyCatalog
	case "index_out_of_range":
		return ErrIndexOutOfRange
	case "invalid_input":
		return ErrInvalidInput
	case "rate_limited":
		return ErrRateLimited
	case "timeout":
		return ErrTimeout
	case "load_error":
		return ErrLoad
	default:
		return ErrInternal
	}
}
