package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfiguration       = errors.New("configuration error")
	ErrEmptyQuery          = errors.New("empty query")
	ErrUnknownTerm         = errors.New("unknown term")
	ErrMalformedStatistics = errors.New("malformed index statistics")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrUnknownRanker       = errors.New("unknown ranking function")
	ErrInvalidInput        = errors.New("invalid input")
	ErrTimeout             = errors.New("operation timed out")
	ErrInternal            = errors.New("internal error")
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

// Recoverable reports whether err only affects the query that produced it,
// so a batch may continue with the next query.
func Recoverable(err error) bool {
	return errors.Is(err, ErrEmptyQuery) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrMalformedStatistics) ||
		errors.Is(err, ErrDocumentNotFound) ||
		errors.Is(err, ErrInvalidInput)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrUnknownRanker):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrMalformedStatistics), errors.Is(err, ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
