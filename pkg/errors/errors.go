// Package errors defines the sentinel errors shared by the evaluation engine,
// its store adapters and the search service, plus the typed errors that carry
// extra context (unsupported operator/model pairs, HTTP-facing messages).
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnsupported      = errors.New("unsupported operator for retrieval model")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrInvalidModel     = errors.New("invalid retrieval model")
	ErrInvalidPostings  = errors.New("invalid postings")
	ErrDocumentNotFound = errors.New("document not found")
	ErrStore            = errors.New("index store failure")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTimeout          = errors.New("operation timed out")
	ErrInternal         = errors.New("internal error")
)

// UnsupportedError reports a score or default-score request for a
// (node kind, model kind) pair that has no defined formula.
type UnsupportedError struct {
	Node      string
	Model     string
	Operation string
}

func (e *UnsupportedError) Error() string {
	op := e.Operation
	if op == "" {
		op = "score"
	}
	return fmt.Sprintf("%s: %s %s under %s", ErrUnsupported.Error(), e.Node, op, e.Model)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// Unsupported builds an UnsupportedError for the given pair.
func Unsupported(node, model, operation string) *UnsupportedError {
	return &UnsupportedError{Node: node, Model: model, Operation: operation}
}

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

// Store wraps an underlying store failure so callers can detect it with
// errors.Is(err, ErrStore) while keeping the original cause in the chain.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidModel):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrStore), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
