package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code is a machine-readable error code for the boundary layer.
type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeRateLimited Code = "RATE_LIMIT_EXCEEDED"
	CodeDatabase    Code = "DATABASE_ERROR"
	CodeEmbedding   Code = "EMBEDDING_ERROR"
	CodeUnexpected  Code = "UNEXPECTED_ERROR"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrValidation  = &RetrieverError{Code: CodeValidation}
	ErrRateLimited = &RetrieverError{Code: CodeRateLimited}
	ErrDatabase    = &RetrieverError{Code: CodeDatabase}
	ErrEmbedding   = &RetrieverError{Code: CodeEmbedding}
	ErrUnexpected  = &RetrieverError{Code: CodeUnexpected}
)

// RetrieverError carries a code and an HTTP-style status. Err holds the
// original cause for diagnostics and is never part of PublicDetails.
type RetrieverError struct {
	Code    Code
	Status  int
	Message string
	Details map[string]any
	Err     error
}

func (e *RetrieverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RetrieverError) Unwrap() error {
	return e.Err
}

func (e *RetrieverError) Is(target error) bool {
	t, ok := target.(*RetrieverError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// PublicDetails returns details safe to hand to untrusted callers.
func (e *RetrieverError) PublicDetails() map[string]any {
	out := make(map[string]any, len(e.Details))
	for k, v := range e.Details {
		out[k] = v
	}
	return out
}

// ResetAt returns the window reset time of a rate-limit error.
func (e *RetrieverError) ResetAt() (time.Time, bool) {
	if e.Code != CodeRateLimited {
		return time.Time{}, false
	}
	t, ok := e.Details["resetTime"].(time.Time)
	return t, ok
}

// RetryAfter returns how long a rate-limited caller should wait, rounded up
// to whole seconds.
func (e *RetrieverError) RetryAfter(now time.Time) time.Duration {
	reset, ok := e.ResetAt()
	if !ok || !reset.After(now) {
		return 0
	}
	d := reset.Sub(now)
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	return d
}

func NewValidationError(message string, violations []string) *RetrieverError {
	return &RetrieverError{
		Code:    CodeValidation,
		Status:  http.StatusBadRequest,
		Message: message,
		Details: map[string]any{"errors": violations},
	}
}

func NewRateLimitError(resetAt time.Time) *RetrieverError {
	return &RetrieverError{
		Code:    CodeRateLimited,
		Status:  http.StatusTooManyRequests,
		Message: "Rate limit exceeded",
		Details: map[string]any{"resetTime": resetAt},
	}
}

func NewDatabaseError(message string, err error) *RetrieverError {
	return &RetrieverError{
		Code:    CodeDatabase,
		Status:  http.StatusInternalServerError,
		Message: message,
		Err:     err,
	}
}

func NewEmbeddingError(message string, err error) *RetrieverError {
	return &RetrieverError{
		Code:    CodeEmbedding,
		Status:  http.StatusInternalServerError,
		Message: message,
		Err:     err,
	}
}

// WrapUnexpected passes RetrieverErrors through and wraps anything else.
func WrapUnexpected(err error) error {
	if err == nil {
		return nil
	}
	var re *RetrieverError
	if errors.As(err, &re) {
		return err
	}
	return &RetrieverError{
		Code:    CodeUnexpected,
		Status:  http.StatusInternalServerError,
		Message: "An unexpected error occurred during retrieval",
		Err:     err,
	}
}

// IsCode reports whether err is a RetrieverError with the given code.
func IsCode(err error, code Code) bool {
	var re *RetrieverError
	return errors.As(err, &re) && re.Code == code
}
