// Package apperr defines the error taxonomy shared by the workflow stages
// and the HTTP layer. Each stage raises a classified error; the orchestrator
// and handlers only ever map kinds, never inspect raw collaborator errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a workflow failure.
type Kind string

const (
	// NotFound: the input object is missing from the source store.
	NotFound Kind = "NOT_FOUND"
	// Forbidden: a collaborator rejected the call for access reasons.
	Forbidden Kind = "FORBIDDEN"
	// Validation: malformed or missing required inputs.
	Validation Kind = "VALIDATION_ERROR"
	// NoFieldsFound: detection (including fallback) found nothing to mask.
	NoFieldsFound Kind = "NO_FIELDS_FOUND"
	// ReconciliationFailed: no OCR tokens could be matched to any field.
	ReconciliationFailed Kind = "RECONCILIATION_FAILED"
	// Unavailable: a collaborator call failed after exhausting retries.
	Unavailable Kind = "SERVICE_UNAVAILABLE"
	// Internal: anything else.
	Internal Kind = "INTERNAL_ERROR"
)

// Error is a classified error with an optional operation name and cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error without a cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates a classified error around a cause. A nil cause yields nil.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the classification of err, or Internal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps a kind to the HTTP status the API responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Validation:
		return http.StatusBadRequest
	case NoFieldsFound:
		return http.StatusUnprocessableEntity
	case ReconciliationFailed:
		return http.StatusUnprocessableEntity
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
