package source

import (
	"errors"
	"fmt"
)

// Error reports a failed request cycle.
type Error struct {
	Code    ErrorCode
	Layer   string
	Message string
	Cause   error
}

// ErrorCode categorizes source errors.
type ErrorCode string

const (
	// ErrCodeBackend indicates the backend rejected or failed the search.
	ErrCodeBackend ErrorCode = "BACKEND_FAILED"

	// ErrCodeEvaluatorRequired indicates a filter that needs local
	// re-evaluation on a source configured without an Evaluator.
	ErrCodeEvaluatorRequired ErrorCode = "EVALUATOR_REQUIRED"

	// ErrCodeEvaluation indicates the Evaluator failed on a hit.
	ErrCodeEvaluation ErrorCode = "EVALUATION_FAILED"
)

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (layer=%s)", e.Code, e.Message, e.Layer)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsBackendError reports whether err is a backend failure.
func IsBackendError(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == ErrCodeBackend
}

// IsEvaluatorRequired reports whether err asks for an Evaluator.
func IsEvaluatorRequired(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == ErrCodeEvaluatorRequired
}
