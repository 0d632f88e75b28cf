package compiler

import (
	"errors"
	"fmt"
)

// Error reports a filter that cannot be compiled at all.
//
// Compile errors are reserved for malformed input: a literal that does not
// parse as its attribute's declared type, or an operand the compiler does
// not recognise. Predicates that are well formed but have no exact native
// form never produce an Error; they compile to an approximation and are
// reported as Gaps instead.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Field is the attribute being compiled, if any.
	Field string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying parse error, if any.
	Cause error
}

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeCoercion indicates a literal that does not parse as the
	// attribute's declared type.
	ErrCodeCoercion ErrorCode = "COERCION_FAILED"

	// ErrCodeInvalidLiteral indicates a literal of a kind the operator
	// cannot take, such as a period in a comparison.
	ErrCodeInvalidLiteral ErrorCode = "INVALID_LITERAL"

	// ErrCodeInvalidPredicate indicates a nil or unknown predicate node.
	ErrCodeInvalidPredicate ErrorCode = "INVALID_PREDICATE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, msg, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCoercionError reports whether err is a literal coercion failure.
func IsCoercionError(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == ErrCodeCoercion
}

// IsInvalidLiteralError reports whether err is an unusable literal.
func IsInvalidLiteralError(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == ErrCodeInvalidLiteral
}

func coercionError(field string, value any, target string, cause error) *Error {
	return &Error{
		Code:    ErrCodeCoercion,
		Field:   field,
		Message: fmt.Sprintf("cannot use %v (%T) as %s", value, value, target),
		Cause:   cause,
	}
}

func invalidLiteral(field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidLiteral,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func unsupportedType(p any) string {
	return fmt.Sprintf("unsupported predicate type: %T", p)
}
