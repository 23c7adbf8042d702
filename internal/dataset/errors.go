package dataset

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeCoordinateConflict indicates a coordinate was redeclared with a
	// different length or different values, or two merged stores disagree.
	ErrCodeCoordinateConflict ErrorCode = "COORDINATE_CONFLICT"

	// ErrCodeShapeMismatch indicates an array write whose shape cannot be
	// reconciled with the target slice.
	ErrCodeShapeMismatch ErrorCode = "SHAPE_MISMATCH"

	// ErrCodeInvalidCondition indicates a condition value that is not a scalar.
	ErrCodeInvalidCondition ErrorCode = "INVALID_CONDITION"

	// ErrCodeUnknownCoordinate indicates a reference to a coordinate (or a
	// coordinate value) the store does not hold.
	ErrCodeUnknownCoordinate ErrorCode = "UNKNOWN_COORDINATE"

	// ErrCodeNoDimensions indicates a write with no effective dimensions.
	ErrCodeNoDimensions ErrorCode = "NO_DIMENSIONS"

	// ErrCodeDimensionMismatch indicates a write to an existing variable with
	// a different set of dimensions.
	ErrCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"

	// ErrCodeUnknownVariable indicates a read of a variable that does not exist.
	ErrCodeUnknownVariable ErrorCode = "UNKNOWN_VARIABLE"

	// ErrCodeVariableConflict indicates two merged stores hold the same
	// variable with incompatible dims or conflicting values.
	ErrCodeVariableConflict ErrorCode = "VARIABLE_CONFLICT"

	// ErrCodeInvalidDocument indicates a malformed serialized document.
	ErrCodeInvalidDocument ErrorCode = "INVALID_DOCUMENT"
)

// Error is returned by every failing Store operation.
type Error struct {
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Name is the coordinate or variable the error refers to, if any.
	Name string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, name, format string, args ...any) *Error {
	return &Error{Code: code, Name: name, Message: fmt.Sprintf(format, args...)}
}

// HasCode reports whether err is (or wraps) a store Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsCoordinateConflict reports whether err is a coordinate conflict.
func IsCoordinateConflict(err error) bool {
	return HasCode(err, ErrCodeCoordinateConflict)
}

// IsShapeMismatch reports whether err is a shape mismatch.
func IsShapeMismatch(err error) bool {
	return HasCode(err, ErrCodeShapeMismatch)
}
