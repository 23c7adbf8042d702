package manager

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes manager errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates a malformed definition or condition
	// rows: duplicate names, unknown conditions, non-scalar values.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeAggregation indicates a component store could not be merged
	// into the aggregate results.
	ErrCodeAggregation ErrorCode = "AGGREGATION"
)

// Error is a manager-level failure.
type Error struct {
	Code    ErrorCode
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func configError(err error, format string, args ...any) *Error {
	return &Error{Code: ErrCodeConfiguration, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsConfiguration reports whether err is (or wraps) a configuration error.
func IsConfiguration(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == ErrCodeConfiguration
	}
	return false
}

// IsAggregation reports whether err is (or wraps) an aggregation error.
func IsAggregation(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == ErrCodeAggregation
	}
	return false
}
