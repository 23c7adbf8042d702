package schedule

import (
	"errors"
	"fmt"
)

// InvariantError reports a malformed RunOrder entry: an operation of an
// unknown type, or a label no declared condition or measurement carries.
// It is a programming error and aborts execution at once.
type InvariantError struct {
	Index   int
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("run order step %d: %s", e.Index, e.Message)
}

// IsInvariant reports whether err is (or wraps) an InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// StepError reports the operation at which execution stopped.
type StepError struct {
	Index int
	Op    Operation
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%v): %v", e.Index, e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
