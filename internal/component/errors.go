package component

import (
	"errors"
	"fmt"
)

// Phase is the part of a measurement run that failed.
type Phase string

const (
	PhaseConditions Phase = "conditions"
	PhaseSequence   Phase = "sequence"
	PhaseProcess    Phase = "process"
)

// RunError is a captured measurement failure. It is what Run returns and
// what LastError describes.
type RunError struct {
	Measurement string
	Phase       Phase
	Err         error

	// Panic is set when the failure was a recovered panic.
	Panic bool
}

func (e *RunError) Error() string {
	if e.Panic {
		return fmt.Sprintf("measurement %q: %s panicked: %v", e.Measurement, e.Phase, e.Err)
	}
	return fmt.Sprintf("measurement %q: %s failed: %v", e.Measurement, e.Phase, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// IsRunError reports whether err is (or wraps) a RunError.
func IsRunError(err error) bool {
	var re *RunError
	return errors.As(err, &re)
}
