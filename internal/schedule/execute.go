package schedule

import (
	"fmt"
	"slices"

	"github.com/roach88/labseq/internal/value"
)

// Target carries out the operations of a RunOrder.
type Target interface {
	SetCondition(name string, v value.Value) error
	RunMeasurement(op *RunMeasurement) error
}

// Execute walks order strictly in sequence and stops at the first failing
// operation. It returns the conditions set so far, which is what an error
// stage runs with, and a *StepError or *InvariantError on failure.
func Execute(order RunOrder, t Target) (value.Assignments, error) {
	current := value.Assignments{}
	for i, op := range order {
		switch o := op.(type) {
		case *SetCondition:
			if err := t.SetCondition(o.Name, o.Value); err != nil {
				return current, &StepError{Index: i, Op: op, Err: err}
			}
			current = current.With(o.Name, o.Value)
		case *RunMeasurement:
			if err := t.RunMeasurement(o); err != nil {
				return current, &StepError{Index: i, Op: op, Err: err}
			}
		default:
			return current, &InvariantError{Index: i, Message: fmt.Sprintf("unknown operation %T", op)}
		}
	}
	return current, nil
}

// Validate checks that every step addresses a known label and carries
// scalar values.
func (o RunOrder) Validate(conditions, measurements []string) error {
	for i, op := range o {
		switch s := op.(type) {
		case *SetCondition:
			if !slices.Contains(conditions, s.Name) {
				return &InvariantError{Index: i, Message: fmt.Sprintf("unknown condition %q", s.Name)}
			}
			if s.Value == nil {
				return &InvariantError{Index: i, Message: fmt.Sprintf("condition %q has no value", s.Name)}
			}
		case *RunMeasurement:
			if !slices.Contains(measurements, s.Name) {
				return &InvariantError{Index: i, Message: fmt.Sprintf("unknown measurement %q", s.Name)}
			}
			for _, a := range s.Conditions {
				if a.Value == nil {
					return &InvariantError{Index: i, Message: fmt.Sprintf("measurement %q: condition %q has no value", s.Name, a.Name)}
				}
			}
		default:
			return &InvariantError{Index: i, Message: fmt.Sprintf("unknown operation %T", op)}
		}
	}
	return nil
}
