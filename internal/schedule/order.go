package schedule

import (
	"fmt"

	"github.com/roach88/labseq/internal/value"
)

// Operation is one step of a RunOrder: *SetCondition or *RunMeasurement.
type Operation interface {
	fmt.Stringer
	operation()
	// Label is the condition or measurement the step addresses.
	Label() string
}

// SetCondition drives a condition to a setpoint.
type SetCondition struct {
	Name  string
	Value value.Value
}

func (*SetCondition) operation() {}

// Label returns the condition name.
func (o *SetCondition) Label() string { return o.Name }

func (o *SetCondition) String() string {
	return fmt.Sprintf("SET %s=%v", o.Name, o.Value)
}

// RunMeasurement runs a measurement with the given conditions.
type RunMeasurement struct {
	Name       string
	Stage      Stage
	Conditions value.Assignments
}

func (*RunMeasurement) operation() {}

// Label returns the measurement name.
func (o *RunMeasurement) Label() string { return o.Name }

func (o *RunMeasurement) String() string {
	return fmt.Sprintf("RUN %s [%s] %v", o.Name, o.Stage, o.Conditions)
}

// RunOrder is the executable sequence produced by Build.
type RunOrder []Operation

// Build computes the run order for table and tasks. tasks must be in
// measurement declaration order.
func Build(table Table, tasks []Task) RunOrder {
	var order RunOrder
	emit := func(stage Stage, conds value.Assignments, match func(Rule) bool) {
		for _, t := range tasks {
			rule, ok := t.Stages[stage]
			if !ok || !match(rule) {
				continue
			}
			order = append(order, &RunMeasurement{Name: t.Name, Stage: stage, Conditions: conds.Clone()})
		}
	}
	always := func(Rule) bool { return true }

	emit(Startup, value.Assignments{}, always)

	occ := table.occurrences()
	var prev value.Assignments
	for i, row := range table.Rows {
		accum := value.Assignments{}
		for _, name := range table.Names {
			v, ok := row.Get(name)
			if !ok {
				continue
			}
			accum = accum.With(name, v)
			if old, had := prev.Get(name); had && value.Equal(old, v) {
				continue
			}
			order = append(order, &SetCondition{Name: name, Value: v})
			emit(Setup, accum, func(r Rule) bool {
				trig, ok := r[name]
				return ok && trig.matches(occ, name, v, i)
			})
		}

		emit(Main, row, always)

		emit(After, row, func(r Rule) bool {
			if len(r) == 0 {
				return true
			}
			for _, a := range row {
				if trig, ok := r[a.Name]; ok && trig.matches(occ, a.Name, a.Value, i) {
					return true
				}
			}
			return false
		})
		prev = row
	}

	emit(Teardown, value.Assignments{}, always)
	return order
}

func (t Trigger) matches(occ occurrences, name string, v value.Value, row int) bool {
	switch t.Kind {
	case Every:
		return true
	case Exact:
		return value.Equal(t.Value, v)
	case FirstTime:
		return occ.first(name, v, row)
	case LastTime:
		return occ.last(name, v, row)
	default:
		return false
	}
}

// Measurements returns the RunMeasurement steps in order.
func (o RunOrder) Measurements() []*RunMeasurement {
	var out []*RunMeasurement
	for _, op := range o {
		if m, ok := op.(*RunMeasurement); ok {
			out = append(out, m)
		}
	}
	return out
}
