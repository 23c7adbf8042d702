package schedule

import (
	"fmt"
	"strings"

	"github.com/roach88/labseq/internal/value"
)

// Stage is a point in the run at which a measurement can be scheduled.
type Stage int

const (
	Startup Stage = iota
	Setup
	Main
	After
	Teardown
	Error
)

var stageNames = [...]string{"STARTUP", "SETUP", "MAIN", "AFTER", "TEARDOWN", "ERROR"}

// Stages lists every stage in run order.
var Stages = []Stage{Startup, Setup, Main, After, Teardown, Error}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage accepts a stage name in any letter case.
func ParseStage(name string) (Stage, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range stageNames {
		if n == upper {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q (want one of %s)", name, strings.Join(stageNames[:], ", "))
}

// TriggerKind selects how a rule matches a condition value.
type TriggerKind int

const (
	// Every matches every change of the condition.
	Every TriggerKind = iota
	// Exact matches one value.
	Exact
	// FirstTime matches the first row at which the condition takes a value.
	FirstTime
	// LastTime matches the last row at which the condition holds a value.
	LastTime
)

// Trigger is the rule attached to one condition of a stage.
type Trigger struct {
	Kind  TriggerKind
	Value value.Value
}

// OnEvery is the trigger that always matches.
func OnEvery() Trigger { return Trigger{Kind: Every} }

// OnFirstTime matches the first occurrence of each value.
func OnFirstTime() Trigger { return Trigger{Kind: FirstTime} }

// OnLastTime matches the last occurrence of each value.
func OnLastTime() Trigger { return Trigger{Kind: LastTime} }

// OnValue matches a single value. It panics if x is not a scalar.
func OnValue(x any) Trigger {
	return Trigger{Kind: Exact, Value: value.MustOf(x)}
}

// ParseTrigger reads a trigger from plan data: nil or "EVERY" is Every,
// "FIRST_TIME" and "LAST_TIME" are the occurrence triggers, and any other
// scalar is an exact value.
func ParseTrigger(x any) (Trigger, error) {
	if s, ok := x.(string); ok {
		switch strings.ToUpper(s) {
		case "EVERY":
			return OnEvery(), nil
		case "FIRST_TIME":
			return OnFirstTime(), nil
		case "LAST_TIME":
			return OnLastTime(), nil
		}
	}
	if x == nil {
		return OnEvery(), nil
	}
	v, err := value.Of(x)
	if err != nil {
		return Trigger{}, fmt.Errorf("invalid trigger: %w", err)
	}
	return Trigger{Kind: Exact, Value: v}, nil
}

func (t Trigger) String() string {
	switch t.Kind {
	case Every:
		return "EVERY"
	case FirstTime:
		return "FIRST_TIME"
	case LastTime:
		return "LAST_TIME"
	default:
		return t.Value.String()
	}
}

// Rule maps condition names to triggers for one stage. An empty rule
// means "every time".
type Rule map[string]Trigger

// Task is the scheduling view of a measurement: its name and the stages it
// is registered for.
type Task struct {
	Name   string
	Stages map[Stage]Rule
}

// In reports whether t is registered for stage.
func (t Task) In(stage Stage) bool {
	_, ok := t.Stages[stage]
	return ok
}
