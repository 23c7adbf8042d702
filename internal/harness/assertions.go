package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/labseq/internal/dataset"
	"github.com/roach88/labseq/internal/schedule"
	"github.com/roach88/labseq/internal/value"
)

// tolerance for final_results comparisons.
const tolerance = 1e-9

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event)
		}
	}
	return buf.String()
}

// assertTraceContains checks if the trace contains an operation matching
// the assertion's op, name, stage and conditions (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	want, err := value.FromMap(assertion.Conditions)
	if err != nil {
		return fmt.Errorf("trace_contains: %w", err)
	}
	stage := ""
	if assertion.Stage != "" {
		s, err := schedule.ParseStage(assertion.Stage)
		if err != nil {
			return fmt.Errorf("trace_contains: %w", err)
		}
		stage = s.String()
	}

	for _, event := range trace {
		if event.Name != value.NormalizeName(assertion.Name) {
			continue
		}
		if assertion.Op != "" && event.Op != assertion.Op {
			continue
		}
		if stage != "" && event.Stage != stage {
			continue
		}
		if matchConditions(event.conds, want) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s %s [%s] with conditions %v", opOrAny(assertion.Op), assertion.Name, stageOrAny(stage), want),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func opOrAny(op string) string {
	if op == "" {
		return "any op"
	}
	return op
}

func stageOrAny(stage string) string {
	if stage == "" {
		return "any stage"
	}
	return stage
}

// assertTraceOrder checks if names appear in the specified order.
// Names don't need to be consecutive (intervening operations are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected name
	positions := make(map[string]int)
	for i, event := range trace {
		for _, name := range assertion.Names {
			if event.Name == value.NormalizeName(name) && positions[name] == 0 {
				positions[name] = i + 1 // 1-indexed for readability
			}
		}
	}

	// Step 2: Verify all names found
	for _, name := range assertion.Names {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all names present: %v", assertion.Names),
				Actual:   fmt.Sprintf("missing: %s", name),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Names); i++ {
		prev := assertion.Names[i-1]
		curr := assertion.Names[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("names in order: %v", assertion.Names),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if name appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Name == value.NormalizeName(assertion.Name) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Name),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalResults reads one cell of an aggregate variable. Every
// dimension of the variable must be pinned by the assertion.
func assertFinalResults(results *dataset.Store, assertion Assertion) error {
	if results == nil {
		return fmt.Errorf("final_results assertion requires results")
	}
	at, err := value.FromMap(assertion.At)
	if err != nil {
		return fmt.Errorf("final_results: %w", err)
	}

	where := formatWhere(at)
	arr, err := results.Slice(assertion.Variable, dataset.Pins(at)...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalResults,
			Expected: fmt.Sprintf("variable %s at %s", assertion.Variable, where),
			Actual:   err.Error(),
		}
	}
	got, ok := arr.Float()
	if !ok {
		return &AssertionError{
			Type:     AssertFinalResults,
			Expected: fmt.Sprintf("a single value of %s at %s", assertion.Variable, where),
			Actual:   fmt.Sprintf("%d values (pin every dimension)", arr.Size()),
		}
	}

	if !resultValuesEqual(assertion.Expect, got) {
		return &AssertionError{
			Type:     AssertFinalResults,
			Expected: fmt.Sprintf("%s at %s = %s", assertion.Variable, where, formatExpect(assertion.Expect)),
			Actual:   fmt.Sprintf("%s at %s = %v", assertion.Variable, where, got),
		}
	}
	return nil
}

// resultValuesEqual compares within tolerance. A nil expectation matches
// a missing (NaN) value only.
func resultValuesEqual(expected *float64, actual float64) bool {
	if expected == nil {
		return math.IsNaN(actual)
	}
	if math.IsNaN(actual) {
		return false
	}
	return math.Abs(*expected-actual) <= tolerance*math.Max(1, math.Abs(*expected))
}

func formatExpect(expected *float64) string {
	if expected == nil {
		return "missing"
	}
	return fmt.Sprintf("%v", *expected)
}

// formatWhere creates a human-readable description of pinned coordinates.
func formatWhere(at value.Assignments) string {
	if len(at) == 0 {
		return "(no coordinates)"
	}
	parts := make([]string, 0, len(at))
	for _, a := range at {
		parts = append(parts, fmt.Sprintf("%s=%v", a.Name, a.Value))
	}
	return strings.Join(parts, " AND ")
}

// assertRunError checks that the run failed with a matching message.
func assertRunError(result *Result, assertion Assertion) error {
	if result.RunError == "" {
		return &AssertionError{
			Type:     AssertRunError,
			Expected: fmt.Sprintf("run error containing %q", assertion.Contains),
			Actual:   "run succeeded",
			Trace:    result.Trace,
		}
	}
	if !strings.Contains(result.RunError, assertion.Contains) {
		return &AssertionError{
			Type:     AssertRunError,
			Expected: fmt.Sprintf("run error containing %q", assertion.Contains),
			Actual:   result.RunError,
		}
	}
	return nil
}

// matchConditions checks if actual contains every expected assignment.
// Extra assignments in actual are ignored.
func matchConditions(actual, expected value.Assignments) bool {
	for _, a := range expected {
		v, ok := actual.Get(a.Name)
		if !ok || !value.Equal(v, a.Value) {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalResults:
			err = assertFinalResults(result.Results, assertion)
		case AssertRunError:
			err = assertRunError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
