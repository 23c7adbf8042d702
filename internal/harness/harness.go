package harness

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/labseq/internal/component"
	"github.com/roach88/labseq/internal/manager"
	"github.com/roach88/labseq/internal/plan"
	"github.com/roach88/labseq/internal/resource"
	"github.com/roach88/labseq/internal/testutil"
	"github.com/roach88/labseq/internal/value"
)

// DefaultRunID is the run ID of scenarios that do not set one.
const DefaultRunID = "test-run-default"

// epoch is the simulated start time of every dry run.
var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Bench is a simulated instrument rack for one plan: one FakeDriver per
// condition, registered as a resource under the condition's resource name
// (or the condition name).
type Bench struct {
	drivers map[string]*testutil.FakeDriver
}

// NewBench builds the simulated instruments of p.
func NewBench(p *plan.Plan) (*Bench, error) {
	b := &Bench{drivers: make(map[string]*testutil.FakeDriver)}
	for _, spec := range p.Conditions {
		d := testutil.NewFakeDriver(nil)
		d.Offset = spec.Offset
		if spec.FailOn != nil {
			v, err := value.Of(spec.FailOn)
			if err != nil {
				return nil, fmt.Errorf("condition %q: fail_on: %w", spec.Name, err)
			}
			d.FailOn = v
		}
		b.drivers[resourceName(spec)] = d
	}
	return b, nil
}

func resourceName(spec plan.ConditionSpec) string {
	if spec.Resource != "" {
		return spec.Resource
	}
	return spec.Name
}

// Resources returns the instrument handles to hand to the manager.
func (b *Bench) Resources() resource.Map {
	m := make(resource.Map, len(b.drivers))
	for name, d := range b.drivers {
		m[name] = d
	}
	return m
}

// Driver looks up the simulated instrument of spec through the manager's
// resolver.
func (b *Bench) Driver(spec plan.ConditionSpec, r *resource.Resolver) (component.Driver, error) {
	return resource.Lookup[*testutil.FakeDriver](r, resourceName(spec))
}

// Instrument returns the simulated instrument of a condition's resource.
func (b *Bench) Instrument(name string) (*testutil.FakeDriver, bool) {
	d, ok := b.drivers[name]
	return d, ok
}

// DryRun constructs the manager of p on a simulated bench and runs it
// once over rows (the full table when empty). The returned error covers
// construction only; a failing run is reported in Result.RunError.
//
// logger may be nil to discard logs.
func DryRun(p *plan.Plan, runID string, rows []map[string]any, logger *slog.Logger, opts ...manager.Option) (*Result, *manager.Manager, error) {
	if runID == "" {
		runID = DefaultRunID
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	}
	bench, err := NewBench(p)
	if err != nil {
		return nil, nil, err
	}

	result := NewResult()
	clock := testutil.NewStepClock(epoch, time.Second)
	base := []manager.Option{
		manager.WithResources(bench.Resources()),
		manager.WithLogger(logger),
		manager.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(runID)),
		manager.WithClock(clock.Now),
		manager.WithObserver(result.AddOperation),
	}
	m, err := p.NewManager(bench.Driver, append(base, opts...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build plan %q: %w", p.Name, err)
	}

	if len(rows) == 0 {
		rows = p.Rows
	}
	if err := m.RunRows(rows); err != nil {
		result.RunError = err.Error()
	}
	result.RunID = m.RunID()
	result.Results = m.Results()
	return result, m, nil
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Load the scenario's plan
// 2. Dry-run it on a simulated bench with the scenario's rows
// 3. Evaluate the assertions against trace and results
func Run(scenario *Scenario) (*Result, error) {
	p, err := plan.Load(scenario.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	result, _, err := DryRun(p, scenario.RunID, scenario.Rows, nil)
	if err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	if result.RunError != "" && !expectsFailure(scenario.Assertions) {
		result.AddError("run failed unexpectedly: " + result.RunError)
	}
	return result, nil
}

func expectsFailure(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertRunError {
			return true
		}
	}
	return false
}
