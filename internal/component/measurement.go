package component

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/roach88/labseq/internal/dataset"
	"github.com/roach88/labseq/internal/schedule"
	"github.com/roach88/labseq/internal/value"
)

// SequenceFunc is the body of a measurement.
type SequenceFunc func(m *Measurement) error

// ProcessFunc post-processes a measurement's results after a successful
// sequence.
type ProcessFunc func(m *Measurement) error

// DefaultCondition is the condition a measurement records under when it
// runs with none, e.g. in the STARTUP stage.
const DefaultCondition = "default"

// Measurement is a unit of test logic.
//
// Stage rules default to MAIN only. Registering for STARTUP, TEARDOWN,
// SETUP or AFTER removes MAIN, which RunOnMain(true) can restore.
type Measurement struct {
	Base
	sequence SequenceFunc
	process  ProcessFunc
	rules    map[schedule.Stage]schedule.Rule
	current  value.Assignments
	lastErr  error
	elapsed  time.Duration
}

// NewMeasurement declares a measurement running seq.
func NewMeasurement(name string, seq SequenceFunc, opts ...Option) (*Measurement, error) {
	if name == "" {
		return nil, fmt.Errorf("measurement name must not be empty")
	}
	if seq == nil {
		return nil, fmt.Errorf("measurement %q: sequence is required", name)
	}
	o := applyOptions(opts)
	return &Measurement{
		Base:     newBase(name, o),
		sequence: seq,
		process:  o.process,
		rules:    map[schedule.Stage]schedule.Rule{schedule.Main: {}},
	}, nil
}

// RunOnStartup registers (or removes) the STARTUP stage.
func (m *Measurement) RunOnStartup(enable bool) {
	m.toggle(schedule.Startup, enable)
}

// RunOnTeardown registers (or removes) the TEARDOWN stage.
func (m *Measurement) RunOnTeardown(enable bool) {
	m.toggle(schedule.Teardown, enable)
}

// RunOnMain registers (or removes) the MAIN stage.
func (m *Measurement) RunOnMain(enable bool) {
	if enable {
		m.rules[schedule.Main] = schedule.Rule{}
		return
	}
	delete(m.rules, schedule.Main)
}

func (m *Measurement) toggle(stage schedule.Stage, enable bool) {
	if !enable {
		delete(m.rules, stage)
		return
	}
	m.rules[stage] = schedule.Rule{}
	m.RunOnMain(false)
}

// RunOnSetup runs the measurement right after condition is set, when trig
// matches. The first SETUP rule removes MAIN.
func (m *Measurement) RunOnSetup(condition string, trig schedule.Trigger) {
	m.addRule(schedule.Setup, condition, trig)
}

// RunAfter runs the measurement after the MAIN stage of every row where
// trig matches condition. The first AFTER rule removes MAIN.
func (m *Measurement) RunAfter(condition string, trig schedule.Trigger) {
	m.addRule(schedule.After, condition, trig)
}

func (m *Measurement) addRule(stage schedule.Stage, condition string, trig schedule.Trigger) {
	rule, ok := m.rules[stage]
	if !ok {
		rule = schedule.Rule{}
		m.rules[stage] = rule
		m.RunOnMain(false)
	}
	rule[value.NormalizeName(condition)] = trig
}

// RunOnError registers the ERROR stage: the measurement runs best-effort
// after a failed run. MAIN is kept.
func (m *Measurement) RunOnError() {
	m.rules[schedule.Error] = schedule.Rule{}
}

// Task returns the scheduling view of the measurement.
func (m *Measurement) Task() schedule.Task {
	stages := make(map[schedule.Stage]schedule.Rule, len(m.rules))
	for s, r := range m.rules {
		stages[s] = maps.Clone(r)
	}
	return schedule.Task{Name: m.name, Stages: stages}
}

// Stages returns the registered stages in run order.
func (m *Measurement) Stages() []schedule.Stage {
	var out []schedule.Stage
	for _, s := range schedule.Stages {
		if _, ok := m.rules[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Run executes the measurement under conds. A disabled measurement
// succeeds without doing anything. An empty conds records under the
// default condition.
//
// The sequence runs first, then the process step if the sequence
// succeeded. Errors and panics from either are captured into a *RunError,
// remembered as the last error, and returned. Nothing written to the
// results store is rolled back.
func (m *Measurement) Run(conds value.Assignments) error {
	if !m.enabled {
		m.logger.Debug("measurement disabled, skipping")
		return nil
	}
	m.lastErr = nil
	if len(conds) == 0 {
		conds = value.Set(value.Assignment{Name: DefaultCondition, Value: value.Int(0)})
	}
	if err := m.results.AccumulateConditions(conds); err != nil {
		return m.fail(&RunError{Measurement: m.name, Phase: PhaseConditions, Err: err})
	}
	m.current = conds.Clone()

	start := m.env.Clock()
	defer func() {
		m.elapsed = m.env.Clock().Sub(start)
		m.logger.Debug("measurement finished", "conditions", m.current.String(), "duration", m.elapsed)
	}()

	if err := m.guard(PhaseSequence, func() error { return m.sequence(m) }); err != nil {
		return m.fail(err)
	}
	if m.process != nil {
		if err := m.guard(PhaseProcess, func() error { return m.process(m) }); err != nil {
			return m.fail(err)
		}
	}
	return nil
}

func (m *Measurement) guard(phase Phase, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &RunError{Measurement: m.name, Phase: phase, Err: fmt.Errorf("%v", p), Panic: true}
		}
	}()
	if e := fn(); e != nil {
		return &RunError{Measurement: m.name, Phase: phase, Err: e}
	}
	return nil
}

func (m *Measurement) fail(err error) error {
	m.lastErr = err
	m.logger.Error("measurement failed", "error", err)
	return err
}

// LastError returns the error of the most recent run, or nil.
func (m *Measurement) LastError() error { return m.lastErr }

// Duration returns how long the most recent run took.
func (m *Measurement) Duration() time.Duration { return m.elapsed }

// Conditions returns the conditions of the current (or most recent) run.
func (m *Measurement) Conditions() value.Assignments { return m.current.Clone() }

// Condition returns one condition of the current run.
func (m *Measurement) Condition(name string) (value.Value, bool) {
	return m.current.Get(name)
}

// StoreArray writes values into the results store at the current
// conditions and dims.
func (m *Measurement) StoreArray(name string, values dataset.Array, dims ...dataset.Dim) error {
	return m.results.StoreArray(name, values, dims...)
}

// StoreFloat writes a single number at the current conditions.
func (m *Measurement) StoreFloat(name string, f float64, dims ...dataset.Dim) error {
	return m.results.StoreFloat(name, f, dims...)
}

// DeclareSweep declares an independent axis in the results store.
func (m *Measurement) DeclareSweep(name string, values []value.Value) error {
	return m.results.DeclareSweep(name, values)
}

// CurrentResults reads variable name at the current conditions. Sweep
// dims stay free.
func (m *Measurement) CurrentResults(name string) (dataset.Array, error) {
	v, ok := m.results.Variable(name)
	if !ok {
		return m.results.Slice(name)
	}
	var pins []dataset.Dim
	for _, p := range dataset.Pins(m.current) {
		if slices.Contains(v.Dims, p.Name) {
			pins = append(pins, p)
		}
	}
	return m.results.Slice(name, pins...)
}

// ClearResults empties the results store and the condition snapshot.
func (m *Measurement) ClearResults() {
	m.results.Clear()
	m.current = nil
}
