package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/labseq/internal/component"
	"github.com/roach88/labseq/internal/dataset"
	"github.com/roach88/labseq/internal/persist"
	"github.com/roach88/labseq/internal/resource"
	"github.com/roach88/labseq/internal/schedule"
	"github.com/roach88/labseq/internal/service"
	"github.com/roach88/labseq/internal/value"
)

// RunIDKey is the information entry holding the run ID.
const RunIDKey = "run_id"

// ConditionFactory builds one condition. Instrument handles for its driver
// come from r.
type ConditionFactory func(r *resource.Resolver) (*component.Condition, error)

// MeasurementFactory builds one measurement.
type MeasurementFactory func(r *resource.Resolver) (*component.Measurement, error)

// Hook is a user step run by the manager at a fixed point.
type Hook func(m *Manager) error

// Definition declares a test sequence. Factory order is significant:
// the first condition varies slowest, and measurements sharing a stage run
// in the order given.
//
// Measurement stores are merged into the aggregate results, so every
// measurement must see the same values of each condition it shares with
// the others. A measurement that only runs on part of a condition's values
// (a SETUP trigger on LAST_TIME or one exact value, or an AFTER trigger)
// records a narrower coordinate than a MAIN measurement. Its store is then
// left out of the aggregate and the run reports an AGGREGATION error,
// even though every operation succeeded.
type Definition struct {
	Name         string
	Conditions   []ConditionFactory
	Measurements []MeasurementFactory

	// Init runs once after every component exists and services are
	// registered.
	Init Hook

	// PreRun runs before the first operation of every run.
	PreRun Hook

	// PostRun runs after the last operation of a run that did not fail.
	PostRun Hook
}

// Option configures a Manager.
type Option func(*settings)

type settings struct {
	resources resource.Map
	offline   bool
	config    component.Config
	logger    *slog.Logger
	runIDs    RunIDGenerator
	metrics   *Metrics
	info      value.Assignments
	infoErr   error
	clock     func() time.Time
	observer  Observer
}

// WithResources supplies the instrument handles shared by all components.
func WithResources(m resource.Map) Option {
	return func(s *settings) { s.resources = m }
}

// WithOffline makes missing resources resolve to nil instead of failing.
func WithOffline(offline bool) Option {
	return func(s *settings) { s.offline = offline }
}

// WithConfig sets the manager config every component inherits.
func WithConfig(c component.Config) Option {
	return func(s *settings) { s.config = s.config.Merge(c) }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRunIDGenerator replaces the UUIDv7 run ID generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(s *settings) { s.runIDs = g }
}

// WithoutRunID stops the manager from recording a run ID.
func WithoutRunID() Option {
	return func(s *settings) { s.runIDs = nil }
}

// WithMetrics records run metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithInformation adds an identifying entry, e.g. a serial number, to the
// aggregate results.
func WithInformation(name string, x any) Option {
	return func(s *settings) {
		v, err := value.Of(x)
		if err != nil {
			s.infoErr = errors.Join(s.infoErr, fmt.Errorf("information %q: %w", name, err))
			return
		}
		s.info = s.info.With(value.NormalizeName(name), v)
	}
}

// Observer is told about every executed operation and its outcome,
// error-stage runs included.
type Observer func(op schedule.Operation, err error)

// WithObserver registers fn as the run observer.
func WithObserver(fn Observer) Option {
	return func(s *settings) { s.observer = fn }
}

// WithClock replaces time.Now for run timing. Measurements read the same
// clock, once when they start and once when they finish.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.clock = now }
}

// Manager owns the conditions and measurements of one test sequence,
// builds and executes its run order and aggregates the results.
//
// A Manager is not safe for concurrent use. Runs are strictly sequential:
// the resource map and the service registry are shared by every component
// and rely on one operation executing at a time.
//
// INVARIANTS:
//   - Condition and measurement order never changes after New
//   - Names are unique within conditions and within measurements
//   - Results is rebuilt at the end of every run, failed runs included
type Manager struct {
	name         string
	conditions   []*component.Condition
	measurements []*component.Measurement
	registry     *service.Registry
	resources    *resource.Resolver
	config       component.Config
	logger       *slog.Logger
	info         value.Assignments
	runIDs       RunIDGenerator
	metrics      *Metrics
	clock        func() time.Time
	observer     Observer
	preRun       Hook
	postRun      Hook

	results *dataset.Store
	lastErr error
	runID   string
	elapsed time.Duration
}

// New constructs the conditions, then the measurements, then registers
// every service they offer, then runs the Init hook.
func New(def Definition, opts ...Option) (*Manager, error) {
	s := &settings{
		config: component.Config{},
		logger: slog.Default(),
		runIDs: UUIDv7Generator{},
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if def.Name == "" {
		return nil, configError(nil, "manager name must not be empty")
	}
	if s.infoErr != nil {
		return nil, configError(s.infoErr, "%s: invalid information", def.Name)
	}

	m := &Manager{
		name:      def.Name,
		registry:  service.NewRegistry(),
		resources: resource.NewResolver(s.resources, s.offline),
		config:    s.config.Clone(),
		logger:    s.logger.With("manager", def.Name),
		info:      s.info,
		runIDs:    s.runIDs,
		metrics:   s.metrics,
		clock:     s.clock,
		observer:  s.observer,
		preRun:    def.PreRun,
		postRun:   def.PostRun,
		results:   dataset.NewStore(def.Name),
	}
	env := component.Env{
		Resources: m.resources,
		Services:  m.registry,
		Config:    m.config,
		Logger:    m.logger,
		Clock:     m.clock,
	}

	seen := make(map[string]bool)
	for i, f := range def.Conditions {
		c, err := f(m.resources)
		if err != nil {
			return nil, configError(err, "%s: condition %d", m.name, i)
		}
		if c == nil {
			return nil, configError(nil, "%s: condition %d: factory returned nil", m.name, i)
		}
		if seen[c.Name()] {
			return nil, configError(nil, "%s: duplicate condition %q", m.name, c.Name())
		}
		seen[c.Name()] = true
		c.Attach(env)
		m.conditions = append(m.conditions, c)
	}

	seen = make(map[string]bool)
	for i, f := range def.Measurements {
		meas, err := f(m.resources)
		if err != nil {
			return nil, configError(err, "%s: measurement %d", m.name, i)
		}
		if meas == nil {
			return nil, configError(nil, "%s: measurement %d: factory returned nil", m.name, i)
		}
		if seen[meas.Name()] {
			return nil, configError(nil, "%s: duplicate measurement %q", m.name, meas.Name())
		}
		seen[meas.Name()] = true
		meas.Attach(env)
		m.measurements = append(m.measurements, meas)
	}

	for _, c := range m.conditions {
		if err := m.registry.Collect(c.Name(), c); err != nil {
			return nil, configError(err, "%s: services", m.name)
		}
	}
	for _, meas := range m.measurements {
		if err := m.registry.Collect(meas.Name(), meas); err != nil {
			return nil, configError(err, "%s: services", m.name)
		}
	}

	if def.Init != nil {
		if err := m.hook("init", def.Init); err != nil {
			return nil, err
		}
	}
	m.logger.Debug("manager ready",
		"conditions", len(m.conditions),
		"measurements", len(m.measurements),
		"services", m.registry.Len())
	return m, nil
}

// Name returns the manager name.
func (m *Manager) Name() string { return m.name }

// Conditions returns the conditions in declaration order.
func (m *Manager) Conditions() []*component.Condition { return slices.Clone(m.conditions) }

// Measurements returns the measurements in declaration order.
func (m *Manager) Measurements() []*component.Measurement { return slices.Clone(m.measurements) }

// Condition looks up a condition by name.
func (m *Manager) Condition(name string) (*component.Condition, bool) {
	name = value.NormalizeName(name)
	for _, c := range m.conditions {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Measurement looks up a measurement by name.
func (m *Manager) Measurement(name string) (*component.Measurement, bool) {
	name = value.NormalizeName(name)
	for _, meas := range m.measurements {
		if meas.Name() == name {
			return meas, true
		}
	}
	return nil, false
}

// Registry returns the service registry shared by every component.
func (m *Manager) Registry() *service.Registry { return m.registry }

// Resources returns the shared resource resolver.
func (m *Manager) Resources() *resource.Resolver { return m.resources }

// Config returns the manager config.
func (m *Manager) Config() component.Config { return m.config }

// Logger returns the manager logger.
func (m *Manager) Logger() *slog.Logger { return m.logger }

// Results returns the aggregate store of the most recent run or load.
func (m *Manager) Results() *dataset.Store { return m.results }

// LastError returns the error of the most recent run, or nil.
func (m *Manager) LastError() error { return m.lastErr }

// RunID returns the ID of the most recent run, or "" if none was recorded.
func (m *Manager) RunID() string { return m.runID }

// Duration returns how long the most recent run took.
func (m *Manager) Duration() time.Duration { return m.elapsed }

// Information returns the identifying entries added to every result.
func (m *Manager) Information() value.Assignments { return m.info.Clone() }

// SetInformation adds or replaces an identifying entry.
func (m *Manager) SetInformation(name string, x any) error {
	v, err := value.Of(x)
	if err != nil {
		return configError(err, "information %q", name)
	}
	m.info = m.info.With(value.NormalizeName(name), v)
	return nil
}

// ConditionNames returns the enabled conditions in declaration order.
// Disabled conditions are not swept.
func (m *Manager) ConditionNames() []string {
	var out []string
	for _, c := range m.conditions {
		if c.Enabled() {
			out = append(out, c.Name())
		}
	}
	return out
}

func (m *Manager) measurementNames() []string {
	out := make([]string, len(m.measurements))
	for i, meas := range m.measurements {
		out[i] = meas.Name()
	}
	return out
}

// Table returns the condition table: the Cartesian product of every
// enabled condition's values.
func (m *Manager) Table() schedule.Table {
	var axes []schedule.Axis
	for _, c := range m.conditions {
		if c.Enabled() {
			axes = append(axes, schedule.Axis{Name: c.Name(), Values: c.Values()})
		}
	}
	return schedule.Product(axes)
}

func (m *Manager) table(rows []map[string]any) (schedule.Table, error) {
	if len(rows) == 0 {
		return m.Table(), nil
	}
	t, err := schedule.FromRows(m.ConditionNames(), rows)
	if err != nil {
		return schedule.Table{}, configError(err, "%s: condition rows", m.name)
	}
	return t, nil
}

func (m *Manager) tasks() []schedule.Task {
	out := make([]schedule.Task, len(m.measurements))
	for i, meas := range m.measurements {
		out[i] = meas.Task()
	}
	return out
}

// RunOrder builds the run order over the full condition table. Nothing is
// executed.
func (m *Manager) RunOrder() schedule.RunOrder {
	return schedule.Build(m.Table(), m.tasks())
}

// RunOrderFor builds the run order over explicit condition rows. Empty
// rows mean the full condition table.
func (m *Manager) RunOrderFor(rows []map[string]any) (schedule.RunOrder, error) {
	t, err := m.table(rows)
	if err != nil {
		return nil, err
	}
	return schedule.Build(t, m.tasks()), nil
}

// RunOrderTable returns the run order laid out with one column per
// condition.
func (m *Manager) RunOrderTable() schedule.View {
	return schedule.Tabulate(m.RunOrder(), m.ConditionNames())
}

// Run executes the sequence over the full condition table. The error
// joins the first failed operation, if any, with aggregation errors; see
// Definition for stores that cannot be merged.
func (m *Manager) Run() error {
	return m.execute(m.Table())
}

// RunRows executes the sequence over explicit condition rows. Each row
// maps condition names to scalar values and may bind a subset of the
// enabled conditions. Empty rows mean the full condition table.
func (m *Manager) RunRows(rows []map[string]any) error {
	t, err := m.table(rows)
	if err != nil {
		m.lastErr = err
		return err
	}
	return m.execute(t)
}

// execute clears every component store, walks the run order and always
// finishes by rebuilding the aggregate results.
func (m *Manager) execute(table schedule.Table) error {
	start := m.clock()
	m.runID = ""
	if m.runIDs != nil {
		m.runID = m.runIDs.Generate()
	}
	logger := m.logger
	if m.runID != "" {
		logger = logger.With("run_id", m.runID)
	}

	m.clearResults()
	order := schedule.Build(table, m.tasks())
	logger.Info("run started", "rows", len(table.Rows), "operations", len(order))

	runErr := m.walk(order, logger)
	aggErr := m.aggregate(logger)

	err := errors.Join(runErr, aggErr)
	m.lastErr = err
	m.elapsed = m.clock().Sub(start)
	m.metrics.finished(m.elapsed, err)
	if err != nil {
		logger.Error("run finished with errors", "error", err, "duration", m.elapsed)
		return err
	}
	logger.Info("run finished", "duration", m.elapsed)
	return nil
}

func (m *Manager) walk(order schedule.RunOrder, logger *slog.Logger) error {
	if err := order.Validate(m.ConditionNames(), m.measurementNames()); err != nil {
		logger.Error("invalid run order", "error", err)
		return err
	}
	if len(order) == 0 {
		logger.Warn("nothing in the run order")
		return nil
	}

	current := value.Assignments{}
	var err error
	if m.preRun != nil {
		err = m.hook("pre-run", m.preRun)
	}
	if err == nil {
		current, err = schedule.Execute(order, &target{m: m, logger: logger})
	}
	if err == nil && m.postRun != nil {
		err = m.hook("post-run", m.postRun)
	}
	if err == nil {
		return nil
	}
	if schedule.IsInvariant(err) {
		logger.Error("run order invariant violated", "error", err)
		return err
	}
	logger.Error("run aborted", "error", err, "conditions", current.String())
	m.runErrorStage(current, logger)
	return err
}

// runErrorStage runs every ERROR-stage measurement in declaration order.
// Failures are logged and never stop the others.
func (m *Manager) runErrorStage(current value.Assignments, logger *slog.Logger) {
	for _, meas := range m.measurements {
		if !meas.Task().In(schedule.Error) {
			continue
		}
		logger.Info("running error-stage measurement", "measurement", meas.Name())
		m.metrics.operation(kindMeasurement)
		err := meas.Run(current)
		if err != nil {
			m.metrics.failure(meas.Name())
			logger.Warn("error-stage measurement failed", "measurement", meas.Name(), "error", err)
		}
		m.observe(&schedule.RunMeasurement{Name: meas.Name(), Stage: schedule.Error, Conditions: current.Clone()}, err)
	}
}

func (m *Manager) observe(op schedule.Operation, err error) {
	if m.observer != nil {
		m.observer(op, err)
	}
}

func (m *Manager) hook(name string, fn Hook) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s: %s hook panicked: %v", m.name, name, p)
		}
	}()
	if e := fn(m); e != nil {
		return fmt.Errorf("%s: %s hook: %w", m.name, name, e)
	}
	return nil
}

func (m *Manager) clearResults() {
	for _, c := range m.conditions {
		c.ClearResults()
	}
	for _, meas := range m.measurements {
		meas.ClearResults()
	}
}

// aggregate merges every enabled, non-empty measurement store in
// declaration order, then adds the information entries. A store that
// cannot be merged is skipped and reported.
func (m *Manager) aggregate(logger *slog.Logger) error {
	out := dataset.NewStore(m.name)
	var errs []error
	for _, meas := range m.measurements {
		if !meas.Enabled() || meas.Results().Empty() {
			continue
		}
		if err := out.Merge(meas.Results()); err != nil {
			logger.Error("skipping measurement results", "measurement", meas.Name(), "error", err)
			errs = append(errs, &Error{
				Code:    ErrCodeAggregation,
				Message: fmt.Sprintf("merge results of %q", meas.Name()),
				Err:     err,
			})
		}
	}

	info := m.info.Clone()
	if m.runID != "" {
		info = info.With(RunIDKey, value.NewString(m.runID))
	}
	for _, a := range info {
		// an entry that cannot become a single-value coordinate is kept
		// as an attribute
		if err := out.DefineCoordinate(a.Name, []value.Value{a.Value}); err != nil {
			out.SetAttr(a.Name, a.Value)
		}
	}
	m.results = out
	return errors.Join(errs...)
}

// Restore makes s the aggregate results and hands every component the
// variables carrying its provenance tag.
func (m *Manager) Restore(s *dataset.Store) {
	m.results = s
	for _, c := range m.conditions {
		c.SetResults(s.FilterByProvenance(c.Kind()))
	}
	for _, meas := range m.measurements {
		meas.SetResults(s.FilterByProvenance(meas.Kind()))
	}
}

// Save writes the aggregate results as a JSON document.
func (m *Manager) Save(path string) error {
	return persist.SaveJSON(path, m.results)
}

// Load reads a JSON document saved by Save and restores it.
func (m *Manager) Load(path string) error {
	s, err := persist.LoadJSON(path, m.name)
	if err != nil {
		return err
	}
	m.Restore(s)
	return nil
}

// ExportWorkbook writes the aggregate results to a SQLite workbook.
func (m *Manager) ExportWorkbook(ctx context.Context, path string) error {
	return persist.ExportWorkbook(ctx, path, m.results)
}

type target struct {
	m      *Manager
	logger *slog.Logger
}

func (t *target) SetCondition(name string, v value.Value) error {
	c, ok := t.m.Condition(name)
	if !ok {
		return configError(nil, "unknown condition %q", name)
	}
	t.m.metrics.operation(kindCondition)
	t.logger.Debug("set condition", "condition", name, "value", v)
	err := c.SetSetpoint(v)
	t.m.observe(&schedule.SetCondition{Name: name, Value: v}, err)
	return err
}

func (t *target) RunMeasurement(op *schedule.RunMeasurement) error {
	meas, ok := t.m.Measurement(op.Name)
	if !ok {
		return configError(nil, "unknown measurement %q", op.Name)
	}
	t.m.metrics.operation(kindMeasurement)
	t.logger.Debug("run measurement", "measurement", op.Name, "stage", op.Stage.String(), "conditions", op.Conditions.String())
	err := meas.Run(op.Conditions)
	if err != nil {
		t.m.metrics.failure(op.Name)
	}
	t.m.observe(op, err)
	return err
}
