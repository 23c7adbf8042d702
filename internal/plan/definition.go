package plan

import (
	"fmt"

	"github.com/roach88/labseq/internal/component"
	"github.com/roach88/labseq/internal/manager"
	"github.com/roach88/labseq/internal/resource"
	"github.com/roach88/labseq/internal/schedule"
	"github.com/roach88/labseq/internal/service"
	"github.com/roach88/labseq/internal/value"
)

// DriverFunc supplies the instrument driver of a condition. The resolver
// is the manager's, so the function may look up spec.Resource.
type DriverFunc func(spec ConditionSpec, r *resource.Resolver) (component.Driver, error)

// ActualService names the service through which a plan condition offers
// its instrument reading.
func ActualService(condition string) string {
	return condition + ".actual"
}

// ActualVariable names the variable a measurement stores a recorded
// condition reading under.
func ActualVariable(condition string) string {
	return condition + "_actual"
}

// Definition turns the plan into a manager definition. Plan measurements
// do no instrument work of their own: each visit stores the readings
// listed in Record and fails where FailAt matches.
func (p *Plan) Definition(drivers DriverFunc) manager.Definition {
	def := manager.Definition{Name: p.Name}
	for _, spec := range p.Conditions {
		def.Conditions = append(def.Conditions, conditionFactory(spec, drivers))
	}
	for _, spec := range p.Measurements {
		def.Measurements = append(def.Measurements, measurementFactory(spec))
	}
	return def
}

// Options returns the manager options the plan itself sets: offline mode,
// config and information entries.
func (p *Plan) Options() []manager.Option {
	opts := []manager.Option{
		manager.WithOffline(p.Offline),
		manager.WithConfig(component.Config(p.Config)),
	}
	for _, name := range sortedKeys(p.Information) {
		opts = append(opts, manager.WithInformation(name, p.Information[name]))
	}
	return opts
}

// NewManager validates the plan and constructs its manager.
func (p *Plan) NewManager(drivers DriverFunc, opts ...manager.Option) (*manager.Manager, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return manager.New(p.Definition(drivers), append(p.Options(), opts...)...)
}

func conditionFactory(spec ConditionSpec, drivers DriverFunc) manager.ConditionFactory {
	return func(r *resource.Resolver) (*component.Condition, error) {
		values, err := value.List(spec.Values...)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", spec.Name, err)
		}
		drv, err := drivers(spec, r)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", spec.Name, err)
		}

		var c *component.Condition
		actual := service.Service{
			Name: ActualService(spec.Name),
			Func: func(...any) (any, error) { return c.Actual() },
		}
		opts := []component.Option{component.WithServices(actual)}
		if spec.Kind != "" {
			opts = append(opts, component.WithKind(spec.Kind))
		}
		if spec.Disabled {
			opts = append(opts, component.Disabled())
		}
		c, err = component.NewCondition(spec.Name, values, drv, opts...)
		return c, err
	}
}

func measurementFactory(spec MeasurementSpec) manager.MeasurementFactory {
	return func(*resource.Resolver) (*component.Measurement, error) {
		failAt, err := value.FromMap(spec.FailAt)
		if err != nil {
			return nil, fmt.Errorf("measurement %q: fail_at: %w", spec.Name, err)
		}

		var opts []component.Option
		if spec.Kind != "" {
			opts = append(opts, component.WithKind(spec.Kind))
		}
		if spec.Disabled {
			opts = append(opts, component.Disabled())
		}
		if len(spec.Config) > 0 {
			opts = append(opts, component.WithConfig(component.Config(spec.Config)))
		}
		m, err := component.NewMeasurement(spec.Name, sequence(spec.Record, failAt), opts...)
		if err != nil {
			return nil, err
		}
		if err := applyStages(m, spec.Stages); err != nil {
			return nil, fmt.Errorf("measurement %q: %w", spec.Name, err)
		}
		return m, nil
	}
}

// applyStages enables the declared stages. SETUP and AFTER rules disable
// MAIN as they are added; Main, when set, is applied last.
func applyStages(m *component.Measurement, st StagesSpec) error {
	if st.Startup {
		m.RunOnStartup(true)
	}
	if st.Teardown {
		m.RunOnTeardown(true)
	}
	for _, cond := range sortedKeys(st.Setup) {
		trig, err := schedule.ParseTrigger(st.Setup[cond])
		if err != nil {
			return fmt.Errorf("setup %q: %w", cond, err)
		}
		m.RunOnSetup(cond, trig)
	}
	for _, cond := range sortedKeys(st.After) {
		trig, err := schedule.ParseTrigger(st.After[cond])
		if err != nil {
			return fmt.Errorf("after %q: %w", cond, err)
		}
		m.RunAfter(cond, trig)
	}
	if st.Error {
		m.RunOnError()
	}
	if st.Main != nil {
		m.RunOnMain(*st.Main)
	}
	return nil
}

func sequence(record []string, failAt value.Assignments) component.SequenceFunc {
	return func(m *component.Measurement) error {
		for _, cond := range record {
			out, err := m.Call(ActualService(cond))
			if err != nil {
				return err
			}
			v, _ := out.(value.Value)
			f, ok := value.Number(v)
			if !ok {
				return fmt.Errorf("reading of %q is not numeric: %v", cond, out)
			}
			if err := m.StoreFloat(ActualVariable(cond), f); err != nil {
				return err
			}
		}
		if len(failAt) > 0 && matchesAll(m.Conditions(), failAt) {
			return fmt.Errorf("simulated failure at %s", failAt)
		}
		return nil
	}
}

func matchesAll(current, want value.Assignments) bool {
	for _, a := range want {
		v, ok := current.Get(a.Name)
		if !ok || !value.Equal(v, a.Value) {
			return false
		}
	}
	return true
}
