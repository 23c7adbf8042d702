package component

import (
	"fmt"
	"slices"

	"github.com/roach88/labseq/internal/value"
)

// Driver connects a condition to the instrument that realises it, e.g. a
// climate chamber for temperature. The driver typically holds a handle
// obtained from the resource resolver.
type Driver interface {
	// Setpoint returns the last requested value.
	Setpoint() (value.Value, error)
	// SetSetpoint drives the instrument to v.
	SetSetpoint(v value.Value) error
	// Actual reads the instrument. It may differ from the setpoint.
	Actual() (value.Value, error)
}

// Condition is a swept experimental parameter.
type Condition struct {
	Base
	values []value.Value
	driver Driver
}

// NewCondition declares a condition sweeping values in order.
func NewCondition(name string, values []value.Value, driver Driver, opts ...Option) (*Condition, error) {
	if name == "" {
		return nil, fmt.Errorf("condition name must not be empty")
	}
	if driver == nil {
		return nil, fmt.Errorf("condition %q: driver is required", name)
	}
	for i, v := range values {
		if v == nil {
			return nil, fmt.Errorf("condition %q: value %d is missing", name, i)
		}
	}
	return &Condition{
		Base:   newBase(name, applyOptions(opts)),
		values: slices.Clone(values),
		driver: driver,
	}, nil
}

// Values returns the sweep domain.
func (c *Condition) Values() []value.Value {
	return slices.Clone(c.values)
}

// SetValues replaces the sweep domain.
func (c *Condition) SetValues(values []value.Value) {
	c.values = slices.Clone(values)
}

// Setpoint returns the driver's current setpoint.
func (c *Condition) Setpoint() (value.Value, error) {
	return c.driver.Setpoint()
}

// SetSetpoint always writes through to the driver, even when v equals the
// current setpoint.
func (c *Condition) SetSetpoint(v value.Value) error {
	c.logger.Debug("setpoint", "value", v)
	if err := c.driver.SetSetpoint(v); err != nil {
		return fmt.Errorf("condition %q: set %v: %w", c.name, v, err)
	}
	return nil
}

// Actual reads the driver. Nothing is cached.
func (c *Condition) Actual() (value.Value, error) {
	return c.driver.Actual()
}
