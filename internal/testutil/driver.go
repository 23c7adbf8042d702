// Package testutil provides deterministic test doubles: a recording
// condition driver, a fixed run ID generator and a stepping clock.
package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/labseq/internal/value"
)

// FakeDriver records every setpoint write. Actual returns the setpoint
// plus Offset for numeric values, or the setpoint itself otherwise.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FakeDriver struct {
	mu       sync.Mutex
	setpoint value.Value
	writes   []value.Value

	// Offset is added to numeric setpoints by Actual.
	Offset float64

	// FailOn makes SetSetpoint fail for values equal to it.
	FailOn value.Value
}

// NewFakeDriver returns a driver whose setpoint starts at initial (may be nil).
func NewFakeDriver(initial value.Value) *FakeDriver {
	return &FakeDriver{setpoint: initial}
}

// Setpoint returns the last written value.
func (d *FakeDriver) Setpoint() (value.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setpoint, nil
}

// SetSetpoint records v. Writes of an unchanged value are recorded too.
func (d *FakeDriver) SetSetpoint(v value.Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, v)
	if d.FailOn != nil && value.Equal(v, d.FailOn) {
		return fmt.Errorf("instrument refused setpoint %v", v)
	}
	d.setpoint = v
	return nil
}

// Actual returns the simulated reading.
func (d *FakeDriver) Actual() (value.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := value.Number(d.setpoint); ok {
		return value.Float(f + d.Offset), nil
	}
	return d.setpoint, nil
}

// Writes returns every value passed to SetSetpoint, in order.
func (d *FakeDriver) Writes() []value.Value {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]value.Value, len(d.writes))
	copy(out, d.writes)
	return out
}
