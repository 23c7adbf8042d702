package plan

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan is a declarative test sequence.
//
// Both the YAML and the CUE loader fill the same struct: YAML through the
// yaml tags, CUE through the json tags.
type Plan struct {
	// Name identifies the sequence; it names the manager and its results.
	Name string `yaml:"name" json:"name" validate:"required,label"`

	// Description is free text shown by inspect.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Offline makes missing instrument resources resolve to nil.
	Offline bool `yaml:"offline,omitempty" json:"offline,omitempty"`

	// Config is inherited by every component.
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`

	// Information entries are added to the aggregate results.
	Information map[string]any `yaml:"information,omitempty" json:"information,omitempty"`

	// Conditions in sweep order: the first varies slowest.
	Conditions []ConditionSpec `yaml:"conditions,omitempty" json:"conditions,omitempty" validate:"dive"`

	// Measurements in tie-break order.
	Measurements []MeasurementSpec `yaml:"measurements" json:"measurements" validate:"required,min=1,dive"`

	// Rows replaces the Cartesian product of the conditions when set.
	Rows []map[string]any `yaml:"rows,omitempty" json:"rows,omitempty"`
}

// ConditionSpec declares one condition.
type ConditionSpec struct {
	Name     string `yaml:"name" json:"name" validate:"required,label"`
	Values   []any  `yaml:"values" json:"values" validate:"required,min=1"`
	Kind     string `yaml:"kind,omitempty" json:"kind,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	// Resource names the instrument handle the condition drives.
	Resource string `yaml:"resource,omitempty" json:"resource,omitempty"`

	// Offset is added to numeric setpoints by simulated instruments.
	Offset float64 `yaml:"offset,omitempty" json:"offset,omitempty"`

	// FailOn makes a simulated instrument refuse this setpoint.
	FailOn any `yaml:"fail_on,omitempty" json:"fail_on,omitempty"`
}

// MeasurementSpec declares one measurement.
type MeasurementSpec struct {
	Name     string         `yaml:"name" json:"name" validate:"required,label"`
	Kind     string         `yaml:"kind,omitempty" json:"kind,omitempty"`
	Disabled bool           `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Config   map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
	Stages   StagesSpec     `yaml:"stages,omitempty" json:"stages,omitempty"`

	// Record lists conditions whose actual value the measurement stores,
	// as the variable "<condition>_actual".
	Record []string `yaml:"record,omitempty" json:"record,omitempty" validate:"dive,required"`

	// FailAt makes the measurement fail whenever the current conditions
	// include every entry.
	FailAt map[string]any `yaml:"fail_at,omitempty" json:"fail_at,omitempty"`
}

// StagesSpec lists the stages a measurement runs in. Setup and After map
// condition names to triggers: null or "EVERY", "FIRST_TIME", "LAST_TIME",
// or a value to match exactly. Any SETUP or AFTER rule, STARTUP or
// TEARDOWN removes MAIN unless Main says otherwise.
type StagesSpec struct {
	Startup  bool           `yaml:"startup,omitempty" json:"startup,omitempty"`
	Teardown bool           `yaml:"teardown,omitempty" json:"teardown,omitempty"`
	Setup    map[string]any `yaml:"setup,omitempty" json:"setup,omitempty"`
	After    map[string]any `yaml:"after,omitempty" json:"after,omitempty"`
	Error    bool           `yaml:"error,omitempty" json:"error,omitempty"`

	// Main overrides the MAIN stage after the other stages are applied.
	// Unset keeps the default: MAIN unless another stage removed it.
	Main *bool `yaml:"main,omitempty" json:"main,omitempty"`
}

// Load reads a plan, choosing the format by extension (.yaml, .yml or
// .cue), and validates it.
func Load(path string) (*Plan, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".cue":
		return LoadCUE(path)
	default:
		return nil, fmt.Errorf("unsupported plan file %s: want .yaml, .yml or .cue", path)
	}
}

// LoadYAML reads and validates a YAML plan. Unknown fields are rejected.
func LoadYAML(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes and validates a YAML plan.
func ParseYAML(data []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
