package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/labseq/internal/schedule"
)

// Scenario is a dry run of one plan with expectations about its trace and
// results.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Plan is the path of the plan file (.yaml or .cue).
	Plan string `yaml:"plan"`

	// Rows replaces the plan's rows when set.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Assertions validate the trace and the results.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is the fixed run ID. If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Assertion validates the trace or the results.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an operation matching op, name, stage, conditions
	// - "trace_order": names appear in order
	// - "trace_count": name appears exactly count times
	// - "final_results": variable holds expect at the pinned coordinates
	// - "run_error": the run failed with a message containing the text
	Type string `yaml:"type"`

	// Op is "set" or "run" (trace_contains). Empty matches both.
	Op string `yaml:"op,omitempty"`

	// Name is the condition or measurement name (trace_contains,
	// trace_count).
	Name string `yaml:"name,omitempty"`

	// Stage restricts trace_contains to one stage, e.g. "MAIN".
	Stage string `yaml:"stage,omitempty"`

	// Conditions are matched as a subset of the event's conditions
	// (trace_contains).
	Conditions map[string]any `yaml:"conditions,omitempty"`

	// Names is the expected order (trace_order).
	Names []string `yaml:"names,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Variable is the aggregate variable (final_results).
	Variable string `yaml:"variable,omitempty"`

	// At pins every dimension of Variable (final_results).
	At map[string]any `yaml:"at,omitempty"`

	// Expect is the expected value. Absent or null expects a missing
	// value (final_results).
	Expect *float64 `yaml:"expect"`

	// Contains is a substring of the run error (run_error).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalResults  = "final_results"
	AssertRunError      = "run_error"
)

// LoadScenario reads and parses a scenario YAML file. A relative plan
// path is resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative plan path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Plan != "" && !filepath.IsAbs(scenario.Plan) && basePath != "" {
		scenario.Plan = filepath.Join(basePath, scenario.Plan)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Plan == "" {
		return fmt.Errorf("plan is required")
	}
	if _, err := os.Stat(s.Plan); os.IsNotExist(err) {
		return fmt.Errorf("plan file not found: %s", s.Plan)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_contains", index)
		}
		if a.Op != "" && a.Op != OpSet && a.Op != OpRun {
			return fmt.Errorf("assertions[%d]: op must be %q or %q", index, OpSet, OpRun)
		}
		if a.Stage != "" {
			if _, err := schedule.ParseStage(a.Stage); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertTraceOrder:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalResults:
		if a.Variable == "" {
			return fmt.Errorf("assertions[%d]: variable is required for final_results", index)
		}
	case AssertRunError:
		// Contains may be empty: any failure matches.
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
