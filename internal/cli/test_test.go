package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
	harnessGolden    = filepath.Join("..", "harness", "testdata", "golden")
)

// scenarioDir lays out a plan and one scenario over it in a temp dir and
// returns the scenarios directory.
func scenarioDir(t *testing.T, scenario string) string {
	t.Helper()
	root := t.TempDir()
	plan, err := os.ReadFile(benchPlan)
	require.NoError(t, err)
	writeFile(t, filepath.Join(root, "plans", "bench.yaml"), string(plan))
	writeFile(t, filepath.Join(root, "scenarios", "sweep.yaml"), scenario)
	return filepath.Join(root, "scenarios")
}

const sweepScenario = `name: sweep
description: Bench sweep runs IV at every row
plan: ../plans/bench.yaml
run_id: run-sweep
assertions:
  - type: trace_count
    name: IV
    count: 4
`

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, _, err := execute(t, "test", harnessScenarios, "--golden-dir", harnessGolden)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ bench_sweep")
	assert.Contains(t, out, "✓ stress_failure")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", harnessScenarios, "--golden-dir", harnessGolden, "--filter", "bench*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, TestResult{
		Scenarios: []ScenarioResult{{Name: "bench_sweep", Pass: true}},
		Passed:    1,
		Total:     1,
	}, resp.Data)
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, _, err := execute(t, "test", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := scenarioDir(t, sweepScenario)

	out, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sweep (golden updated)")

	golden := filepath.Join(dir, "golden", "sweep.golden")
	require.FileExists(t, golden)
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name": "sweep"`)
	assert.Contains(t, string(data), `"run_id": "run-sweep"`)

	out, _, err = execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sweep\n")

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0644))
	out, _, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ sweep")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := scenarioDir(t, `name: sweep
description: Miscounted IV runs
plan: ../plans/bench.yaml
assertions:
  - type: trace_count
    name: IV
    count: 3
`)

	out, _, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "4 occurrences")
}

func TestTestCommandBrokenScenario(t *testing.T) {
	dir := scenarioDir(t, "name: sweep\nplan: ../plans/bench.yaml\n")

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ sweep.yaml")
	assert.Contains(t, out, "failed to load scenario")
}
