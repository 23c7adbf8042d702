package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labseq/internal/harness"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

type dryRunResponse struct {
	Status  string       `json:"status"`
	Data    DryRunResult `json:"data"`
	Error   *CLIError    `json:"error"`
	TraceID string       `json:"trace_id"`
}

func TestDryRunText(t *testing.T) {
	out, stderr, err := execute(t, "dryrun", benchPlan, "--run-id", "run-cli")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "dryrun_bench", []byte(out))
	assert.Contains(t, stderr, "run-cli", "logs go to stderr")
}

func TestDryRunJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "dryrun", benchPlan, "--run-id", "run-cli")
	require.NoError(t, err)

	var resp dryRunResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-cli", resp.TraceID)
	assert.Equal(t, "LaserBench", resp.Data.Plan)
	assert.Len(t, resp.Data.Trace, 13)
	assert.Equal(t, []string{"T_actual", "V_actual"}, resp.Data.Variables)
	assert.Empty(t, resp.Data.RunError)

	first := resp.Data.Trace[0]
	assert.Equal(t, harness.OpRun, first.Op)
	assert.Equal(t, "Calibrate", first.Name)
	assert.Equal(t, "STARTUP", first.Stage)
}

func TestDryRunGeneratesRunID(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "dryrun", benchPlan)
	require.NoError(t, err)

	var resp dryRunResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data.RunID, 36)
	assert.NotEqual(t, harness.DefaultRunID, resp.Data.RunID)
}

func TestDryRunRows(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "dryrun", benchPlan, "--rows", rowsFile)
	require.NoError(t, err)

	var resp dryRunResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	count := 0
	for _, ev := range resp.Data.Trace {
		if ev.Name == "IV" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestDryRunFailure(t *testing.T) {
	out, _, err := execute(t, "dryrun", failingPlan, "--run-id", "run-fail")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[4] RUN IV [MAIN] {T=85} FAILED: ")
	assert.Contains(t, out, "✗ Run failed: ")
	assert.Contains(t, out, "simulated failure")
}

func TestDryRunFailureJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "dryrun", failingPlan)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp dryRunResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRunFailed, resp.Error.Code)
	assert.Contains(t, resp.Data.RunError, "simulated failure")
	assert.Empty(t, resp.Data.Variables)

	last := resp.Data.Trace[len(resp.Data.Trace)-1]
	assert.True(t, last.Failed)
}

func TestDryRunFailureSavesNothing(t *testing.T) {
	saved := filepath.Join(t.TempDir(), "results.json")

	_, _, err := execute(t, "dryrun", failingPlan, "--save", saved)
	require.Error(t, err)
	assert.NoFileExists(t, saved)
}

func TestDryRunSaveAndWorkbook(t *testing.T) {
	dir := t.TempDir()
	saved := filepath.Join(dir, "results.json")
	workbook := filepath.Join(dir, "results.db")

	out, _, err := execute(t, "dryrun", benchPlan, "--save", saved, "--workbook", workbook)
	require.NoError(t, err)
	assert.Contains(t, out, "saved "+saved)
	assert.Contains(t, out, "saved "+workbook)
	assert.FileExists(t, saved)
	assert.FileExists(t, workbook)
}

func TestDryRunBadOutputPath(t *testing.T) {
	out, _, err := execute(t, "dryrun", benchPlan, "--save", filepath.Join(t.TempDir(), "results.txt"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodePersist+"]")
	assert.Contains(t, out, "BAD_EXTENSION")
}
