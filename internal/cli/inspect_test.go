package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// savedBench dry-runs the bench plan and returns the saved results path.
func savedBench(t *testing.T) string {
	t.Helper()
	saved := filepath.Join(t.TempDir(), "results.json")
	_, _, err := execute(t, "dryrun", benchPlan, "--run-id", "run-cli", "--save", saved)
	require.NoError(t, err)
	return saved
}

func TestInspectSummary(t *testing.T) {
	saved := savedBench(t)

	out, _, err := execute(t, "--format", "json", "inspect", saved)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	assert.Contains(t, resp.Data.Coordinates, CoordinateSummary{Name: "T", Values: []string{"25", "85"}})
	assert.Contains(t, resp.Data.Coordinates, CoordinateSummary{Name: "V", Values: []string{"1", "2"}})
	assert.Contains(t, resp.Data.Coordinates, CoordinateSummary{Name: "serial", Values: []string{"SN-0042"}})
	assert.Contains(t, resp.Data.Coordinates, CoordinateSummary{Name: "run_id", Values: []string{"run-cli"}})
	assert.Equal(t, []VariableSummary{
		{Name: "T_actual", Dims: []string{"T", "V"}, Shape: []int{2, 2}, Provenance: "Electrical"},
		{Name: "V_actual", Dims: []string{"T", "V"}, Shape: []int{2, 2}, Provenance: "Electrical"},
	}, resp.Data.Variables)
}

func TestInspectSummaryText(t *testing.T) {
	saved := savedBench(t)

	out, _, err := execute(t, "inspect", saved)
	require.NoError(t, err)
	assert.Contains(t, out, "COORDINATE")
	assert.Contains(t, out, "25, 85")
	assert.Contains(t, out, "VARIABLE")
	assert.Contains(t, out, "T_actual")
	assert.Contains(t, out, "Electrical")
}

func TestInspectVariable(t *testing.T) {
	saved := savedBench(t)

	out, _, err := execute(t, "--format", "json", "inspect", saved, "--variable", "T_actual", "--at", "T=85")
	require.NoError(t, err)

	var resp struct {
		Data SliceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []int{2}, resp.Data.Shape)
	require.Len(t, resp.Data.Data, 2)
	for _, x := range resp.Data.Data {
		require.NotNil(t, x)
		assert.InDelta(t, 85.5, *x, 1e-9)
	}
}

func TestInspectVariableText(t *testing.T) {
	saved := savedBench(t)

	out, _, err := execute(t, "inspect", saved, "--variable", "V_actual", "--at", "T=25", "--at", "V=2")
	require.NoError(t, err)
	assert.Equal(t, "V_actual []\n  2\n", out)
}

func TestInspectErrors(t *testing.T) {
	saved := savedBench(t)

	tests := []struct {
		name     string
		args     []string
		wantExit int
		wantText string
	}{
		{"missing file", []string{"inspect", filepath.Join(t.TempDir(), "none.json")}, ExitCommandError, ErrCodeNotFound},
		{"wrong extension", []string{"inspect", benchPlan}, ExitCommandError, "BAD_EXTENSION"},
		{"pin without variable", []string{"inspect", saved, "--at", "T=25"}, ExitCommandError, "--at requires --variable"},
		{"malformed pin", []string{"inspect", saved, "--variable", "T_actual", "--at", "T"}, ExitCommandError, "want NAME=VALUE"},
		{"unknown value", []string{"inspect", saved, "--variable", "T_actual", "--at", "T=150"}, ExitFailure, "no value 150"},
		{"unknown variable", []string{"inspect", saved, "--variable", "P"}, ExitFailure, "P"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.Contains(t, out, tt.wantText)
		})
	}
}

func TestParsePins(t *testing.T) {
	dims, err := parsePins([]string{"T=25", "V=2.5", "mode=dark"})
	require.NoError(t, err)
	require.Len(t, dims, 3)
	assert.Equal(t, "25", dims[0].Value.String())
	assert.Equal(t, "2.5", dims[1].Value.String())
	assert.Equal(t, "dark", dims[2].Value.String())
	for _, d := range dims {
		assert.True(t, d.Pinned())
	}

	_, err = parsePins([]string{"T=[1, 2]"})
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	saved := savedBench(t)
	workbook := filepath.Join(t.TempDir(), "bench.db")

	out, _, err := execute(t, "export", saved, workbook)
	require.NoError(t, err)
	assert.Equal(t, "✓ Exported 2 variable(s) to "+workbook+"\n", out)
	assert.FileExists(t, workbook)

	out, _, err = execute(t, "--format", "json", "export", saved, workbook)
	require.NoError(t, err)
	var resp struct {
		Data ExportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ExportResult{Workbook: workbook, Variables: []string{"T_actual", "V_actual"}}, resp.Data)
}

func TestExportErrors(t *testing.T) {
	saved := savedBench(t)

	tests := []struct {
		name     string
		args     []string
		wantText string
	}{
		{"missing results", []string{"export", filepath.Join(t.TempDir(), "none.json"), filepath.Join(t.TempDir(), "out.db")}, ErrCodeNotFound},
		{"wrong workbook extension", []string{"export", saved, filepath.Join(t.TempDir(), "out.xlsx")}, "BAD_EXTENSION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.wantText)
		})
	}
}
