package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace with the golden file of the same name.
//
// To regenerate golden files:
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"bench_sweep", "bench_sweep.yaml"},
		{"stress_failure", "stress_failure.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", tt.file))
			require.NoError(t, err)
			assert.Equal(t, tt.name, scenario.Name)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestSnapshotOmitsErrorMessages(t *testing.T) {
	data, err := Snapshot("sample", sampleResult(t))
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"run_failed": true`)
	assert.Contains(t, s, `"failed": true`)
	assert.NotContains(t, s, "compliance")
	assert.Equal(t, byte('\n'), data[len(data)-1])
}
