package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDemoScenarios runs the shipped scenarios and compares their traces
// against golden files.
func TestDemoScenarios(t *testing.T) {
	tests := []struct {
		name         string
		scenarioPath string
	}{
		{
			name:         "sprint_exhaustion",
			scenarioPath: "../../testdata/scenarios/sprint_exhaustion.yaml",
		},
		{
			name:         "combat_cancels_sprint",
			scenarioPath: "../../testdata/scenarios/combat_cancels_sprint.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			absPath, err := filepath.Abs(tt.scenarioPath)
			require.NoError(t, err, "failed to get absolute path")

			scenario, err := LoadScenario(absPath)
			require.NoError(t, err, "failed to load scenario from %s", tt.scenarioPath)

			assert.Equal(t, tt.name, scenario.Name, "scenario name mismatch")
			assert.NotEmpty(t, scenario.Description, "scenario should have description")
			assert.NotEmpty(t, scenario.SessionID, "scenario should have session_id")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed: %v", result.Errors)
		})
	}
}

// TestDemoScenarios_Suite runs the scenario directory as a suite.
func TestDemoScenarios_Suite(t *testing.T) {
	result, err := RunSuite(t.Context(), []string{"../../testdata/scenarios"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalScenarios)
	assert.Equal(t, 2, result.Passed)
	assert.True(t, result.AllPassed(), "failures: %v", result.Failures)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "combat_cancels_sprint", result.Results[0].Name)
}
