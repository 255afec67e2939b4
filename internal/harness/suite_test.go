package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExpandScenarios tests directory expansion, sorting and dedupe.
func TestExpandScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0755))

	files, err := ExpandScenarios([]string{dir, filepath.Join(dir, "b.yaml")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, files)
}

// TestExpandScenarios_NotFound tests the typed missing-path error.
func TestExpandScenarios_NotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	_, err := ExpandScenarios([]string{missing})

	var notFound *ScenarioNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, missing, notFound.Path)
	assert.Contains(t, err.Error(), "does not exist")
}

// TestRunSuite_Failures tests that load, boot and assertion failures are
// counted without aborting the suite.
func TestRunSuite_Failures(t *testing.T) {
	dir := t.TempDir()
	content, err := filepath.Abs(testContent)
	require.NoError(t, err)

	files := map[string]string{
		"1_bad_yaml.yaml": "name: [",
		"2_no_content.yaml": `
name: no_content
description: strict boot without content
steps: [{ tick: { dt: 1 } }]
assertions: [{ type: active_actions }]
`,
		"3_failing.yaml": `
name: failing
description: wrong lock count
content: ` + content + `
steps: [{ tick: { dt: 1 } }]
assertions: [{ type: lock_count, tag: Lock.Combat, count: 1 }]
`,
		"4_passing.yaml": `
name: passing
description: nothing active
content: ` + content + `
steps: [{ tick: { dt: 1 } }]
assertions: [{ type: active_actions, actions: [] }]
`,
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0644))
	}

	result, err := RunSuite(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 4, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 3, result.Failed)
	assert.False(t, result.AllPassed())
	require.Len(t, result.Failures, 3)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
	assert.Contains(t, result.Failures[1].Error, "scenario execution failed")
	assert.Contains(t, result.Failures[2].Error, "scenario assertions failed")
	assert.Equal(t, "failing", result.Failures[2].Name)
}
