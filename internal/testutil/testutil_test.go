package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoPath_FindsModuleRoot(t *testing.T) {
	_, err := os.Stat(RepoPath(t, "go.mod"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(RepoPath(t)))
}

func TestFixtureDirs(t *testing.T) {
	info, err := os.Stat(filepath.Join(ContentDir(t), "Omni", "Data"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(filepath.Join(ScenariosDir(t), "sprint_exhaustion.yaml"))
	assert.NoError(t, err)
}

func TestConstantGenerator(t *testing.T) {
	gen := NewConstantGenerator("run-1")
	for range 3 {
		assert.Equal(t, "run-1", gen.Generate())
	}
	assert.Equal(t, "test-token-default", NewConstantGenerator("").Generate())
}

func TestLogger_Discards(t *testing.T) {
	logger := Logger()
	require.NotNil(t, logger)
	logger.Error("dropped", "key", "value")
}
