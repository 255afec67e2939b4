package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omni/internal/testutil"
)

func TestValidateOfficialManifest(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(testRootOptions("text"))
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--content", testContent})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "PASS:")
	assert.NotContains(t, buf.String(), "Resolved manifest:")
	assert.NotContains(t, buf.String(), "Report:")
}

func TestValidateDoesNotWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	content := testutil.ContentDir(t)
	t.Chdir(dir)

	cmd := NewValidateCommand(testRootOptions("text"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--content", content})
	require.NoError(t, cmd.Execute())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestValidateBrokenManifest(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := testRootOptions("text")
	opts.Verbose = true
	cmd := NewValidateCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"manifestAsset=" + brokenManifest})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "OMNI_FORGE_E003_MISSING_SYSTEMID")
	assert.Contains(t, buf.String(), "OMNI_FORGE_E022_MISSING_SYSTEMCLASS")
	// Verbose adds recommendations.
	assert.Contains(t, buf.String(), "Remove the self dependency.")
}

func TestValidateBrokenManifestJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(testRootOptions("json"))
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"manifestAsset=" + brokenManifest})

	err := cmd.Execute()
	require.Error(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   ForgeOutput `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeForgeFailed, resp.Error.Code)
	assert.Equal(t, 5, resp.Data.Report.ErrorCount)
	assert.Len(t, resp.Data.Report.Issues, 5)
}
