package forge

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/profile"
	"github.com/roach88/omni/internal/registry"
	"github.com/roach88/omni/internal/testutil"
)

const contentDir = "../../testdata/content"

func quietLogger() *slog.Logger {
	return testutil.Logger()
}

func newGolden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// maskDir replaces the output directory so reports compare across runs.
func maskDir(data []byte, dir string) []byte {
	return []byte(strings.ReplaceAll(string(data), filepath.ToSlash(dir), "<out>"))
}

func issueCodes(rep ir.Report) []string {
	out := make([]string, len(rep.Issues))
	for i, issue := range rep.Issues {
		out[i] = issue.Code
	}
	return out
}

// TestRun_OfficialManifest tests a passing run against the checked-in
// content and compares both artifacts with golden files.
func TestRun_OfficialManifest(t *testing.T) {
	out := t.TempDir()
	r := &Runner{
		Provider:  profile.NewFileProvider(contentDir),
		OutputDir: out,
		Logger:    quietLogger(),
		RunIDs:    registry.NewFixedGenerator("run-1"),
	}

	res, err := r.Run(context.Background(), ir.DefaultForgeInput())
	require.NoError(t, err)

	rep := res.Report
	require.True(t, rep.Passed, "issues: %+v", rep.Issues)
	assert.Empty(t, rep.Issues)
	assert.Equal(t, 3, rep.SystemCount)
	assert.Equal(t, 3, rep.ActionCount)
	assert.Equal(t, ir.DefaultManifestClass, rep.ManifestSource)
	assert.Len(t, rep.InputHash, 64)
	assert.Equal(t, ir.RunID("run-1", rep.InputHash), res.RunID)

	require.True(t, res.HasResolved)
	assert.Equal(t, []string{ir.SystemStatus, ir.SystemActionGate, ir.SystemMovement}, res.Resolved.InitializationOrder)

	resolved, err := os.ReadFile(filepath.Join(out, ResolvedManifestFile))
	require.NoError(t, err)
	report, err := os.ReadFile(filepath.Join(out, ReportFile))
	require.NoError(t, err)

	g := newGolden(t)
	g.Assert(t, "official_resolved", resolved)
	g.Assert(t, "official_report", maskDir(report, out))
}

// TestRun_Deterministic tests that two runs over the same input produce
// identical artifacts.
func TestRun_Deterministic(t *testing.T) {
	var outputs [][]byte
	for range 2 {
		out := t.TempDir()
		r := &Runner{Provider: profile.NewFileProvider(contentDir), OutputDir: out, Logger: quietLogger()}
		res, err := r.Run(context.Background(), ir.DefaultForgeInput())
		require.NoError(t, err)
		require.True(t, res.Report.Passed)
		data, err := os.ReadFile(filepath.Join(out, ResolvedManifestFile))
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	assert.Equal(t, outputs[0], outputs[1])
}

// TestRun_BrokenManifest tests the structural checks, the failed report
// and the removal of a stale resolved manifest.
func TestRun_BrokenManifest(t *testing.T) {
	out := t.TempDir()
	stale := filepath.Join(out, ResolvedManifestFile)
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0o644))

	r := &Runner{OutputDir: out, Logger: quietLogger()}
	in := ir.DefaultForgeInput()
	in.ManifestAsset = "testdata/manifests/broken.yaml"

	res, err := r.Run(context.Background(), in)
	require.NoError(t, err)

	rep := res.Report
	assert.False(t, rep.Passed)
	assert.False(t, res.HasResolved)
	assert.Equal(t, 5, rep.ErrorCount)
	assert.Equal(t, []string{
		CodeMissingSystemID,
		CodeDuplicateSystemID,
		CodeMissingSystemClass,
		CodeMissingDependency,
		CodeMissingDependency,
	}, issueCodes(rep))
	assert.Equal(t, NotGenerated, rep.OutputResolvedManifestPath)
	assert.NoFileExists(t, stale)

	report, err := os.ReadFile(filepath.Join(out, ReportFile))
	require.NoError(t, err)
	newGolden(t).Assert(t, "broken_report", maskDir(report, out))
}

// TestRun_DependencyCycle tests that a cycle names only the stalled systems.
func TestRun_DependencyCycle(t *testing.T) {
	r := &Runner{SkipArtifacts: true, Logger: quietLogger()}
	in := ir.DefaultForgeInput()
	in.ManifestAsset = "testdata/manifests/cycle.cue"

	res, err := r.Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, []string{CodeDependencyCycle}, issueCodes(res.Report))
	issue := res.Report.Issues[0]
	assert.Equal(t, "Dependency cycle detected among systems: A, B", issue.Message)
	assert.Equal(t, "Manifest.Systems.Dependencies", issue.Location)
	assert.Equal(t, 3, res.Report.SystemCount)
}

// TestRun_EmptyManifest tests that a manifest without enabled systems fails.
func TestRun_EmptyManifest(t *testing.T) {
	r := &Runner{SkipArtifacts: true, Logger: quietLogger()}
	in := ir.DefaultForgeInput()
	in.ManifestAsset = "testdata/manifests/empty.yaml"

	res, err := r.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{CodeEmptyManifest}, issueCodes(res.Report))
	assert.Equal(t, "Manifest contains zero enabled systems.", res.Report.Issues[0].Message)
	assert.NotEmpty(t, res.Report.InputHash, "normalize succeeded before validation failed")
}

// TestRun_ManifestSourceErrors tests missing assets, wrong document kinds
// and unknown classes.
func TestRun_ManifestSourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   ir.ForgeInput
		code    string
		message string
	}{
		{
			name:    "missing asset",
			input:   ir.ForgeInput{ManifestAsset: "testdata/manifests/nope.yaml"},
			code:    CodeMissingAsset,
			message: "Manifest asset not found: testdata/manifests/nope.yaml",
		},
		{
			name:    "wrong kind",
			input:   ir.ForgeInput{ManifestAsset: "testdata/manifests/not_a_manifest.yaml"},
			code:    CodeTypeMismatch,
			message: "Manifest asset type mismatch: testdata/manifests/not_a_manifest.yaml is 'ActionLibrary' (expected Manifest).",
		},
		{
			name:    "unknown class",
			input:   ir.ForgeInput{ManifestClass: "Omni.Missing"},
			code:    CodeTypeMismatch,
			message: "Manifest class path is invalid: Omni.Missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Runner{SkipArtifacts: true, Logger: quietLogger()}
			res, err := r.Run(context.Background(), tt.input)
			require.NoError(t, err)
			require.Equal(t, []string{tt.code}, issueCodes(res.Report))
			assert.Equal(t, tt.message, res.Report.Issues[0].Message)
			assert.Empty(t, res.Report.InputHash)
			assert.False(t, res.Report.Passed)
		})
	}
}

const (
	testActionLibrary   = "/Game/Omni/Data/Action/DA_Lib.DA_Lib"
	testStatusLibrary   = "/Game/Omni/Data/Status/DA_Lib.DA_Lib"
	testMovementLibrary = "/Game/Omni/Data/Movement/DA_Lib.DA_Lib"
)

func validContent() *profile.Memory {
	return profile.NewMemory().
		Put(ir.DefaultProfilePath(ir.SystemActionGate), &profile.ActionProfile{LibraryPath: testActionLibrary}).
		Put(testActionLibrary, &profile.ActionLibrary{Definitions: []profile.ActionDefinition{
			{ActionID: "Movement.Sprint", Enabled: true, BlockedBy: []string{"State.Exhausted"}},
		}}).
		Put(ir.DefaultProfilePath(ir.SystemStatus), &profile.StatusProfile{LibraryPath: testStatusLibrary}).
		Put(testStatusLibrary, &profile.StatusLibrary{Settings: profile.DefaultStatusSettings()}).
		Put(ir.DefaultProfilePath(ir.SystemMovement), &profile.MovementProfile{LibraryPath: testMovementLibrary}).
		Put(testMovementLibrary, &profile.MovementLibrary{Settings: profile.DefaultMovementSettings()})
}

// officialWith returns a builtin lookup serving a modified official manifest.
func officialWith(mutate func(m *ir.Manifest)) func(string) (*ir.Manifest, bool) {
	return func(class string) (*ir.Manifest, bool) {
		m, ok := ir.BuiltinManifest(class)
		if ok && mutate != nil {
			mutate(m)
		}
		return m, ok
	}
}

func setSetting(systemID, key, value string) func(m *ir.Manifest) {
	return func(m *ir.Manifest) {
		e := m.FindEntry(systemID)
		if value == "" {
			delete(e.Settings, key)
			return
		}
		e.Settings[key] = value
	}
}

// TestRun_ProfileRules tests the per-system profile checks.
func TestRun_ProfileRules(t *testing.T) {
	actionPath := ir.DefaultProfilePath(ir.SystemActionGate)
	statusPath := ir.DefaultProfilePath(ir.SystemStatus)

	tests := []struct {
		name     string
		mutate   func(m *ir.Manifest)
		content  func(c *profile.Memory)
		codes    []string
		message  string
		location string
	}{
		{
			name:     "missing setting",
			mutate:   setSetting(ir.SystemActionGate, ir.SettingActionProfile, ""),
			codes:    []string{CodeMissingSetting},
			message:  "Missing required setting 'ActionProfileAssetPath' for system 'ActionGate'.",
			location: "SystemId=ActionGate Setting=ActionProfileAssetPath",
		},
		{
			name:     "path outside game root",
			mutate:   setSetting(ir.SystemStatus, ir.SettingStatusProfile, `Content\\Status.Status`),
			codes:    []string{CodeInvalidPath},
			message:  "Invalid profile asset path 'Content/Status.Status' for system 'Status'.",
			location: "SystemId=Status Setting=StatusProfileAssetPath",
		},
		{
			name:    "malformed path",
			mutate:  setSetting(ir.SystemStatus, ir.SettingStatusProfile, "/Game/Omni/"),
			codes:   []string{CodeInvalidPath},
			message: "Malformed profile object path '/Game/Omni/' for system 'Status'.",
		},
		{
			name:    "missing profile",
			mutate:  setSetting(ir.SystemActionGate, ir.SettingActionProfile, "/Game/Missing/P.P"),
			codes:   []string{CodeMissingAsset},
			message: "Profile asset not found for system 'ActionGate': /Game/Missing/P.P",
		},
		{
			name: "wrong profile kind",
			content: func(c *profile.Memory) {
				c.Put(actionPath, &profile.StatusProfile{LibraryPath: testStatusLibrary})
			},
			codes:   []string{CodeTypeMismatch},
			message: "Profile '" + actionPath + "' is 'StatusProfile' (expected ActionProfile).",
		},
		{
			name: "null library",
			content: func(c *profile.Memory) {
				c.Put(actionPath, &profile.ActionProfile{})
			},
			codes:   []string{CodeNullLibrary},
			message: "Profile '" + actionPath + "' has null ActionLibrary.",
		},
		{
			name: "missing library",
			content: func(c *profile.Memory) {
				c.Put(actionPath, &profile.ActionProfile{LibraryPath: "/Game/Nope.Nope"})
			},
			codes:   []string{CodeMissingAsset},
			message: "ActionLibrary not found for profile '" + actionPath + "': /Game/Nope.Nope",
		},
		{
			name: "wrong library kind",
			content: func(c *profile.Memory) {
				c.Put(actionPath, &profile.ActionProfile{LibraryPath: testStatusLibrary})
			},
			codes:   []string{CodeTypeMismatch},
			message: "ActionLibrary '" + testStatusLibrary + "' is 'StatusLibrary' (expected ActionLibrary).",
		},
		{
			name: "zero definitions",
			content: func(c *profile.Memory) {
				c.Put(testActionLibrary, &profile.ActionLibrary{})
			},
			codes:   []string{CodeInvalidProfileConfig},
			message: "Action profile '" + actionPath + "' resolved zero definitions.",
		},
		{
			name: "definition issues",
			content: func(c *profile.Memory) {
				c.Put(testActionLibrary, &profile.ActionLibrary{Definitions: []profile.ActionDefinition{
					{ActionID: " "},
					{ActionID: "Input.Jump"},
					{ActionID: "Movement.Sprint"},
					{ActionID: "Movement.Sprint"},
				}})
			},
			codes: []string{CodeEmptyActionID, CodeInvalidActionIDPrefix, CodeDuplicateActionID},
		},
		{
			name: "invalid status settings",
			content: func(c *profile.Memory) {
				c.Put(testStatusLibrary, &profile.StatusLibrary{})
			},
			codes: []string{CodeInvalidProfileConfig},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := validContent()
			if tt.content != nil {
				tt.content(content)
			}
			r := &Runner{
				Provider:      content,
				Builtins:      officialWith(tt.mutate),
				SkipArtifacts: true,
				Logger:        quietLogger(),
			}
			res, err := r.Run(context.Background(), ir.DefaultForgeInput())
			require.NoError(t, err)
			require.Equal(t, tt.codes, issueCodes(res.Report))
			assert.False(t, res.Report.Passed)
			if tt.message != "" {
				assert.Equal(t, tt.message, res.Report.Issues[0].Message)
			}
			if tt.location != "" {
				assert.Equal(t, tt.location, res.Report.Issues[0].Location)
			}
		})
	}

	t.Run("status settings message", func(t *testing.T) {
		content := validContent().Put(testStatusLibrary, &profile.StatusLibrary{})
		r := &Runner{Provider: content, SkipArtifacts: true, Logger: quietLogger()}
		res, err := r.Run(context.Background(), ir.DefaultForgeInput())
		require.NoError(t, err)
		require.NotEmpty(t, res.Report.Issues)
		assert.True(t, strings.HasPrefix(res.Report.Issues[0].Message,
			"Status profile '"+statusPath+"' has no valid resolved settings ("))
	})
}

// TestRun_WarningsDoNotBlock tests that an ignored empty action id still
// yields a passing run.
func TestRun_WarningsDoNotBlock(t *testing.T) {
	content := validContent().Put(testActionLibrary, &profile.ActionLibrary{Definitions: []profile.ActionDefinition{
		{ActionID: ""},
		{ActionID: "Movement.Sprint", Enabled: true, Cancels: []string{"B", " A ", "B"}},
	}})
	r := &Runner{Provider: content, SkipArtifacts: true, Logger: quietLogger()}

	res, err := r.Run(context.Background(), ir.DefaultForgeInput())
	require.NoError(t, err)
	assert.True(t, res.Report.Passed)
	assert.Equal(t, 1, res.Report.WarningCount)
	assert.Equal(t, 1, res.Report.ActionCount)
	require.True(t, res.HasResolved)
	assert.Equal(t, []string{"A", "B"}, res.Resolved.ActionDefinitions[0].Cancels)
	assert.Equal(t, NotGenerated, res.Report.OutputResolvedManifestPath)
	assert.Equal(t, NotGenerated, res.Report.OutputReportPath)
}

// TestRun_WithoutContentChecks tests that profiles only need valid paths
// when content assets are not required.
func TestRun_WithoutContentChecks(t *testing.T) {
	r := &Runner{SkipArtifacts: true, Logger: quietLogger()}
	in := ir.DefaultForgeInput()
	in.RequireContentAssets = false

	res, err := r.Run(context.Background(), in)
	require.NoError(t, err)
	require.True(t, res.Report.Passed, "issues: %+v", res.Report.Issues)
	assert.Equal(t, 0, res.Report.ActionCount)
	require.Len(t, res.Resolved.Profiles, 3)
	p := res.Resolved.Profiles[0]
	assert.Equal(t, ir.SystemActionGate, p.SystemID)
	assert.Equal(t, ir.DefaultProfilePath(ir.SystemActionGate), p.ProfileAssetPath)
	assert.Empty(t, p.ProfileClassPath)
}

// TestRun_NoProvider tests that content checks without a provider fail.
func TestRun_NoProvider(t *testing.T) {
	r := &Runner{SkipArtifacts: true, Logger: quietLogger()}
	res, err := r.Run(context.Background(), ir.DefaultForgeInput())
	require.NoError(t, err)
	assert.Equal(t, []string{CodeInternal, CodeInternal, CodeInternal}, issueCodes(res.Report))
}

type recorder struct {
	runID  string
	report *ir.Report
}

func (r *recorder) RecordRun(_ context.Context, runID string, report *ir.Report) error {
	r.runID = runID
	r.report = report
	return nil
}

// TestRun_RecordsToStore tests that finished runs reach the recorder.
func TestRun_RecordsToStore(t *testing.T) {
	rec := &recorder{}
	r := &Runner{
		Provider:      profile.NewFileProvider(contentDir),
		SkipArtifacts: true,
		Logger:        quietLogger(),
		Store:         rec,
		RunIDs:        registry.NewFixedGenerator("run-7"),
	}
	res, err := r.Run(context.Background(), ir.DefaultForgeInput())
	require.NoError(t, err)
	assert.Equal(t, res.RunID, rec.runID)
	require.NotNil(t, rec.report)
	assert.True(t, rec.report.Passed)
}

// TestRun_Canceled tests that a canceled context stops the run.
func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Runner{}).Run(ctx, ir.DefaultForgeInput())
	assert.ErrorIs(t, err, context.Canceled)
}

// TestRun_GenerationRoot tests that the root is normalized into the
// resolved manifest.
func TestRun_GenerationRoot(t *testing.T) {
	r := &Runner{SkipArtifacts: true, Logger: quietLogger()}
	in := ir.DefaultForgeInput()
	in.GenerationRoot = `Game\\Content//Omni/`
	in.RequireContentAssets = false

	res, err := r.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "/Game/Content/Omni", res.Resolved.GenerationRoot)
}

// TestFileManifests_ObjectPath tests loading a manifest through the
// content directory.
func TestFileManifests_ObjectPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Omni", "Manifests"), 0o755))
	doc := "kind: Manifest\nnamespace: Test\nsystems:\n  - systemId: A\n    systemClass: /Script/Test.A\n  - systemId: B\n    systemClass: /Script/Test.B\n    enabled: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Omni", "Manifests", "M.yaml"), []byte(doc), 0o644))

	m, err := FileManifests{ContentDir: dir}.LoadManifest("/Game/Omni/Manifests/M.M")
	require.NoError(t, err)
	assert.Equal(t, "Test", m.Namespace)
	require.Len(t, m.Systems, 2)
	assert.True(t, m.Systems[0].Enabled, "enabled defaults to true")
	assert.False(t, m.Systems[1].Enabled)

	_, err = FileManifests{ContentDir: dir}.LoadManifest("/Game/Omni/Manifests/Missing.Missing")
	assert.True(t, profile.IsNotFound(err))
}
