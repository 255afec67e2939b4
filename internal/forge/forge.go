// Package forge resolves a manifest into the ResolvedManifest.json artifact
// and a ForgeReport.md.
//
// A run moves through five phases:
//
//	Normalize -> Validate -> Resolve -> Generate -> Report
//
// Every phase after Normalize is skipped once the report holds an error,
// except Report, which always runs. Warnings never block generation.
package forge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/omni/internal/depgraph"
	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/profile"
	"github.com/roach88/omni/internal/registry"
)

// Artifact file names and the default output directory.
const (
	ResolvedManifestFile = "ResolvedManifest.json"
	ReportFile           = "ForgeReport.md"
	DefaultOutputDir     = "Saved/Omni"

	// NotGenerated replaces an output path that was not written.
	NotGenerated = "(not generated)"
)

// RunRecorder persists finished runs. Implemented by store.Store.
type RunRecorder interface {
	RecordRun(ctx context.Context, runID string, report *ir.Report) error
}

// IDGenerator produces the token a run id is derived from.
// registry.UUIDv7Generator and registry.FixedGenerator both satisfy it.
type IDGenerator interface {
	Generate() string
}

// Runner executes forge runs.
type Runner struct {
	// Provider serves the profile and library documents checked when
	// RequireContentAssets is set.
	Provider profile.Provider

	// Manifests loads ForgeInput.ManifestAsset references.
	Manifests ManifestLoader

	// Builtins looks up ForgeInput.ManifestClass. Defaults to
	// ir.BuiltinManifest.
	Builtins func(class string) (*ir.Manifest, bool)

	// OutputDir receives both artifacts. Defaults to DefaultOutputDir.
	OutputDir string

	// SkipArtifacts runs every phase without writing files.
	SkipArtifacts bool

	Logger *slog.Logger
	Store  RunRecorder
	RunIDs IDGenerator
}

// Result is the outcome of one run.
type Result struct {
	RunID  string
	Report ir.Report

	// Resolved is valid only when HasResolved is set.
	Resolved    ir.Resolved
	HasResolved bool
}

// Run executes all phases for in and returns the result. The report is
// produced even when the run fails; the returned error is reserved for
// cancellation and store failures.
func (r *Runner) Run(ctx context.Context, in ir.ForgeInput) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := &run{
		r:         r,
		in:        in,
		logger:    r.logger(),
		actionIDs: make(map[string]bool),
	}
	st.report.ForgeVersion = ir.ForgeVersion
	st.report.Issues = []ir.Issue{}

	st.normalize()
	st.validate()
	st.resolve()
	st.generate()
	st.finish()

	res := &Result{
		Report:      st.report,
		Resolved:    st.resolved,
		HasResolved: st.hasResolved,
	}
	gen := r.RunIDs
	if gen == nil {
		gen = registry.UUIDv7Generator{}
	}
	res.RunID = ir.RunID(gen.Generate(), st.report.InputHash)

	if r.Store != nil {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.Store.RecordRun(ctx, res.RunID, &res.Report); err != nil {
			return res, fmt.Errorf("recording forge run: %w", err)
		}
	}
	return res, nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) outputDir() string {
	if r.OutputDir != "" {
		return r.OutputDir
	}
	return DefaultOutputDir
}

func (r *Runner) builtin(class string) (*ir.Manifest, bool) {
	if r.Builtins != nil {
		return r.Builtins(class)
	}
	return ir.BuiltinManifest(class)
}

// run carries the state of a single pipeline execution.
type run struct {
	r      *Runner
	in     ir.ForgeInput
	logger *slog.Logger

	report      ir.Report
	normalized  ir.Normalized
	order       []string
	profiles    []ir.ResolvedProfile
	actions     []ir.ResolvedAction
	actionIDs   map[string]bool
	resolved    ir.Resolved
	hasResolved bool
}

// ManifestSource names the manifest a run reads: the asset reference, else
// the class, else the default class.
func ManifestSource(in ir.ForgeInput) string {
	if s := strings.TrimSpace(in.ManifestAsset); s != "" {
		return s
	}
	if s := strings.TrimSpace(in.ManifestClass); s != "" {
		return s
	}
	return ir.DefaultManifestClass
}

func (st *run) loadManifest() *ir.Manifest {
	if ref := strings.TrimSpace(st.in.ManifestAsset); ref != "" {
		return st.loadManifestAsset(ref)
	}
	class := strings.TrimSpace(st.in.ManifestClass)
	if class == "" {
		class = ir.DefaultManifestClass
	}
	m, ok := st.r.builtin(class)
	if !ok || m == nil {
		st.report.AddError(CodeTypeMismatch,
			fmt.Sprintf("Manifest class path is invalid: %s", class),
			locManifestClass,
			"Set ManifestClassPath to a registered manifest class ("+strings.Join(ir.BuiltinManifestClasses(), ", ")+").")
		return nil
	}
	return m
}

func (st *run) loadManifestAsset(ref string) *ir.Manifest {
	loader := st.r.Manifests
	if loader == nil {
		loader = FileManifests{}
	}
	m, err := loader.LoadManifest(ref)
	if err == nil {
		return m
	}
	switch profile.KindOf(err) {
	case profile.KindNotFound:
		st.report.AddError(CodeMissingAsset,
			fmt.Sprintf("Manifest asset not found: %s", ref),
			locManifestAsset,
			"Point ManifestAssetPath to an existing Manifest document.")
	case profile.KindTypeMismatch:
		st.report.AddError(CodeTypeMismatch,
			fmt.Sprintf("Manifest asset type mismatch: %s is '%s' (expected %s).", ref, profile.FoundKind(err), DocManifest),
			locManifestAsset,
			"Use a document of kind Manifest as source manifest.")
	default:
		st.report.AddError(CodeTypeMismatch,
			fmt.Sprintf("Manifest asset %s could not be decoded: %v", ref, err),
			locManifestAsset,
			"Fix the document so it decodes as a Manifest.")
	}
	return nil
}

// normalize loads the manifest, canonicalizes the enabled entries and
// computes the input hash.
func (st *run) normalize() {
	st.report.ManifestSource = ManifestSource(st.in)
	st.normalized.GenerationRoot = NormalizeRoot(st.in.GenerationRoot)

	m := st.loadManifest()
	if m == nil {
		return
	}
	st.normalized.Namespace = strings.TrimSpace(m.Namespace)
	st.normalized.BuildVersion = m.BuildVersion
	st.normalized.Systems = []ir.NormalizedSystem{}
	for _, e := range m.Systems {
		if !e.Enabled {
			continue
		}
		st.normalized.Systems = append(st.normalized.Systems, ir.NormalizedSystem{
			SystemID:        strings.TrimSpace(e.SystemID),
			SystemClassPath: strings.TrimSpace(e.SystemClass),
			Dependencies:    normalizeDependencies(e.Dependencies),
			Settings:        normalizeSettings(e.Settings),
		})
	}
	slices.SortStableFunc(st.normalized.Systems, func(a, b ir.NormalizedSystem) int {
		return strings.Compare(a.SystemID, b.SystemID)
	})

	canonical, err := ir.MarshalCanonical(st.normalized.HashInput())
	if err != nil {
		st.logger.Debug("canonical marshal failed", "error", err)
		st.report.AddError(CodeInternal,
			"Failed to compute normalized manifest SHA256.",
			locNormalize,
			"Inspect normalized manifest serialization and hashing.")
		return
	}
	if !st.report.HasErrors() {
		st.report.InputHash = ir.InputHash(canonical)
	}
}

func normalizeDependencies(deps []string) []string {
	out := []string{}
	for _, d := range deps {
		d = strings.TrimSpace(d)
		if d == "" || slices.Contains(out, d) {
			continue
		}
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

func normalizeSettings(settings map[string]string) map[string]string {
	out := make(map[string]string, len(settings))
	for k, v := range settings {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = NormalizeSlashes(v)
	}
	return out
}

// validate checks system ids, classes, dependencies and ordering, then the
// profile rules of each known system.
func (st *run) validate() {
	if st.report.HasErrors() {
		return
	}
	systems := st.normalized.Systems
	if len(systems) == 0 {
		st.report.AddError(CodeEmptyManifest,
			"Manifest contains zero enabled systems.",
			locManifest,
			"Add at least one enabled system entry to the manifest.")
		return
	}

	// byID holds the first entry for each id; duplicates and blank ids
	// take no further part in validation.
	byID := make(map[string]*ir.NormalizedSystem, len(systems))
	var accepted []*ir.NormalizedSystem
	for i := range systems {
		s := &systems[i]
		if s.SystemID == "" {
			st.report.AddError(CodeMissingSystemID,
				"A system entry has empty SystemId.",
				locSystems,
				"Define a non-empty SystemId for every enabled system.")
			continue
		}
		if _, dup := byID[s.SystemID]; dup {
			st.report.AddError(CodeDuplicateSystemID,
				fmt.Sprintf("Duplicate SystemId '%s'.", s.SystemID),
				locSystems,
				"Ensure each enabled system has a unique SystemId.")
			continue
		}
		if s.SystemClassPath == "" {
			st.report.AddError(CodeMissingSystemClass,
				fmt.Sprintf("System '%s' has empty SystemClass.", s.SystemID),
				systemLocation(s.SystemID),
				"Set SystemClass to a valid runtime system class.")
		}
		byID[s.SystemID] = s
		accepted = append(accepted, s)
	}

	deps := make(map[string][]string, len(accepted))
	for _, s := range accepted {
		for _, d := range s.Dependencies {
			if d == s.SystemID {
				st.report.AddError(CodeMissingDependency,
					fmt.Sprintf("System '%s' cannot depend on itself.", s.SystemID),
					systemLocation(s.SystemID),
					"Remove the self dependency.")
				continue
			}
			if _, ok := byID[d]; !ok {
				st.report.AddError(CodeMissingDependency,
					fmt.Sprintf("System '%s' depends on missing system '%s'.", s.SystemID, d),
					systemLocation(s.SystemID),
					"Add the dependency system or remove this dependency.")
			}
		}
		deps[s.SystemID] = s.Dependencies
	}

	order, err := depgraph.Resolve(deps)
	var cycle *depgraph.CycleError
	switch {
	case errors.As(err, &cycle):
		st.report.AddError(CodeDependencyCycle,
			fmt.Sprintf("Dependency cycle detected among systems: %s", strings.Join(cycle.Candidates, ", ")),
			locDependencies,
			"Break the dependency cycle so initialization can be topologically ordered.")
	case err != nil:
		st.report.AddError(CodeInternal, fmt.Sprintf("Dependency ordering failed: %v", err), locDependencies,
			"Inspect the manifest dependency lists.")
	default:
		st.order = order
	}

	for _, s := range accepted {
		st.validateProfile(s)
	}
}

func systemLocation(systemID string) string {
	return "SystemId=" + systemID
}

// resolve assembles the resolved manifest from the validated state. When
// the run already failed only the counts are filled in.
func (st *run) resolve() {
	slices.SortFunc(st.profiles, func(a, b ir.ResolvedProfile) int {
		if c := strings.Compare(a.SystemID, b.SystemID); c != 0 {
			return c
		}
		return strings.Compare(a.SettingKey, b.SettingKey)
	})
	slices.SortFunc(st.actions, func(a, b ir.ResolvedAction) int {
		return strings.Compare(a.ActionID, b.ActionID)
	})

	if st.report.HasErrors() {
		st.report.SystemCount = len(st.normalized.Systems)
		st.report.ActionCount = len(st.actions)
		return
	}

	systems := make([]ir.ResolvedSystem, 0, len(st.normalized.Systems))
	for _, s := range st.normalized.Systems {
		systems = append(systems, ir.ResolvedSystem{
			SystemID:        s.SystemID,
			SystemClassPath: s.SystemClassPath,
			Dependencies:    slices.Clone(s.Dependencies),
		})
	}
	st.resolved = ir.Resolved{
		ForgeVersion:        ir.ForgeVersion,
		InputHash:           st.report.InputHash,
		SystemsCount:        len(systems),
		ActionsCount:        len(st.actions),
		GenerationRoot:      st.normalized.GenerationRoot,
		Namespace:           st.normalized.Namespace,
		BuildVersion:        st.normalized.BuildVersion,
		Systems:             systems,
		InitializationOrder: slices.Clone(st.order),
		Profiles:            st.profiles,
		ActionDefinitions:   st.actions,
	}
	st.report.SystemCount = st.resolved.SystemsCount
	st.report.ActionCount = st.resolved.ActionsCount
}

// generate encodes the resolved manifest, checks it against the schema and
// writes it.
func (st *run) generate() {
	dir := st.r.outputDir()
	resolvedPath := filepath.Join(dir, ResolvedManifestFile)
	st.report.OutputResolvedManifestPath = resolvedPath
	st.report.OutputReportPath = filepath.Join(dir, ReportFile)
	if st.report.HasErrors() {
		return
	}

	data, err := EncodeResolved(&st.resolved)
	if err != nil {
		st.logger.Debug("resolved manifest encoding failed", "error", err)
		st.report.AddError(CodeInternal,
			"Failed to serialize ResolvedManifest JSON.",
			locGenerate,
			"Inspect resolved manifest serialization.")
		return
	}
	if err := ValidateResolvedJSON(data); err != nil {
		st.report.AddError(CodeInternal,
			fmt.Sprintf("ResolvedManifest JSON does not match schema %s: %v", ir.ResolvedManifestSchema, err),
			locGenerate,
			"Inspect the resolved manifest writer against the embedded schema.")
		return
	}
	if !st.r.SkipArtifacts {
		if err := writeFile(resolvedPath, data); err != nil {
			st.logger.Debug("resolved manifest write failed", "path", resolvedPath, "error", err)
			st.report.AddError(CodeInternal,
				fmt.Sprintf("Failed to write file: %s", resolvedPath),
				locGenerate,
				fmt.Sprintf("Ensure %s is writable.", dir))
			return
		}
	}
	st.hasResolved = true
}

// finish sets the verdict, writes the report and logs the outcome.
func (st *run) finish() {
	rep := &st.report
	rep.Passed = !rep.HasErrors()
	if rep.Passed {
		rep.Summary = fmt.Sprintf("PASS: Normalize -> Validate -> Resolve -> Generate -> Report completed. Systems=%d Actions=%d.",
			rep.SystemCount, rep.ActionCount)
	} else {
		rep.Summary = fmt.Sprintf("FAIL: pipeline aborted with %d error(s) and %d warning(s).", rep.ErrorCount, rep.WarningCount)
		if !st.r.SkipArtifacts && rep.OutputResolvedManifestPath != "" {
			if err := os.Remove(rep.OutputResolvedManifestPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				st.logger.Warn("could not remove stale resolved manifest", "path", rep.OutputResolvedManifestPath, "error", err)
			}
		}
		rep.OutputResolvedManifestPath = NotGenerated
	}

	if st.r.SkipArtifacts {
		rep.OutputResolvedManifestPath = NotGenerated
		rep.OutputReportPath = NotGenerated
	} else if err := writeFile(rep.OutputReportPath, []byte(RenderReport(rep))); err != nil {
		st.logger.Error("could not write forge report", "path", rep.OutputReportPath, "error", err)
		rep.OutputReportPath = NotGenerated
	}

	st.log()
}

func (st *run) log() {
	rep := &st.report
	if rep.Passed {
		st.logger.Info("Forge PASS",
			"systems", rep.SystemCount,
			"actions", rep.ActionCount,
			"resolved", rep.OutputResolvedManifestPath,
			"report", rep.OutputReportPath)
	} else {
		st.logger.Error("Forge FAIL",
			"errors", rep.ErrorCount,
			"warnings", rep.WarningCount,
			"report", rep.OutputReportPath)
	}
	for _, issue := range rep.Issues {
		st.logIssue(issue)
	}
}

func (st *run) logIssue(issue ir.Issue) {
	level := slog.LevelWarn
	if issue.Severity == ir.SeverityError {
		level = slog.LevelError
	}
	st.logger.Log(context.Background(), level, issue.Message,
		"code", issue.Code,
		"location", issue.Location,
		"recommendation", issue.Recommendation)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
