package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/omni/internal/forge"
	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/profile"
	"github.com/roach88/omni/internal/store"
)

// DefaultContentDir is where /Game/ object paths are looked up.
const DefaultContentDir = "Content"

// ForgeOptions holds flags for the forge and validate commands.
type ForgeOptions struct {
	*RootOptions
	OutputDir  string
	ContentDir string
	Database   string
	Watch      bool

	// RunIDs allows overriding the run id token generator (for testing).
	// If nil, the runner uses UUIDv7 tokens.
	RunIDs forge.IDGenerator
}

// ForgeOutput is the JSON payload of forge and validate.
type ForgeOutput struct {
	RunID  string    `json:"run_id"`
	Report ir.Report `json:"report"`
}

// NewForgeCommand creates the forge command.
func NewForgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ForgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "forge [key=value...]",
		Short: "Resolve a manifest and write the forge artifacts",
		Long: `Run the forge pipeline (Normalize -> Validate -> Resolve -> Generate -> Report)
and write ResolvedManifest.json and ForgeReport.md to the output directory.

Arguments are key=value pairs:
  root=<path>                 generation root (default /Game/Data)
  manifestAsset=<ref>         manifest file, or a /Game/ object path under --content
  manifestClass=<class>       builtin manifest class (default Omni.Official)
  requireContentAssets=<bool> check profile and library assets (default true)

Exit codes:
  0 - Report passed
  1 - Report failed
  2 - Command error

Examples:
  omni forge
  omni forge manifestAsset=/Game/Omni/Data/Manifest/DA_Omni_Manifest.DA_Omni_Manifest --content ./Content
  omni forge requireContentAssets=false --out /tmp/omni --db omni.db
  omni forge --watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForge(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "out", "o", forge.DefaultOutputDir, "artifact output directory")
	addContentFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-run on manifest or content changes")

	return cmd
}

func addContentFlags(cmd *cobra.Command, opts *ForgeOptions) {
	cmd.Flags().StringVar(&opts.ContentDir, "content", DefaultContentDir, "content directory /Game/ paths resolve against")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database recording forge runs (optional)")
}

// newRunner builds a runner over the content directory. The returned
// close function releases the store, if one was opened.
func newRunner(opts *ForgeOptions) (*forge.Runner, func(), error) {
	runner := &forge.Runner{
		Provider:  profile.NewFileProvider(opts.ContentDir),
		Manifests: forge.FileManifests{ContentDir: opts.ContentDir},
		OutputDir: opts.OutputDir,
		Logger:    opts.logger(),
		RunIDs:    opts.RunIDs,
	}
	if opts.Database == "" {
		return runner, func() {}, nil
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	runner.Store = st
	return runner, func() {
		if err := st.Close(); err != nil {
			opts.logger().Error("error closing database", "error", err)
		}
	}, nil
}

func runForge(opts *ForgeOptions, args []string, cmd *cobra.Command) error {
	in, err := forge.ParseArgs(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid forge arguments", err)
	}

	runner, closeStore, err := newRunner(opts)
	if err != nil {
		return err
	}
	defer closeStore()

	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !opts.Watch {
		return forgeOnce(ctx, runner, in, formatter)
	}

	paths := watchPaths(opts.ContentDir, in.ManifestAsset)
	if len(paths) == 0 {
		return NewExitError(ExitCommandError, "nothing to watch: neither the content directory nor the manifest file exists")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	formatter.VerboseLog("Watching %s", strings.Join(paths, ", "))
	err = forge.Watch(ctx, paths, func(ctx context.Context) {
		// A failed report is printed; the watch keeps going.
		err := forgeOnce(ctx, runner, in, formatter)
		if err != nil && ctx.Err() == nil && GetExitCode(err) != ExitFailure {
			opts.logger().Error("forge run failed", "error", err)
		}
	}, forge.WithWatchLogger(opts.logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	return nil
}

func forgeOnce(ctx context.Context, runner *forge.Runner, in ir.ForgeInput, formatter *OutputFormatter) error {
	res, err := runner.Run(ctx, in)
	if err != nil {
		return WrapExitError(ExitCommandError, "forge run failed", err)
	}
	return outputForgeResult(formatter, res)
}

// outputForgeResult prints the report and maps a failed report to
// ExitFailure.
func outputForgeResult(formatter *OutputFormatter, res *forge.Result) error {
	out := ForgeOutput{RunID: res.RunID, Report: res.Report}
	rep := &res.Report

	if formatter.JSON() {
		if rep.Passed {
			return formatter.Success(out)
		}
		if err := formatter.Failure(ErrCodeForgeFailed, rep.Summary, out); err != nil {
			return err
		}
		return NewExitError(ExitFailure, rep.Summary)
	}

	w := formatter.Writer
	fmt.Fprintln(w, rep.Summary)
	fmt.Fprintf(w, "  Manifest: %s\n", rep.ManifestSource)
	if rep.InputHash != "" {
		fmt.Fprintf(w, "  Input hash: %s\n", rep.InputHash)
	}
	printIssues(formatter, rep.Issues)
	if written(rep.OutputResolvedManifestPath) {
		fmt.Fprintf(w, "  Resolved manifest: %s\n", rep.OutputResolvedManifestPath)
	}
	if written(rep.OutputReportPath) {
		fmt.Fprintf(w, "  Report: %s\n", rep.OutputReportPath)
	}
	formatter.VerboseLog("Run %s", res.RunID)

	if !rep.Passed {
		return NewExitError(ExitFailure, rep.Summary)
	}
	return nil
}

func written(path string) bool {
	return path != "" && path != forge.NotGenerated
}

func printIssues(formatter *OutputFormatter, issues []ir.Issue) {
	for _, issue := range issues {
		fmt.Fprintf(formatter.Writer, "  [%s] %s at %s: %s\n", issue.Severity, issue.Code, issue.Location, issue.Message)
		if formatter.Verbose && issue.Recommendation != "" {
			fmt.Fprintf(formatter.Writer, "      %s\n", issue.Recommendation)
		}
	}
}

// watchPaths returns the existing paths a watch covers: the content
// directory and a manifest file given by path. /Game/ manifest references
// already live under the content directory.
func watchPaths(contentDir, manifestAsset string) []string {
	var paths []string
	if info, err := os.Stat(contentDir); err == nil && info.IsDir() {
		paths = append(paths, contentDir)
	}
	ref := strings.TrimSpace(manifestAsset)
	if ref != "" && !strings.HasPrefix(ref, profile.GamePrefix) {
		if info, err := os.Stat(ref); err == nil && !info.IsDir() {
			paths = append(paths, ref)
		}
	}
	return paths
}
