package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/omni/internal/harness"
	"github.com/roach88/omni/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Pass      bool     `json:"pass"`
	SessionID string   `json:"session_id,omitempty"`
	Events    int      `json:"events"`
	Decisions int      `json:"decisions"`
	Errors    []string `json:"errors,omitempty"`
}

// RunResult holds the overall scenario run result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml|dir>...",
		Short: "Run harness scenarios",
		Long: `Boot a registry for each scenario, execute its steps and check its
assertions. Directories expand to the .yaml and .yml files they contain.

With --db, every ActionGate decision is persisted under the scenario's
session id.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing paths, unreadable database)

Examples:
  omni run testdata/scenarios
  omni run sprint_exhaustion.yaml --db omni.db --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database persisting decisions (optional)")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	harnessOpts := []harness.Option{harness.WithLogger(opts.logger())}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				opts.logger().Error("error closing database", "error", closeErr)
			}
		}()
		harnessOpts = append(harnessOpts, harness.WithDecisionRecorder(st))
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	suite, err := harness.RunSuite(ctx, paths, harnessOpts...)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return NewExitError(ExitCommandError, notFound.Error())
		}
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	result := collectRunResult(suite)
	if formatter.JSON() {
		return outputRunJSON(formatter, result)
	}
	return outputRunText(formatter, result)
}

// collectRunResult flattens a suite into per-scenario results, sorted by
// path like the expanded file list.
func collectRunResult(suite *harness.SuiteResult) RunResult {
	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, suite.TotalScenarios),
		Passed:    suite.Passed,
		Failed:    suite.Failed,
		Total:     suite.TotalScenarios,
	}

	ran := make(map[string]harness.ScenarioOutcome, len(suite.Results))
	failed := make(map[string]harness.ScenarioFailure, len(suite.Failures))
	var order []string
	for _, outcome := range suite.Results {
		ran[outcome.ScenarioPath] = outcome
		order = append(order, outcome.ScenarioPath)
	}
	for _, f := range suite.Failures {
		failed[f.ScenarioPath] = f
		order = append(order, f.ScenarioPath)
	}
	slices.Sort(order)
	order = slices.Compact(order)

	for _, path := range order {
		sr := ScenarioResult{Path: path}
		if outcome, ok := ran[path]; ok && outcome.Result != nil {
			sr.Name = outcome.Name
			sr.Pass = outcome.Result.Pass
			sr.SessionID = outcome.Result.SessionID
			sr.Events = len(outcome.Result.Trace)
			sr.Decisions = len(outcome.Result.Decisions)
			sr.Errors = outcome.Result.Errors
		}
		if f, ok := failed[path]; ok {
			if sr.Name == "" {
				sr.Name = f.Name
			}
			if len(sr.Errors) == 0 {
				sr.Errors = []string{f.Error}
			}
		}
		if sr.Name == "" {
			sr.Name = path
		}
		result.Scenarios = append(result.Scenarios, sr)
	}
	return result
}

// outputRunJSON outputs the run result as JSON.
func outputRunJSON(formatter *OutputFormatter, result RunResult) error {
	if result.Failed == 0 {
		return formatter.Success(result)
	}
	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if err := formatter.Failure(ErrCodeScenarioFailed, msg, result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

// outputRunText outputs the run result as text.
func outputRunText(formatter *OutputFormatter, result RunResult) error {
	w := formatter.Writer

	for _, sr := range result.Scenarios {
		if sr.Pass {
			fmt.Fprintf(w, "✓ %s\n", sr.Name)
			formatter.VerboseLog("  %s: %d events, %d decisions (session %s)", sr.Path, sr.Events, sr.Decisions, sr.SessionID)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
