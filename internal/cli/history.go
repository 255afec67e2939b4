package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Issues   bool
	Session  string
}

// RunSummary is one forge run in history output.
type RunSummary struct {
	ID             string     `json:"id"`
	Seq            int64      `json:"seq"`
	Passed         bool       `json:"passed"`
	InputHash      string     `json:"input_hash"`
	ManifestSource string     `json:"manifest_source"`
	Systems        int        `json:"systems"`
	Actions        int        `json:"actions"`
	Errors         int        `json:"errors"`
	Warnings       int        `json:"warnings"`
	Issues         []ir.Issue `json:"issues,omitempty"`
}

// SessionSummary is the decision log of one runtime session.
type SessionSummary struct {
	SessionID string            `json:"session_id"`
	Intact    bool              `json:"intact"`
	Allowed   int               `json:"allowed"`
	Denied    int               `json:"denied"`
	Gaps      []int64           `json:"gaps"`
	Tampered  []string          `json:"tampered"`
	Decisions []DecisionSummary `json:"decisions"`
}

// DecisionSummary is one recorded decision.
type DecisionSummary struct {
	Seq      int64    `json:"seq"`
	ActionID string   `json:"action_id"`
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason"`
	Policy   string   `json:"policy"`
	Canceled []string `json:"canceled"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past forge runs or a session's decisions",
		Long: `List forge runs recorded by 'omni forge --db', newest first.

With --session, print the decisions recorded by 'omni run --db' for that
session instead, and verify that the log has no seq gaps and that every
decision still matches its content-addressed id.

Exit codes:
  0 - Success
  1 - Session log is not intact
  2 - Command error (database not found, etc.)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&opts.Issues, "issues", false, "include the issues of each run")
	cmd.Flags().StringVar(&opts.Session, "session", "", "show the decisions of a session")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	// Open would create a fresh database; history only reads existing ones.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			opts.logger().Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Session != "" {
		return showSession(ctx, st, opts.Session, formatter)
	}
	return listRuns(ctx, st, opts, formatter)
}

func listRuns(ctx context.Context, st *store.Store, opts *HistoryOptions, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		s := RunSummary{
			ID:             run.ID,
			Seq:            run.Seq,
			Passed:         run.Passed,
			InputHash:      run.InputHash,
			ManifestSource: run.ManifestSource,
			Systems:        run.SystemCount,
			Actions:        run.ActionCount,
			Errors:         run.ErrorCount,
			Warnings:       run.WarningCount,
		}
		if opts.Issues {
			issues, err := st.RunIssues(ctx, run.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read run issues", err)
			}
			s.Issues = issues
		}
		summaries = append(summaries, s)
	}

	if formatter.JSON() {
		return formatter.Success(summaries)
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No forge runs recorded.")
		return nil
	}
	for _, s := range summaries {
		status := "PASS"
		if !s.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "#%d %s %s %s systems=%d actions=%d errors=%d warnings=%d\n",
			s.Seq, status, shortID(s.ID), s.ManifestSource, s.Systems, s.Actions, s.Errors, s.Warnings)
		printIssues(formatter, s.Issues)
	}
	return nil
}

func showSession(ctx context.Context, st *store.Store, sessionID string, formatter *OutputFormatter) error {
	state, err := st.VerifyDecisions(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	if len(state.Decisions) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no decisions recorded for session %q", sessionID))
	}

	summary := SessionSummary{
		SessionID: state.SessionID,
		Intact:    state.Intact(),
		Allowed:   state.Allowed,
		Denied:    state.Denied,
		Gaps:      state.Gaps,
		Tampered:  state.Tampered,
		Decisions: make([]DecisionSummary, 0, len(state.Decisions)),
	}
	for _, d := range state.Decisions {
		summary.Decisions = append(summary.Decisions, DecisionSummary{
			Seq:      d.Seq,
			ActionID: d.ActionID,
			Allowed:  d.Allowed,
			Reason:   d.Reason,
			Policy:   d.Policy,
			Canceled: d.Canceled,
		})
	}

	msg := fmt.Sprintf("session %s: %d gap(s), %d tampered decision(s)",
		sessionID, len(summary.Gaps), len(summary.Tampered))

	if formatter.JSON() {
		if summary.Intact {
			return formatter.Success(summary)
		}
		if err := formatter.Failure(ErrCodeSessionNotIntact, msg, summary); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Session %s: %d allowed, %d denied\n", summary.SessionID, summary.Allowed, summary.Denied)
	for _, d := range summary.Decisions {
		verdict := "ALLOW"
		if !d.Allowed {
			verdict = "DENY"
		}
		line := fmt.Sprintf("  %d %s %s | %s", d.Seq, verdict, d.ActionID, d.Reason)
		if len(d.Canceled) > 0 {
			line += " (canceled " + strings.Join(d.Canceled, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
	if !summary.Intact {
		fmt.Fprintf(w, "NOT INTACT: %s\n", msg)
		return NewExitError(ExitFailure, msg)
	}
	fmt.Fprintln(w, "✓ Log intact")
	return nil
}

// shortID abbreviates a content-addressed id for text output.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
