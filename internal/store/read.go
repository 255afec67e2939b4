package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/omni/internal/ir"
)

const runColumns = `id, input_hash, passed, manifest_source,
	system_count, action_count, error_count, warning_count,
	report_path, created_seq`

// LatestRun returns the most recent run without its issues.
// Returns sql.ErrNoRows if no run has been recorded.
func (s *Store) LatestRun(ctx context.Context) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM forge_runs
		ORDER BY created_seq DESC
		LIMIT 1
	`)
	return scanRun(row)
}

// GetRun returns one run with its issues.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM forge_runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		return RunRecord{}, err
	}
	run.Issues, err = s.RunIssues(ctx, id)
	if err != nil {
		return RunRecord{}, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first, without issues.
// A limit of zero or less returns every run.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM forge_runs
		ORDER BY created_seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// RunIssues returns the issues of a run in report order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) RunIssues(ctx context.Context, runID string) ([]ir.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, code, message, location, recommendation
		FROM forge_issues
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query issues of %s: %w", runID, err)
	}
	defer rows.Close()

	issues := []ir.Issue{}
	for rows.Next() {
		var issue ir.Issue
		var severity string
		if err := rows.Scan(&severity, &issue.Code, &issue.Message, &issue.Location, &issue.Recommendation); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issue.Severity = ir.Severity(severity)
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return issues, nil
}

// LastPassingHash returns the input hash of the newest passing run.
// Returns sql.ErrNoRows if no run has passed.
func (s *Store) LastPassingHash(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT input_hash
		FROM forge_runs
		WHERE passed = 1
		ORDER BY created_seq DESC
		LIMIT 1
	`).Scan(&hash)
	if err != nil {
		return "", err
	}
	return hash, nil
}

// ListDecisions returns the decisions of a session ordered by seq.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListDecisions(ctx context.Context, sessionID string) ([]DecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, action_id, allowed, reason, policy, canceled
		FROM decisions
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	decisions := []DecisionRecord{}
	for rows.Next() {
		var rec DecisionRecord
		var allowed int
		var canceled string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Seq, &rec.ActionID,
			&allowed, &rec.Reason, &rec.Policy, &canceled); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Allowed = allowed == 1
		rec.Canceled, err = unmarshalCanceled(canceled)
		if err != nil {
			return nil, fmt.Errorf("decision %s: %w", rec.ID, err)
		}
		decisions = append(decisions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return decisions, nil
}

// ListSessions returns the ids of sessions with recorded decisions,
// sorted by id.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT session_id
		FROM decisions
		ORDER BY session_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var run RunRecord
	var passed int
	err := row.Scan(&run.ID, &run.InputHash, &passed, &run.ManifestSource,
		&run.SystemCount, &run.ActionCount, &run.ErrorCount, &run.WarningCount,
		&run.ReportPath, &run.Seq)
	if err == sql.ErrNoRows {
		return RunRecord{}, err
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	run.Passed = passed == 1
	run.Issues = []ir.Issue{}
	return run, nil
}
