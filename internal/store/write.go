package store

import (
	"context"
	"fmt"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/systems/actiongate"
)

// RunRecord is one stored forge run.
type RunRecord struct {
	ID             string
	InputHash      string
	Passed         bool
	ManifestSource string
	SystemCount    int
	ActionCount    int
	ErrorCount     int
	WarningCount   int
	ReportPath     string
	// Seq orders runs. Zero means "next": WriteRun assigns MAX+1.
	Seq    int64
	Issues []ir.Issue
}

// NewRunRecord builds a record from a forge report.
func NewRunRecord(runID string, rep *ir.Report) RunRecord {
	return RunRecord{
		ID:             runID,
		InputHash:      rep.InputHash,
		Passed:         rep.Passed,
		ManifestSource: rep.ManifestSource,
		SystemCount:    rep.SystemCount,
		ActionCount:    rep.ActionCount,
		ErrorCount:     rep.ErrorCount,
		WarningCount:   rep.WarningCount,
		ReportPath:     rep.OutputReportPath,
		Issues:         append([]ir.Issue(nil), rep.Issues...),
	}
}

// WriteRun stores a run and its issues in one transaction.
// Idempotent: writing the same run id twice leaves the first row and its
// issues untouched.
func (s *Store) WriteRun(ctx context.Context, run RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("write run: empty id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	seq := run.Seq
	if seq == 0 {
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(created_seq), 0) + 1 FROM forge_runs",
		).Scan(&seq); err != nil {
			return fmt.Errorf("next run seq: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO forge_runs (
			id, input_hash, passed, manifest_source,
			system_count, action_count, error_count, warning_count,
			report_path, created_seq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.InputHash, boolToInt(run.Passed), run.ManifestSource,
		run.SystemCount, run.ActionCount, run.ErrorCount, run.WarningCount,
		run.ReportPath, seq)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	if inserted == 0 {
		return tx.Commit()
	}

	for i, issue := range run.Issues {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO forge_issues (
				run_id, idx, severity, code, message, location, recommendation
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, idx) DO NOTHING
		`, run.ID, i, string(issue.Severity), issue.Code, issue.Message,
			issue.Location, issue.Recommendation)
		if err != nil {
			return fmt.Errorf("insert issue %d of run %s: %w", i, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

// RecordRun stores a forge report under runID.
func (s *Store) RecordRun(ctx context.Context, runID string, rep *ir.Report) error {
	return s.WriteRun(ctx, NewRunRecord(runID, rep))
}

// DecisionRecord is one stored ActionGate decision.
type DecisionRecord struct {
	ID        string
	SessionID string
	Seq       int64
	ActionID  string
	Allowed   bool
	Reason    string
	Policy    string
	Canceled  []string
}

// NewDecisionRecord builds a record for a published decision and computes
// its content-addressed id.
func NewDecisionRecord(sessionID string, d actiongate.Decision) (DecisionRecord, error) {
	id, err := ir.DecisionID(sessionID, d.Seq, d.ActionID, d.Allowed, d.Reason, d.CanceledActions)
	if err != nil {
		return DecisionRecord{}, err
	}
	return DecisionRecord{
		ID:        id,
		SessionID: sessionID,
		Seq:       d.Seq,
		ActionID:  d.ActionID,
		Allowed:   d.Allowed,
		Reason:    d.Reason,
		Policy:    d.Policy.String(),
		Canceled:  append([]string{}, d.CanceledActions...),
	}, nil
}

// WriteDecision stores a decision.
// Idempotent: ON CONFLICT DO NOTHING on the decision id.
func (s *Store) WriteDecision(ctx context.Context, rec DecisionRecord) error {
	if rec.Seq <= 0 {
		return fmt.Errorf("write decision %s: unpublished decision (seq %d)", rec.ActionID, rec.Seq)
	}
	canceled, err := marshalCanceled(rec.Canceled)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, session_id, seq, action_id, allowed, reason, policy, canceled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.SessionID, rec.Seq, rec.ActionID, boolToInt(rec.Allowed),
		rec.Reason, rec.Policy, canceled)
	if err != nil {
		return fmt.Errorf("insert decision %s: %w", rec.ID, err)
	}
	return nil
}

// RecordDecision stores a published decision for a session.
func (s *Store) RecordDecision(ctx context.Context, sessionID string, d actiongate.Decision) error {
	rec, err := NewDecisionRecord(sessionID, d)
	if err != nil {
		return err
	}
	return s.WriteDecision(ctx, rec)
}
