package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/roach88/omni/internal/ir"
)

func TestLatestRun_Empty(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LatestRun(context.Background())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("LatestRun() error = %v, want sql.ErrNoRows", err)
	}
}

func TestLatestRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	s.RecordRun(ctx, "run-1", createTestReport("hash-a"))
	s.RecordRun(ctx, "run-2", &ir.Report{Passed: true, InputHash: "hash-b"})

	run, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() failed: %v", err)
	}
	if run.ID != "run-2" || !run.Passed {
		t.Errorf("LatestRun() = %+v", run)
	}
	if run.Issues == nil || len(run.Issues) != 0 {
		t.Errorf("LatestRun() issues = %v, want empty slice", run.Issues)
	}
}

func TestGetRun_Issues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rep := createTestReport("hash-a")
	s.RecordRun(ctx, "run-1", rep)

	run, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if len(run.Issues) != 2 {
		t.Fatalf("issues = %d, want 2", len(run.Issues))
	}
	for i, issue := range run.Issues {
		if issue != rep.Issues[i] {
			t.Errorf("issue %d = %+v, want %+v", i, issue, rep.Issues[i])
		}
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetRun(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestListRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns() on empty store = %v, want empty slice", runs)
	}

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		s.RecordRun(ctx, id, &ir.Report{Passed: true, InputHash: id})
	}

	runs, err = s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-3" || runs[1].ID != "run-2" {
		t.Errorf("ListRuns(2) = %v", runIDs(runs))
	}

	all, _ := s.ListRuns(ctx, 0)
	if len(all) != 3 {
		t.Errorf("ListRuns(0) = %d runs, want 3", len(all))
	}
}

func TestLastPassingHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.LastPassingHash(ctx); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("LastPassingHash() error = %v, want sql.ErrNoRows", err)
	}

	s.RecordRun(ctx, "run-1", &ir.Report{Passed: true, InputHash: "hash-a"})
	s.RecordRun(ctx, "run-2", createTestReport("hash-b"))

	hash, err := s.LastPassingHash(ctx)
	if err != nil {
		t.Fatalf("LastPassingHash() failed: %v", err)
	}
	if hash != "hash-a" {
		t.Errorf("LastPassingHash() = %q, want hash-a", hash)
	}
}

func TestListDecisions_Order(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Written out of order; read back by seq.
	s.RecordDecision(ctx, "session-1", createTestDecision(2, "Action.Test.B", false))
	s.RecordDecision(ctx, "session-1", createTestDecision(1, "Action.Test.A", true))
	s.RecordDecision(ctx, "session-2", createTestDecision(1, "Action.Test.C", true))

	decisions, err := s.ListDecisions(ctx, "session-1")
	if err != nil {
		t.Fatalf("ListDecisions() failed: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("decisions = %d, want 2", len(decisions))
	}
	if decisions[0].ActionID != "Action.Test.A" || decisions[1].ActionID != "Action.Test.B" {
		t.Errorf("order = [%s %s]", decisions[0].ActionID, decisions[1].ActionID)
	}
	if decisions[1].Allowed || decisions[1].Reason != "Blocked by Omni.State.Stunned" {
		t.Errorf("decision 2 = %+v", decisions[1])
	}
	if decisions[0].Canceled == nil {
		t.Error("Canceled should be an empty slice, not nil")
	}

	empty, err := s.ListDecisions(ctx, "missing")
	if err != nil {
		t.Fatalf("ListDecisions(missing) failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("ListDecisions(missing) = %v, want empty slice", empty)
	}
}

func TestListSessions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	s.RecordDecision(ctx, "session-b", createTestDecision(1, "Action.Test.A", true))
	s.RecordDecision(ctx, "session-a", createTestDecision(1, "Action.Test.A", true))
	s.RecordDecision(ctx, "session-a", createTestDecision(2, "Action.Test.B", true))

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0] != "session-a" || sessions[1] != "session-b" {
		t.Errorf("ListSessions() = %v", sessions)
	}
}

func runIDs(runs []RunRecord) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
