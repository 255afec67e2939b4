package store

import (
	"context"
	"fmt"

	"github.com/roach88/omni/internal/ir"
)

// SessionState summarizes the recorded decisions of one session.
type SessionState struct {
	SessionID string
	Decisions []DecisionRecord
	LastSeq   int64
	Allowed   int
	Denied    int
	// Gaps lists missing seq values between 1 and LastSeq.
	Gaps []int64
	// Tampered lists decision ids that no longer match their content.
	Tampered []string
}

// Intact reports whether the session has no gaps and no tampered rows.
func (st SessionState) Intact() bool {
	return len(st.Gaps) == 0 && len(st.Tampered) == 0
}

// VerifyDecisions reads a session and recomputes every decision id.
// A row whose stored fields hash to a different id is reported as tampered.
func (s *Store) VerifyDecisions(ctx context.Context, sessionID string) (SessionState, error) {
	state := SessionState{SessionID: sessionID, Gaps: []int64{}, Tampered: []string{}}

	decisions, err := s.ListDecisions(ctx, sessionID)
	if err != nil {
		return state, fmt.Errorf("verify decisions: %w", err)
	}
	state.Decisions = decisions

	expected := int64(1)
	for _, rec := range decisions {
		for ; expected < rec.Seq; expected++ {
			state.Gaps = append(state.Gaps, expected)
		}
		expected = rec.Seq + 1
		state.LastSeq = rec.Seq

		if rec.Allowed {
			state.Allowed++
		} else {
			state.Denied++
		}

		id, err := ir.DecisionID(rec.SessionID, rec.Seq, rec.ActionID, rec.Allowed, rec.Reason, rec.Canceled)
		if err != nil {
			return state, fmt.Errorf("verify decision %s: %w", rec.ID, err)
		}
		if id != rec.ID {
			state.Tampered = append(state.Tampered, rec.ID)
		}
	}

	return state, nil
}
