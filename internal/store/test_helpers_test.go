package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/profile"
	"github.com/roach88/omni/internal/systems/actiongate"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReport creates a failing report with one error and one warning.
func createTestReport(hash string) *ir.Report {
	rep := &ir.Report{
		ForgeVersion:     ir.ForgeVersion,
		InputHash:        hash,
		ManifestSource:   "Omni.Official",
		OutputReportPath: "Saved/Omni/ForgeReport.md",
		SystemCount:      3,
	}
	rep.AddError("OMNI_FORGE_E005_MISSING_DEPENDENCY", "missing dependency", "SystemId=Status", "Add the system.")
	rep.AddWarning("OMNI_FORGE_W001_EMPTY_ACTIONID", "entry ignored", "SystemId=ActionGate", "Set ActionId.")
	return rep
}

// createTestDecision creates a published decision.
func createTestDecision(seq int64, actionID string, allowed bool, canceled ...string) actiongate.Decision {
	reason := "Allowed"
	if !allowed {
		reason = "Blocked by Omni.State.Stunned"
	}
	return actiongate.Decision{
		Seq:             seq,
		ActionID:        actionID,
		Allowed:         allowed,
		Reason:          reason,
		Policy:          profile.DenyIfActive,
		CanceledActions: canceled,
	}
}
