package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/systems/actiongate"
)

// TraceSnapshot captures the trace and decisions of a scenario execution.
// Serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string                `json:"scenario_name"`
	SessionID    string                `json:"session_id,omitempty"`
	Trace        []TraceEvent          `json:"trace"`
	Decisions    []actiongate.Decision `json:"decisions"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// Decision times are floats, which canonical JSON forbids; event ticks
// carry the timing instead.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":    event.Seq,
			"tick":   event.Tick,
			"source": event.Source,
			"name":   event.Name,
		}
		if len(event.Payload) > 0 {
			eventMap["payload"] = event.Payload
		}
		traceList[i] = eventMap
	}

	decisionList := make([]any, len(s.Decisions))
	for i, d := range s.Decisions {
		decisionMap := map[string]any{
			"seq":       d.Seq,
			"action_id": d.ActionID,
			"allowed":   d.Allowed,
			"reason":    d.Reason,
		}
		if len(d.CanceledActions) > 0 {
			decisionMap["canceled"] = append([]string(nil), d.CanceledActions...)
		}
		decisionList[i] = decisionMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"decisions":     decisionList,
	}
	if s.SessionID != "" {
		result["session_id"] = s.SessionID
	}
	return result
}

// CanonicalTrace returns the canonical JSON of a result's trace and decisions.
func CanonicalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		SessionID:    result.SessionID,
		Trace:        result.Trace,
		Decisions:    result.Decisions,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := CanonicalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
