package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omni/internal/message"
	"github.com/roach88/omni/internal/systems/actiongate"
)

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

// officialScenario builds a scenario on the official manifest and content.
func officialScenario(name string, steps []Step, assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        name,
		Description: name,
		Content:     testContent,
		SessionID:   "session-" + name,
		Steps:       steps,
		Assertions:  assertions,
	}
}

func startAction(id string, handled bool) Step {
	return Step{Command: &CommandStep{
		Target:        message.SystemActionGate,
		Name:          message.CommandStartAction,
		Args:          map[string]string{message.KeyActionID: id},
		ExpectHandled: boolPtr(handled),
	}}
}

func eventNames(trace []TraceEvent) []string {
	names := make([]string, len(trace))
	for i, e := range trace {
		names[i] = e.Name
	}
	return names
}

// TestRun_SprintStartsOnTick tests that a held sprint request starts the
// sprint action on the next tick.
func TestRun_SprintStartsOnTick(t *testing.T) {
	scenario := officialScenario("sprint_start", []Step{
		{Sprint: &SprintStep{Requested: true}},
		{Tick: &TickStep{DT: 1}},
	},
		Assertion{Type: AssertActiveActions, Actions: []string{"Movement.Sprint"}},
		Assertion{Type: AssertLockCount, Tag: "Lock.Movement.Sprint", Count: 1},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, "session-sprint_start", result.SessionID)

	require.Len(t, result.Trace, 1)
	assert.Equal(t, TraceEvent{
		Seq:    1,
		Tick:   1,
		Source: message.SystemActionGate,
		Name:   message.EventActionAllowed,
		Payload: map[string]string{
			message.KeyActionID: "Movement.Sprint",
			message.KeyReason:   actiongate.ReasonAuthorized,
		},
	}, result.Trace[0])
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, int64(1), result.Decisions[0].Seq)
}

// TestRun_StepExpectations tests that failed command and query
// expectations are reported in the result.
func TestRun_StepExpectations(t *testing.T) {
	scenario := officialScenario("expectations", []Step{
		startAction("Movement.Walk", false),
		{Query: &QueryStep{
			Target: message.SystemActionGate,
			Name:   message.QueryIsActionActive,
			Args:   map[string]string{message.KeyActionID: "Movement.Walk"},
			Expect: &QueryExpect{Success: boolPtr(true), Result: strPtr("False")},
		}},
		{Query: &QueryStep{
			Target: message.SystemStatus,
			Name:   message.QueryGetStamina,
			Expect: &QueryExpect{Output: map[string]string{message.KeyCurrent: "50.00"}},
		}},
	},
		Assertion{Type: AssertActiveActions, Actions: []string{"Movement.Walk"}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "steps[0] command ActionGate.StartAction: handled = true, expected false")
	assert.Contains(t, result.Errors[1], `result = "True", expected "False"`)
	assert.Contains(t, result.Errors[2], `output Current = "100.00", expected "50.00"`)
}

// TestRun_UnknownQueryTarget tests that an unroutable query is unhandled.
func TestRun_UnknownQueryTarget(t *testing.T) {
	scenario := officialScenario("unknown_target", []Step{
		{Query: &QueryStep{
			Target: "Inventory",
			Name:   "Count",
			Expect: &QueryExpect{Handled: boolPtr(false)},
		}},
	}, Assertion{Type: AssertTraceCount, Event: message.EventActionAllowed, Count: 0})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

// TestRun_Deterministic tests that identical scenarios produce identical
// traces.
func TestRun_Deterministic(t *testing.T) {
	build := func() *Scenario {
		return officialScenario("deterministic", []Step{
			{Sprint: &SprintStep{Requested: true}},
			{Tick: &TickStep{DT: 1, Count: 7}},
			startAction("Combat.Attack", true),
		}, Assertion{Type: AssertTraceCount, Event: message.EventExhausted, Count: 1})
	}

	first, err := Run(build())
	require.NoError(t, err)
	second, err := Run(build())
	require.NoError(t, err)

	a, err := CanonicalTrace("deterministic", first)
	require.NoError(t, err)
	b, err := CanonicalTrace("deterministic", second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.True(t, first.Pass, first.Errors)
}

// TestRun_FreshRegistryPerRun tests that state does not leak between runs.
func TestRun_FreshRegistryPerRun(t *testing.T) {
	first := officialScenario("fresh_1", []Step{startAction("Combat.Attack", true)},
		Assertion{Type: AssertLockCount, Tag: "Lock.Combat", Count: 1})
	second := officialScenario("fresh_2", []Step{{Tick: &TickStep{DT: 1}}},
		Assertion{Type: AssertLockCount, Tag: "Lock.Combat", Count: 0},
		Assertion{Type: AssertActiveActions, Actions: []string{}})

	r1, err := Run(first)
	require.NoError(t, err)
	assert.True(t, r1.Pass, r1.Errors)

	r2, err := Run(second)
	require.NoError(t, err)
	assert.True(t, r2.Pass, r2.Errors)
	assert.Empty(t, r2.Trace)
}

// TestRun_AutoSprint tests that an auto sprint releases itself.
func TestRun_AutoSprint(t *testing.T) {
	scenario := officialScenario("auto_sprint", []Step{
		{Sprint: &SprintStep{Auto: 1.5}},
		{Tick: &TickStep{DT: 1}},
		{Tick: &TickStep{DT: 1}},
	},
		Assertion{Type: AssertActiveActions, Actions: []string{}},
		Assertion{Type: AssertTraceCount, Event: message.EventActionAllowed, Count: 1},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

// TestRun_CustomEvent tests that harness events are broadcast and traced
// at the current tick.
func TestRun_CustomEvent(t *testing.T) {
	scenario := officialScenario("custom_event", []Step{
		{Tick: &TickStep{DT: 0.5, Count: 3}},
		{Event: &EventStep{Source: Source, Name: "Checkpoint", Payload: map[string]string{"Step": "1"}}},
	}, Assertion{Type: AssertTraceOrder, Events: []string{"Checkpoint"}})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, int64(3), result.Trace[0].Tick)
	assert.Equal(t, "1", result.Trace[0].Payload["Step"])
}

// TestRun_InvalidEventDropped tests that schema-invalid events never reach
// the trace.
func TestRun_InvalidEventDropped(t *testing.T) {
	scenario := officialScenario("invalid_event", []Step{
		{Event: &EventStep{Source: message.SystemStatus, Name: message.EventExhausted}},
	}, Assertion{Type: AssertTraceCount, Event: message.EventExhausted, Count: 0})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

// TestRun_LenientWithoutContent tests booting on dev defaults.
func TestRun_LenientWithoutContent(t *testing.T) {
	scenario := &Scenario{
		Name:        "lenient",
		Description: "lenient",
		Mode:        "lenient",
		Steps: []Step{
			{Sprint: &SprintStep{Requested: true}},
			{Tick: &TickStep{DT: 1}},
		},
		Assertions: []Assertion{
			{Type: AssertActiveActions, Actions: []string{"Movement.Sprint"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, DefaultSessionID, result.SessionID)
}

// TestRun_StrictWithoutContent tests that strict boot fails without content.
func TestRun_StrictWithoutContent(t *testing.T) {
	scenario := &Scenario{
		Name:        "strict",
		Description: "strict",
		Steps:       []Step{{Tick: &TickStep{DT: 1}}},
		Assertions:  []Assertion{{Type: AssertActiveActions}},
	}

	_, err := Run(scenario)
	assert.ErrorContains(t, err, "failed to initialize registry")
}

// TestRun_ManifestFile tests booting from a manifest document.
func TestRun_ManifestFile(t *testing.T) {
	scenario := officialScenario("manifest_file", []Step{startAction("Combat.Attack", true)},
		Assertion{Type: AssertActiveActions, Actions: []string{"Combat.Attack"}})
	scenario.Manifest = "../forge/testdata/manifests/broken.yaml"

	_, err := Run(scenario)
	assert.Error(t, err, "broken manifest cannot boot")

	scenario.Manifest = "missing.yaml"
	_, err = Run(scenario)
	assert.ErrorContains(t, err, "failed to resolve manifest")
}

// TestRun_Canceled tests that a done context stops execution.
func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunContext(ctx, officialScenario("canceled", []Step{{Tick: &TickStep{DT: 1}}},
		Assertion{Type: AssertActiveActions}))
	assert.ErrorIs(t, err, context.Canceled)
}

type memoryRecorder struct {
	sessions []string
	seqs     []int64
	err      error
}

func (m *memoryRecorder) RecordDecision(_ context.Context, sessionID string, d actiongate.Decision) error {
	m.sessions = append(m.sessions, sessionID)
	m.seqs = append(m.seqs, d.Seq)
	return m.err
}

// TestRun_DecisionRecorder tests that published decisions are handed to
// recorders under the scenario session.
func TestRun_DecisionRecorder(t *testing.T) {
	rec := &memoryRecorder{}
	scenario := officialScenario("recorder", []Step{
		startAction("Combat.Attack", true),
		startAction("Movement.Walk", true),
		{Query: &QueryStep{
			Target: message.SystemActionGate,
			Name:   message.QueryCanStartAction,
			Args:   map[string]string{message.KeyActionID: "Movement.Walk"},
		}},
	}, Assertion{Type: AssertTraceCount, Event: message.EventActionAllowed, Count: 2})

	result, err := Run(scenario, WithDecisionRecorder(rec))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []string{"session-recorder", "session-recorder"}, rec.sessions)
	assert.Equal(t, []int64{1, 2}, rec.seqs)

	failing := &memoryRecorder{err: errors.New("disk full")}
	_, err = Run(scenario, WithDecisionRecorder(failing))
	assert.ErrorContains(t, err, "disk full")
}

// TestResult_AddError tests that errors fail the result.
func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}

// TestResult_AddEventTrace tests sequence numbering and payload copies.
func TestResult_AddEventTrace(t *testing.T) {
	r := NewResult()
	payload := map[string]string{"k": "v"}
	r.AddEventTrace(0, "A", "First", payload)
	r.AddEventTrace(2, "B", "Second", nil)
	payload["k"] = "changed"

	assert.Equal(t, []string{"First", "Second"}, eventNames(r.Trace))
	assert.Equal(t, int64(2), r.Trace[1].Seq)
	assert.Equal(t, "v", r.Trace[0].Payload["k"])
	assert.Nil(t, r.Trace[1].Payload)
}
