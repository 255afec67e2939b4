package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/message"
	"github.com/roach88/omni/internal/profile"
	"github.com/roach88/omni/internal/registry"
	"github.com/roach88/omni/internal/systems/actiongate"
)

func bootOfficial(t *testing.T, cfg Config) (*registry.Registry, *[]message.Event) {
	t.Helper()
	var events []message.Event
	r := registry.New(
		registry.WithSessionIDs(registry.NewFixedGenerator("session-1")),
		registry.WithEventObserver(func(e message.Event) { events = append(events, e) }),
	)
	if cfg.Provider == nil {
		cfg.Provider = profile.NewFileProvider("../../testdata/content")
	}
	manifest, ok := ir.BuiltinManifest(ir.DefaultManifestClass)
	require.True(t, ok)
	require.NoError(t, r.InitializeFromManifest(manifest, StandardCatalog(cfg)))
	t.Cleanup(r.Shutdown)
	return r, &events
}

func eventNames(events []message.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Name
	}
	return out
}

// TestStandardCatalog_BootsOfficialManifest tests the initialization order
// and typed lookups.
func TestStandardCatalog_BootsOfficialManifest(t *testing.T) {
	r, _ := bootOfficial(t, Config{})

	assert.Equal(t, []string{ir.SystemStatus, ir.SystemActionGate, ir.SystemMovement}, r.InitializationOrder())
	assert.Equal(t, "session-1", r.SessionID())

	gate, ok := ActionGate(r)
	require.True(t, ok)
	assert.Equal(t, []string{"Combat.Attack", "Movement.Sprint", "Movement.Walk"}, gate.KnownActions())

	st, ok := Status(r)
	require.True(t, ok)
	assert.Equal(t, 100.0, st.Stamina())

	mv, ok := Movement(r)
	require.True(t, ok)
	assert.Equal(t, "Movement.Sprint", mv.Settings().SprintActionID)

	_, ok = Lookup[*actiongate.System](r, ir.SystemStatus)
	assert.False(t, ok, "wrong type")
	_, ok = Lookup[*actiongate.System](r, "Missing")
	assert.False(t, ok)
}

// TestSprintCycle tests sprinting into exhaustion, the denied retries and
// the restart once stamina recovers.
func TestSprintCycle(t *testing.T) {
	var decisions []actiongate.Decision
	r, events := bootOfficial(t, Config{
		DecisionObservers: []func(actiongate.Decision){func(d actiongate.Decision) {
			decisions = append(decisions, d)
		}},
	})
	gate, _ := ActionGate(r)
	st, _ := Status(r)
	mv, _ := Movement(r)

	mv.SetSprintRequested(true)
	r.Tick(1)
	assert.True(t, mv.IsSprinting())
	assert.True(t, st.IsSprinting())
	assert.Equal(t, []string{"Movement.Sprint"}, gate.ActiveActions())
	assert.Equal(t, 1, gate.LockCount("Lock.Movement.Sprint"))

	for range 4 {
		r.Tick(1)
	}
	assert.True(t, st.IsExhausted())
	assert.False(t, mv.IsSprinting())
	assert.Empty(t, gate.ActiveActions())
	assert.Empty(t, gate.ActiveLocks())
	assert.InDelta(t, 5.25, mv.NextAttempt(), 1e-9)

	q := message.CanStartAction{ActionID: "Movement.Sprint"}.ToMessage()
	require.True(t, r.ExecuteQuery(q))
	assert.False(t, q.Success)
	assert.Equal(t, "blocked by tags: State.Exhausted", q.Result)

	r.Tick(1)
	assert.InDelta(t, 18.0, st.Stamina(), 1e-9)
	assert.False(t, mv.IsSprinting())

	r.Tick(1)
	assert.False(t, st.IsExhausted())
	assert.True(t, mv.IsSprinting())

	assert.Equal(t, []string{
		message.EventActionAllowed,
		message.EventExhausted,
		message.EventExhaustedCleared,
		message.EventActionAllowed,
	}, eventNames(*events))
	require.Len(t, decisions, 2)
	assert.Equal(t, int64(2), decisions[1].Seq)
	assert.InDelta(t, 7.0, decisions[1].At, 1e-9)
}

// TestSprintRelease tests that releasing the request stops the action.
func TestSprintRelease(t *testing.T) {
	r, _ := bootOfficial(t, Config{})
	gate, _ := ActionGate(r)
	st, _ := Status(r)
	mv, _ := Movement(r)

	mv.StartAutoSprint(1.5)
	r.Tick(1)
	require.True(t, mv.IsSprinting())
	r.Tick(1)
	assert.False(t, mv.IsSprintRequested())
	assert.False(t, mv.IsSprinting())
	assert.False(t, st.IsSprinting())
	assert.Empty(t, gate.ActiveActions())
}

// TestShutdownStopsSprint tests that registry shutdown releases the action.
func TestShutdownStopsSprint(t *testing.T) {
	r, _ := bootOfficial(t, Config{})
	mv, _ := Movement(r)

	mv.SetSprintRequested(true)
	r.Tick(0.1)
	require.True(t, mv.IsSprinting())

	r.Shutdown()
	assert.False(t, mv.IsSprinting())
	assert.False(t, r.IsInitialized())
}

// TestStandardCatalog_LenientFallback tests that lenient mode boots with no
// content at all.
func TestStandardCatalog_LenientFallback(t *testing.T) {
	r, _ := bootOfficial(t, Config{Provider: profile.NewMemory(), Mode: profile.ModeLenient})

	gate, ok := ActionGate(r)
	require.True(t, ok)
	assert.Equal(t, []string{"Movement.Sprint"}, gate.KnownActions())
	st, _ := Status(r)
	assert.Equal(t, profile.DevDefaultsPath, st.ProfileSource())
}

// TestStandardCatalog_StrictFailure tests that strict mode fails to boot
// without content.
func TestStandardCatalog_StrictFailure(t *testing.T) {
	r := registry.New()
	manifest, _ := ir.BuiltinManifest(ir.DefaultManifestClass)
	err := r.InitializeFromManifest(manifest, StandardCatalog(Config{Provider: profile.NewMemory()}))
	require.Error(t, err)
	assert.True(t, registry.IsInitError(err))
	assert.False(t, r.IsInitialized())
}
