package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omni/internal/systems/actiongate"
)

func newTestPrometheus(t *testing.T) (*Prometheus, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheus(reg), reg
}

// TestPrometheus_Gauges tests that counts land in the gauges.
func TestPrometheus_Gauges(t *testing.T) {
	p, _ := newTestPrometheus(t)

	p.SetKnownActions(3)
	p.SetActiveActions(2)
	p.SetActiveLocks(1)

	assert.Equal(t, 3.0, testutil.ToFloat64(p.KnownActions))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.ActiveActions))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.ActiveLocks))

	snap := p.Snapshot()
	assert.Equal(t, 3, snap.KnownActions)
	assert.Equal(t, 2, snap.ActiveActions)
	assert.Equal(t, 1, snap.ActiveLocks)
}

// TestPrometheus_RecordDecision tests the decision counter and last
// decision text.
func TestPrometheus_RecordDecision(t *testing.T) {
	p, _ := newTestPrometheus(t)
	assert.Equal(t, "", p.LastDecision())

	p.RecordDecision(actiongate.Decision{ActionID: "Movement.Sprint", Allowed: true, Reason: "authorized"})
	p.RecordDecision(actiongate.Decision{ActionID: "Movement.Sprint", Reason: "blocked by tags: State.Exhausted"})
	p.RecordDecision(actiongate.Decision{ActionID: "Movement.Sprint", Reason: "action already active (deny policy)"})

	assert.Equal(t, 1.0, testutil.ToFloat64(p.DecisionsTotal.WithLabelValues(ResultAllow)))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.DecisionsTotal.WithLabelValues(ResultDeny)))
	assert.Equal(t, "DENY | action already active (deny policy)", p.LastDecision())

	snap := p.Snapshot()
	assert.Equal(t, 1, snap.Allowed)
	assert.Equal(t, 2, snap.Denied)
}

// TestPrometheus_Registration tests the exported metric names.
func TestPrometheus_Registration(t *testing.T) {
	p, reg := newTestPrometheus(t)
	p.RecordDecision(actiongate.Decision{Allowed: true, Reason: "authorized"})

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.ElementsMatch(t, []string{
		"omni_actiongate_known_actions",
		"omni_actiongate_active_actions",
		"omni_actiongate_active_locks",
		"omni_actiongate_decisions_total",
	}, names)

	assert.Panics(t, func() { NewPrometheus(reg) }, "duplicate registration")
}
