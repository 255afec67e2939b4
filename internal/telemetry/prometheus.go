// Package telemetry exports ActionGate counters as Prometheus metrics.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/omni/internal/systems/actiongate"
)

const (
	metricsNamespace = "omni"
	gateSubsystem    = "actiongate"
)

// Decision result label values.
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// Prometheus implements actiongate.Telemetry.
type Prometheus struct {
	KnownActions   prometheus.Gauge
	ActiveActions  prometheus.Gauge
	ActiveLocks    prometheus.Gauge
	DecisionsTotal *prometheus.CounterVec

	mu       sync.Mutex
	snapshot Snapshot
}

// Snapshot is a point-in-time copy of the reported values.
type Snapshot struct {
	KnownActions  int
	ActiveActions int
	ActiveLocks   int
	Allowed       int
	Denied        int
	LastDecision  string
}

// NewPrometheus creates the ActionGate metrics and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Prometheus{
		KnownActions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: gateSubsystem,
			Name:      "known_actions",
			Help:      "Number of action definitions loaded by ActionGate",
		}),
		ActiveActions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: gateSubsystem,
			Name:      "active_actions",
			Help:      "Number of currently active actions",
		}),
		ActiveLocks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: gateSubsystem,
			Name:      "active_locks",
			Help:      "Number of distinct lock tags held by active actions",
		}),
		DecisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: gateSubsystem,
			Name:      "decisions_total",
			Help:      "Published start decisions by result",
		}, []string{"result"}),
	}
}

func (p *Prometheus) SetKnownActions(n int) {
	p.KnownActions.Set(float64(n))
	p.mu.Lock()
	p.snapshot.KnownActions = n
	p.mu.Unlock()
}

func (p *Prometheus) SetActiveActions(n int) {
	p.ActiveActions.Set(float64(n))
	p.mu.Lock()
	p.snapshot.ActiveActions = n
	p.mu.Unlock()
}

func (p *Prometheus) SetActiveLocks(n int) {
	p.ActiveLocks.Set(float64(n))
	p.mu.Lock()
	p.snapshot.ActiveLocks = n
	p.mu.Unlock()
}

// RecordDecision counts d under its result label and remembers it as the
// last decision.
func (p *Prometheus) RecordDecision(d actiongate.Decision) {
	result := ResultDeny
	if d.Allowed {
		result = ResultAllow
	}
	p.DecisionsTotal.WithLabelValues(result).Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	if d.Allowed {
		p.snapshot.Allowed++
	} else {
		p.snapshot.Denied++
	}
	p.snapshot.LastDecision = d.String()
}

// LastDecision returns "ALLOW | reason" or "DENY | reason" for the most
// recent decision, or "" before the first one.
func (p *Prometheus) LastDecision() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot.LastDecision
}

// Snapshot returns the reported values.
func (p *Prometheus) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

var _ actiongate.Telemetry = (*Prometheus)(nil)
