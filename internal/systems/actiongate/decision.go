package actiongate

import (
	"slices"

	"github.com/roach88/omni/internal/profile"
)

// Decision reasons.
const (
	ReasonNotInitialized = "engine not initialized or empty action id"
	ReasonDenyActive     = "action already active (deny policy)"
	ReasonSucceedActive  = "action already active (succeed policy)"
	ReasonRestarted      = "action restarted (restart policy)"
	ReasonAuthorized     = "authorized"

	// StopReasonRestart is the stop reason used when RestartIfActive
	// restarts an action.
	StopReasonRestart = "RestartPolicy"
)

// Decision is the outcome of evaluating one start request.
type Decision struct {
	// Seq numbers published decisions from 1 within an Init.
	// Zero for evaluations that were never published.
	Seq             int64
	ActionID        string
	Allowed         bool
	Reason          string
	Policy          profile.Policy
	CanceledActions []string
	// At is the bus time of the decision in seconds.
	At float64
}

// Result returns "ALLOW" or "DENY".
func (d Decision) Result() string {
	if d.Allowed {
		return "ALLOW"
	}
	return "DENY"
}

// String formats d as "ALLOW | reason" or "DENY | reason".
func (d Decision) String() string {
	return d.Result() + " | " + d.Reason
}

// Clone returns a copy of d that shares no slices with it.
func (d Decision) Clone() Decision {
	d.CanceledActions = slices.Clone(d.CanceledActions)
	return d
}

// Telemetry receives ActionGate counters after each published decision.
type Telemetry interface {
	SetKnownActions(n int)
	SetActiveActions(n int)
	SetActiveLocks(n int)
	RecordDecision(d Decision)
}

// NopTelemetry discards everything.
type NopTelemetry struct{}

func (NopTelemetry) SetKnownActions(int)     {}
func (NopTelemetry) SetActiveActions(int)    {}
func (NopTelemetry) SetActiveLocks(int)      {}
func (NopTelemetry) RecordDecision(Decision) {}

var _ Telemetry = NopTelemetry{}
