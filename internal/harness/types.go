package harness

import (
	"github.com/roach88/omni/internal/systems/actiongate"
)

// TraceEvent is one event broadcast on the bus during a scenario.
type TraceEvent struct {
	// Seq numbers trace events from 1.
	Seq int64 `json:"seq"`
	// Tick is the registry tick index when the event was broadcast.
	Tick    int64             `json:"tick"`
	Source  string            `json:"source"`
	Name    string            `json:"name"`
	Payload map[string]string `json:"payload,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success.
	// True if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// SessionID is the registry session the scenario ran in.
	SessionID string `json:"session_id"`

	// Trace contains every broadcast event in order.
	Trace []TraceEvent `json:"trace"`

	// Decisions contains every published ActionGate decision in order.
	Decisions []actiongate.Decision `json:"decisions"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Decisions: []actiongate.Decision{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEventTrace appends a broadcast event to the trace.
func (r *Result) AddEventTrace(tick int64, source, name string, payload map[string]string) {
	var copied map[string]string
	if len(payload) > 0 {
		copied = make(map[string]string, len(payload))
		for k, v := range payload {
			copied[k] = v
		}
	}
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     int64(len(r.Trace) + 1),
		Tick:    tick,
		Source:  source,
		Name:    name,
		Payload: copied,
	})
}
