package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/registry"
	"github.com/roach88/omni/internal/systems"
)

// staminaTolerance absorbs float drift from repeated ticks.
const staminaTolerance = 1e-6

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] tick=%d %s.%s", event.Seq, event.Tick, event.Source, event.Name)
			for _, k := range ir.SortedKeys(event.Payload) {
				fmt.Fprintf(&buf, " %s=%q", k, event.Payload[k])
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// AssertionContext provides the live registry for state assertions.
type AssertionContext struct {
	Registry *registry.Registry
}

// assertActiveActions checks ActionGate's active set (order-insensitive).
func assertActiveActions(actx *AssertionContext, assertion Assertion) error {
	gate, ok := systems.ActionGate(actx.Registry)
	if !ok {
		return missingSystem(AssertActiveActions, ir.SystemActionGate, actx.Registry)
	}
	want := slices.Clone(assertion.Actions)
	slices.Sort(want)
	got := gate.ActiveActions()
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertActiveActions,
			Expected: fmt.Sprintf("active actions %v", want),
			Actual:   fmt.Sprintf("active actions %v", got),
		}
	}
	return nil
}

// assertLastDecision checks the last published decision. Unset fields of
// the assertion are not compared.
func assertLastDecision(result *Result, actx *AssertionContext, assertion Assertion) error {
	gate, ok := systems.ActionGate(actx.Registry)
	if !ok {
		return missingSystem(AssertLastDecision, ir.SystemActionGate, actx.Registry)
	}
	d, ok := gate.LastDecision()
	if !ok {
		return &AssertionError{
			Type:     AssertLastDecision,
			Expected: fmt.Sprintf("a decision for %s", assertion.ActionID),
			Actual:   "no decision was published",
			Trace:    result.Trace,
		}
	}

	var mismatches []string
	if d.ActionID != assertion.ActionID {
		mismatches = append(mismatches, fmt.Sprintf("action_id %q", d.ActionID))
	}
	if assertion.Allowed != nil && d.Allowed != *assertion.Allowed {
		mismatches = append(mismatches, fmt.Sprintf("allowed %t", d.Allowed))
	}
	if assertion.Reason != "" && d.Reason != assertion.Reason {
		mismatches = append(mismatches, fmt.Sprintf("reason %q", d.Reason))
	}
	if assertion.Canceled != nil && !slices.Equal(d.CanceledActions, assertion.Canceled) {
		mismatches = append(mismatches, fmt.Sprintf("canceled %v", d.CanceledActions))
	}
	if len(mismatches) == 0 {
		return nil
	}

	expected := []string{fmt.Sprintf("action_id %q", assertion.ActionID)}
	if assertion.Allowed != nil {
		expected = append(expected, fmt.Sprintf("allowed %t", *assertion.Allowed))
	}
	if assertion.Reason != "" {
		expected = append(expected, fmt.Sprintf("reason %q", assertion.Reason))
	}
	if assertion.Canceled != nil {
		expected = append(expected, fmt.Sprintf("canceled %v", assertion.Canceled))
	}
	return &AssertionError{
		Type:     AssertLastDecision,
		Expected: strings.Join(expected, ", "),
		Actual:   strings.Join(mismatches, ", "),
		Trace:    result.Trace,
	}
}

// assertLockCount checks how many active actions hold a lock tag.
func assertLockCount(actx *AssertionContext, assertion Assertion) error {
	gate, ok := systems.ActionGate(actx.Registry)
	if !ok {
		return missingSystem(AssertLockCount, ir.SystemActionGate, actx.Registry)
	}
	if got := gate.LockCount(assertion.Tag); got != assertion.Count {
		return &AssertionError{
			Type:     AssertLockCount,
			Expected: fmt.Sprintf("%d holders of %s", assertion.Count, assertion.Tag),
			Actual:   fmt.Sprintf("%d holders (locks held: %v)", got, gate.ActiveLocks()),
		}
	}
	return nil
}

// assertStateTags checks the Status state tags (order-insensitive).
func assertStateTags(actx *AssertionContext, assertion Assertion) error {
	st, ok := systems.Status(actx.Registry)
	if !ok {
		return missingSystem(AssertStateTags, ir.SystemStatus, actx.Registry)
	}
	want := slices.Clone(assertion.Tags)
	slices.Sort(want)
	got := st.StateTags()
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertStateTags,
			Expected: fmt.Sprintf("state tags %v", want),
			Actual:   fmt.Sprintf("state tags %v", got),
		}
	}
	return nil
}

// assertStamina checks the current Status stamina.
func assertStamina(actx *AssertionContext, assertion Assertion) error {
	st, ok := systems.Status(actx.Registry)
	if !ok {
		return missingSystem(AssertStamina, ir.SystemStatus, actx.Registry)
	}
	if got := st.Stamina(); math.Abs(got-assertion.Value) > staminaTolerance {
		return &AssertionError{
			Type:     AssertStamina,
			Expected: fmt.Sprintf("stamina %g", assertion.Value),
			Actual:   fmt.Sprintf("stamina %g", got),
		}
	}
	return nil
}

// assertTraceCount checks if the event appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Name == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the events appear in the given order.
// Events don't need to be consecutive (intervening events are allowed),
// and a name may repeat.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Events) && event.Name == assertion.Events[next] {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", assertion.Events),
		Actual:   fmt.Sprintf("matched %v, then no %s", assertion.Events[:next], assertion.Events[next]),
		Trace:    trace,
	}
}

func missingSystem(assertionType, id string, r *registry.Registry) error {
	return &AssertionError{
		Type:     assertionType,
		Expected: fmt.Sprintf("system %s to be active", id),
		Actual:   fmt.Sprintf("active systems %v", activeSystemIDs(r)),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the registry for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertActiveActions, AssertLastDecision, AssertLockCount, AssertStateTags, AssertStamina:
			if actx == nil || actx.Registry == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a registry", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertActiveActions:
				err = assertActiveActions(actx, assertion)
			case AssertLastDecision:
				err = assertLastDecision(result, actx, assertion)
			case AssertLockCount:
				err = assertLockCount(actx, assertion)
			case AssertStateTags:
				err = assertStateTags(actx, assertion)
			case AssertStamina:
				err = assertStamina(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
