package depgraph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolve_OfficialOrder tests the Status -> ActionGate -> Movement chain.
func TestResolve_OfficialOrder(t *testing.T) {
	order, err := Resolve(map[string][]string{
		"Status":     nil,
		"ActionGate": {"Status"},
		"Movement":   {"ActionGate", "Status"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Status", "ActionGate", "Movement"}, order)
}

// TestResolve_CycleCandidates tests that a back edge reports every node, sorted.
func TestResolve_CycleCandidates(t *testing.T) {
	_, err := Resolve(map[string][]string{
		"Status":     {"Movement"},
		"ActionGate": {"Status"},
		"Movement":   {"ActionGate", "Status"},
	})

	require.Error(t, err)
	require.True(t, IsCycleError(err))

	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"ActionGate", "Movement", "Status"}, ce.Candidates)
	assert.Equal(t, [][]string{{"ActionGate", "Movement", "Status"}}, ce.Cycles)
	assert.Contains(t, err.Error(), "ActionGate, Movement, Status")
}

// TestResolve_LexicalTieBreak tests that independent nodes come out in lexical order.
func TestResolve_LexicalTieBreak(t *testing.T) {
	order, err := Resolve(map[string][]string{
		"zeta":  nil,
		"alpha": nil,
		"mid":   nil,
		"Beta":  nil,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Beta", "alpha", "mid", "zeta"}, order)
}

// TestResolve_ResortAfterPop tests that a newly ready node competes lexically
// with nodes that were already waiting.
func TestResolve_ResortAfterPop(t *testing.T) {
	// "a" releases "b"; "b" must come before the already-ready "c".
	order, err := Resolve(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": nil,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

// TestResolve_IgnoresUnknownAndSelf tests that filtered edges do not block ordering.
func TestResolve_IgnoresUnknownAndSelf(t *testing.T) {
	order, err := Resolve(map[string][]string{
		"a": {"a", "missing", ""},
		"b": {"a", "a"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

// TestResolve_Empty tests that an empty graph yields an empty order.
func TestResolve_Empty(t *testing.T) {
	order, err := Resolve(nil)
	require.NoError(t, err)
	assert.Empty(t, order)
}

// TestResolve_DownstreamOfCycle tests that nodes blocked behind a cycle are
// candidates while only the loop itself is reported as a cycle.
func TestResolve_DownstreamOfCycle(t *testing.T) {
	_, err := Resolve(map[string][]string{
		"a":    {"b"},
		"b":    {"a"},
		"c":    {"a"},
		"root": nil,
	})

	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"a", "b", "c"}, ce.Candidates)
	assert.Equal(t, [][]string{{"a", "b"}}, ce.Cycles)
}

// TestResolve_ValidTopologicalOrder tests ordering over a wider DAG.
func TestResolve_ValidTopologicalOrder(t *testing.T) {
	deps := map[string][]string{}
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("n%02d", i)
		if i >= 2 {
			deps[id] = []string{fmt.Sprintf("n%02d", i/2), fmt.Sprintf("n%02d", i-1)}
		} else {
			deps[id] = nil
		}
	}

	order, err := Resolve(deps)
	require.NoError(t, err)
	require.Len(t, order, len(deps))

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for id, ds := range deps {
		for _, d := range ds {
			assert.Less(t, pos[d], pos[id], "%s must precede %s", d, id)
		}
	}
}

// TestResolve_Deterministic tests repeated runs over map inputs agree.
func TestResolve_Deterministic(t *testing.T) {
	deps := map[string][]string{
		"e": {"a"}, "d": {"a"}, "c": nil, "b": {"c"}, "a": nil,
	}

	first, err := Resolve(deps)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Resolve(deps)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []string{"a", "c", "b", "d", "e"}, first)
}
