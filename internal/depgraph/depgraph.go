// Package depgraph orders systems by their declared dependencies.
//
// Both the runtime registry and the build-time forge call Resolve, so a
// CI-validated artifact and the live initialization order always agree.
package depgraph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// CycleError reports nodes that could not be ordered.
//
// Candidates are every node left with a nonzero in-degree after Kahn's
// algorithm stalls, sorted lexically. Cycles lists the strongly connected
// components that actually form loops, each sorted, for diagnostics.
type CycleError struct {
	Candidates []string
	Cycles     [][]string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among: %s", strings.Join(e.Candidates, ", "))
}

// IsCycleError returns true if err is a *CycleError.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

// Resolve returns an initialization order for deps, which maps each node to
// the nodes it depends on.
//
// Edges run dependency -> dependent. Dependencies on ids missing from the map
// and self-references are ignored; callers filter them per their own policy
// first. Ties among ready nodes break by ascending lexical id, and the ready
// list is re-sorted after every pop.
func Resolve(deps map[string][]string) ([]string, error) {
	inDegree := make(map[string]int, len(deps))
	dependents := make(map[string][]string, len(deps))

	for id := range deps {
		inDegree[id] = 0
	}

	for id, ds := range deps {
		seen := make(map[string]bool, len(ds))
		for _, dep := range ds {
			if dep == "" || dep == id || seen[dep] {
				continue
			}
			if _, ok := deps[dep]; !ok {
				continue
			}
			seen[dep] = true
			dependents[dep] = append(dependents[dep], id)
			inDegree[id]++
		}
	}

	ready := make([]string, 0, len(deps))
	for id, d := range inDegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(deps))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		for _, dependent := range dependents[current] {
			inDegree[dependent] = max(0, inDegree[dependent]-1)
			if inDegree[dependent] == 0 && !slices.Contains(ready, dependent) {
				ready = append(ready, dependent)
			}
		}
		slices.Sort(ready)
	}

	if len(order) == len(deps) {
		return order, nil
	}

	var candidates []string
	for id, d := range inDegree {
		if d > 0 {
			candidates = append(candidates, id)
		}
	}
	slices.Sort(candidates)

	return nil, &CycleError{
		Candidates: candidates,
		Cycles:     findCycles(deps, candidates),
	}
}

// findCycles runs Tarjan's algorithm over the stalled subgraph and returns
// every component with more than one node. Self-loops never reach here
// because Resolve ignores them.
func findCycles(deps map[string][]string, nodes []string) [][]string {
	in := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		in[n] = true
	}

	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		cycles  [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps[v] {
			if !in[w] || w == v {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 {
				slices.Sort(scc)
				cycles = append(cycles, scc)
			}
		}
	}

	// nodes is sorted, so traversal order and output are deterministic.
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}

	slices.SortFunc(cycles, func(a, b []string) int {
		return strings.Compare(a[0], b[0])
	})
	return cycles
}
