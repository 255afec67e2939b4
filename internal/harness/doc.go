// Package harness runs YAML scenarios against the official runtime
// systems.
//
// A scenario boots a registry from a manifest, drives it with commands,
// queries, events and ticks, and validates the final state and the trace
// of broadcast events.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: sprint_exhaustion
//	description: "Sprinting drains stamina until the sprint is denied"
//	manifest: Omni.Official
//	content: ../../../../testdata/content
//	steps:
//	  - sprint: { requested: true }
//	  - tick: { dt: 1, count: 5 }
//	  - command:
//	      target: ActionGate
//	      name: StartAction
//	      args: { ActionId: Combat.Attack }
//	      expect_handled: true
//	  - query:
//	      target: ActionGate
//	      name: CanStartAction
//	      args: { ActionId: Movement.Sprint }
//	      expect: { success: false, result: "blocked by tags: State.Exhausted" }
//	  - tag: { set: [State.Stunned] }
//	assertions:
//	  - type: active_actions
//	    actions: [Combat.Attack]
//	  - type: last_decision
//	    action_id: Combat.Attack
//	    allowed: true
//	  - type: lock_count
//	    tag: Lock.Combat
//	    count: 1
//
// # Assertion Types
//
//   - active_actions: ActionGate's active actions equal the given set
//   - last_decision: the last published decision matches the given fields
//   - lock_count: a lock tag has exactly N holders
//   - state_tags: Status state tags equal the given set
//   - stamina: Status stamina equals a value
//   - trace_count: an event appears exactly N times
//   - trace_order: events appear in the given order
//
// # Deterministic Testing
//
// The world clock only moves on tick steps and the session id is fixed
// (scenario.session_id or DefaultSessionID), so identical scenarios
// produce identical traces. RunWithGolden compares the canonical JSON
// trace against testdata/golden/<name>.golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/sprint_exhaustion.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
