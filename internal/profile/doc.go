// Package profile loads the content documents that configure the runtime
// systems: action profiles and libraries for ActionGate, and settings
// profiles and libraries for Status and Movement.
//
// A profile points at a library and may override it. Documents are
// addressed by object path (/Game/Omni/Data/Action/DA_X.DA_X) and are
// served by a Provider. FileProvider maps object paths onto YAML or CUE
// files under a content directory; Memory serves documents built in code.
//
// Documents carry a kind field naming their type:
//
//	kind: ActionLibrary
//	definitions:
//	  - actionId: Movement.Sprint
//	    policy: DenyIfActive
//	    blockedBy: [State.Exhausted]
//	    appliesLocks: [Lock.Movement.Sprint]
package profile
