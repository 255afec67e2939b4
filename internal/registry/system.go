package registry

import (
	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/message"
)

// Bus is the handle a live system uses to talk to its peers.
// Implemented by *Registry.
type Bus interface {
	DispatchCommand(cmd message.Command) bool
	ExecuteQuery(q *message.Query) bool
	BroadcastEvent(evt message.Event)

	// Now returns the simulated world time in seconds.
	Now() float64
}

// System is the contract every runtime component implements.
//
// Lifecycle: the registry calls Init exactly once, in dependency order.
// A non-nil error from Init aborts the whole initialization. Shutdown is
// called in reverse order and must be safe after a partial Init.
//
// Handlers return true when they recognised and handled the message.
type System interface {
	ID() string
	Dependencies() []string

	Init(bus Bus, manifest *ir.Manifest) error
	Shutdown()

	TickEnabled() bool
	Tick(dt float64)

	HandleCommand(cmd message.Command) bool
	HandleQuery(q *message.Query) bool
	HandleEvent(evt message.Event)
}

// Base is an embeddable System with no-op defaults.
// Embedders override what they need and must still provide ID.
type Base struct{}

func (Base) Dependencies() []string             { return nil }
func (Base) Init(Bus, *ir.Manifest) error       { return nil }
func (Base) Shutdown()                          {}
func (Base) TickEnabled() bool                  { return false }
func (Base) Tick(float64)                       {}
func (Base) HandleCommand(message.Command) bool { return false }
func (Base) HandleQuery(*message.Query) bool    { return false }
func (Base) HandleEvent(message.Event)          {}

// Factory creates a fresh, uninitialized system.
type Factory func() (System, error)

// ComponentSpec describes one system to bring up.
type ComponentSpec struct {
	ID           string
	Dependencies []string
	Factory      Factory
}

// Catalog maps a manifest SystemClass to the factory that builds it.
type Catalog map[string]Factory
