// Package systems wires the official runtime systems into a registry
// catalog keyed by manifest SystemClass.
package systems

import (
	"log/slog"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/profile"
	"github.com/roach88/omni/internal/registry"
	"github.com/roach88/omni/internal/systems/actiongate"
	"github.com/roach88/omni/internal/systems/movement"
	"github.com/roach88/omni/internal/systems/status"
)

// Config is shared by every system the catalog builds.
type Config struct {
	Provider profile.Provider
	Mode     profile.Mode
	Logger   *slog.Logger

	// Telemetry and DecisionObservers are passed to ActionGate.
	Telemetry         actiongate.Telemetry
	DecisionObservers []func(actiongate.Decision)
}

// StandardCatalog returns factories for Status, ActionGate and Movement.
func StandardCatalog(cfg Config) registry.Catalog {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return registry.Catalog{
		ir.ClassStatusSystem: func() (registry.System, error) {
			return status.New(cfg.Provider,
				status.WithLogger(logger.With("system", ir.SystemStatus)),
				status.WithMode(cfg.Mode)), nil
		},
		ir.ClassActionGateSystem: func() (registry.System, error) {
			opts := []actiongate.Option{
				actiongate.WithLogger(logger.With("system", ir.SystemActionGate)),
				actiongate.WithMode(cfg.Mode),
				actiongate.WithTelemetry(cfg.Telemetry),
			}
			for _, fn := range cfg.DecisionObservers {
				opts = append(opts, actiongate.WithDecisionObserver(fn))
			}
			return actiongate.New(cfg.Provider, opts...), nil
		},
		ir.ClassMovementSystem: func() (registry.System, error) {
			return movement.New(cfg.Provider,
				movement.WithLogger(logger.With("system", ir.SystemMovement)),
				movement.WithMode(cfg.Mode)), nil
		},
	}
}

// Lookup returns the active system with the given id as a T.
func Lookup[T registry.System](r *registry.Registry, id string) (T, bool) {
	var zero T
	sys, ok := r.System(id)
	if !ok {
		return zero, false
	}
	typed, ok := sys.(T)
	return typed, ok
}

// ActionGate returns the active ActionGate, if any.
func ActionGate(r *registry.Registry) (*actiongate.System, bool) {
	return Lookup[*actiongate.System](r, ir.SystemActionGate)
}

// Status returns the active Status system, if any.
func Status(r *registry.Registry) (*status.System, bool) {
	return Lookup[*status.System](r, ir.SystemStatus)
}

// Movement returns the active Movement system, if any.
func Movement(r *registry.Registry) (*movement.System, bool) {
	return Lookup[*movement.System](r, ir.SystemMovement)
}
