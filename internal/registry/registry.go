package registry

import (
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/omni/internal/depgraph"
	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/message"
)

// Registry owns the live system set and routes messages between systems.
//
// The registry is the single writer of its state: initialization, ticks
// and message routing must all happen on one goroutine. Systems may call
// back into the bus from their handlers (a command handler issuing a
// query, for example); those calls are synchronous and re-entrant.
//
// INVARIANTS:
//   - systems and order hold the same set, order is the init order
//   - initialized is true only after every system finished Init
//   - a failed initialization leaves the registry empty
type Registry struct {
	logger    *slog.Logger
	clock     *WorldClock
	sessions  SessionIDGenerator
	observers []func(message.Event)

	initialized bool
	manifest    *ir.Manifest
	sessionID   string
	order       []string
	active      []System
	byID        map[string]System
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the world clock shared with systems.
func WithClock(c *WorldClock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithSessionIDs sets the generator used to tag each initialization.
// Default: UUIDv7Generator.
func WithSessionIDs(g SessionIDGenerator) Option {
	return func(r *Registry) {
		if g != nil {
			r.sessions = g
		}
	}
}

// WithEventObserver registers fn to see every event that passes
// validation, before it is delivered to systems.
func WithEventObserver(fn func(message.Event)) Option {
	return func(r *Registry) {
		if fn != nil {
			r.observers = append(r.observers, fn)
		}
	}
}

// New creates an empty, uninitialized registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:   slog.Default(),
		clock:    NewWorldClock(),
		sessions: UUIDv7Generator{},
		byID:     make(map[string]System),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InitializeFromSpecs brings up the given systems in dependency order.
//
// Any live system set is shut down first. Self dependencies are dropped
// and dependencies on ids outside specs are dropped with a warning. On
// failure every system initialized so far is shut down in reverse order
// and the registry is left empty.
func (r *Registry) InitializeFromSpecs(specs []ComponentSpec, manifest *ir.Manifest) error {
	r.Shutdown()

	if len(specs) == 0 {
		r.logger.Warn("registry has nothing to initialize")
		return newError(ErrCodeEmptySpecs, "", "no systems to initialize")
	}

	byID := make(map[string]ComponentSpec, len(specs))
	for _, spec := range specs {
		id := strings.TrimSpace(spec.ID)
		if id == "" {
			return newError(ErrCodeEmptySystemID, "", "system spec has an empty id")
		}
		if _, dup := byID[id]; dup {
			return newError(ErrCodeDuplicateSystem, id, "system id %q declared more than once", id)
		}
		spec.ID = id
		byID[id] = spec
	}

	graph := make(map[string][]string, len(byID))
	for id, spec := range byID {
		deps := make([]string, 0, len(spec.Dependencies))
		for _, dep := range spec.Dependencies {
			dep = strings.TrimSpace(dep)
			switch {
			case dep == "", dep == id:
				continue
			case !hasSpec(byID, dep):
				r.logger.Warn("dropping unknown dependency",
					"system", id,
					"dependency", dep)
				continue
			}
			deps = append(deps, dep)
		}
		graph[id] = deps
	}

	order, err := depgraph.Resolve(graph)
	if err != nil {
		re := newError(ErrCodeDependencyCycle, "", "cannot order systems")
		re.Err = err
		var ce *depgraph.CycleError
		if errors.As(err, &ce) {
			re.Details = map[string]string{"candidates": strings.Join(ce.Candidates, ", ")}
		}
		r.logger.Error("registry initialization failed",
			"code", re.Code,
			"error", err)
		return re
	}

	for _, id := range order {
		spec := byID[id]
		if spec.Factory == nil {
			r.rollback()
			return newError(ErrCodeFactoryFailed, id, "system has no factory")
		}
		sys, err := spec.Factory()
		if err != nil || sys == nil {
			r.rollback()
			re := newError(ErrCodeFactoryFailed, id, "could not create system")
			re.Err = err
			r.logger.Error("registry initialization failed",
				"code", re.Code,
				"system", id,
				"error", err)
			return re
		}
		if err := sys.Init(r, manifest); err != nil {
			r.rollback()
			re := newError(ErrCodeInitFailed, id, "system failed to initialize")
			re.Err = err
			r.logger.Error("registry initialization failed",
				"code", re.Code,
				"system", id,
				"error", err)
			return re
		}
		r.active = append(r.active, sys)
		r.order = append(r.order, id)
		r.byID[id] = sys
	}

	r.manifest = manifest
	r.sessionID = r.sessions.Generate()
	r.initialized = true

	r.logger.Info("registry initialized",
		"systems", len(r.active),
		"order", strings.Join(r.order, ","),
		"session", r.sessionID)
	return nil
}

func hasSpec(specs map[string]ComponentSpec, id string) bool {
	_, ok := specs[id]
	return ok
}

// InitializeFromManifest builds specs from the enabled manifest entries
// and initializes them.
//
// Each entry's SystemClass selects a factory from catalog. An entry
// without a SystemId takes the system's own ID(); an entry without
// dependencies takes the system's own Dependencies(). Entries whose class
// is empty or not in the catalog are skipped with a warning.
func (r *Registry) InitializeFromManifest(manifest *ir.Manifest, catalog Catalog) error {
	r.Shutdown()
	if manifest == nil {
		r.logger.Warn("registry initialization skipped: nil manifest")
		return newError(ErrCodeNilManifest, "", "manifest is nil")
	}

	specs, err := r.buildSpecs(manifest, catalog)
	if err != nil {
		return err
	}
	return r.InitializeFromSpecs(specs, manifest)
}

func (r *Registry) buildSpecs(manifest *ir.Manifest, catalog Catalog) ([]ComponentSpec, error) {
	var specs []ComponentSpec
	seen := make(map[string]bool)

	for _, entry := range manifest.Systems {
		if !entry.Enabled {
			continue
		}
		factory, ok := catalog[strings.TrimSpace(entry.SystemClass)]
		if !ok || factory == nil {
			r.logger.Warn("skipping manifest entry with unknown class",
				"manifest", manifest.Name,
				"system", entry.SystemID,
				"class", entry.SystemClass)
			continue
		}

		sys, err := factory()
		if err != nil || sys == nil {
			re := newError(ErrCodeFactoryFailed, entry.SystemID, "could not create system of class %q", entry.SystemClass)
			re.Err = err
			return nil, re
		}

		id := strings.TrimSpace(entry.SystemID)
		if id == "" {
			id = sys.ID()
		}
		if id == "" {
			id = entry.SystemClass
		}
		if seen[id] {
			r.logger.Error("duplicate system id in manifest",
				"manifest", manifest.Name,
				"system", id)
			return nil, newError(ErrCodeDuplicateSystem, id, "system id %q declared more than once in manifest %q", id, manifest.Name)
		}
		seen[id] = true

		deps := slices.Clone(entry.Dependencies)
		if len(deps) == 0 {
			deps = slices.Clone(sys.Dependencies())
		}

		instance := sys
		specs = append(specs, ComponentSpec{
			ID:           id,
			Dependencies: deps,
			Factory:      func() (System, error) { return instance, nil },
		})
	}

	if len(specs) == 0 {
		r.logger.Warn("manifest has no enabled systems",
			"manifest", manifest.Name)
		return nil, newError(ErrCodeEmptySpecs, "", "manifest %q has no enabled systems", manifest.Name)
	}
	return specs, nil
}

// rollback shuts down whatever was initialized during a failed attempt.
func (r *Registry) rollback() {
	r.shutdownActive()
	r.reset()
}

// Shutdown stops every live system in reverse initialization order.
// Safe to call at any time, including on an empty registry.
func (r *Registry) Shutdown() {
	if len(r.active) > 0 || r.initialized {
		count := len(r.active)
		r.shutdownActive()
		r.logger.Info("registry shut down", "systems", count)
	}
	r.reset()
}

func (r *Registry) shutdownActive() {
	for i := len(r.active) - 1; i >= 0; i-- {
		r.active[i].Shutdown()
	}
}

func (r *Registry) reset() {
	r.initialized = false
	r.manifest = nil
	r.sessionID = ""
	r.order = nil
	r.active = nil
	r.byID = make(map[string]System)
}

// DispatchCommand routes cmd to its target system.
//
// Returns false when the registry is not initialized, the target is
// empty or unknown, or the command fails schema validation. Otherwise
// returns the target's handler result.
func (r *Registry) DispatchCommand(cmd message.Command) bool {
	if !r.initialized || cmd.Target == "" {
		return false
	}
	if err := message.ValidateCommand(cmd); err != nil {
		r.logger.Warn("command rejected",
			"source", cmd.Source,
			"target", cmd.Target,
			"command", cmd.Name,
			"error", err)
		return false
	}
	sys, ok := r.byID[cmd.Target]
	if !ok {
		r.logger.Warn("command target not found",
			"source", cmd.Source,
			"target", cmd.Target,
			"command", cmd.Name)
		return false
	}
	return sys.HandleCommand(cmd)
}

// ExecuteQuery routes q to its target system.
//
// The response fields are reset before routing, so a rejected query
// never carries a stale response. Handled is sticky: a handler that
// marks the query handled keeps it handled even if it returns false.
func (r *Registry) ExecuteQuery(q *message.Query) bool {
	if q == nil {
		return false
	}
	q.ResetResponse()
	if !r.initialized || q.Target == "" {
		return false
	}
	if err := message.ValidateQuery(q); err != nil {
		r.logger.Warn("query rejected",
			"source", q.Source,
			"target", q.Target,
			"query", q.Name,
			"error", err)
		return false
	}
	sys, ok := r.byID[q.Target]
	if !ok {
		r.logger.Warn("query target not found",
			"source", q.Source,
			"target", q.Target,
			"query", q.Name)
		return false
	}
	handled := sys.HandleQuery(q)
	q.Handled = q.Handled || handled
	return handled
}

// BroadcastEvent delivers evt to every live system in initialization
// order, including the source. Invalid events are dropped.
func (r *Registry) BroadcastEvent(evt message.Event) {
	if !r.initialized {
		return
	}
	if err := message.ValidateEvent(evt); err != nil {
		r.logger.Warn("event rejected",
			"source", evt.Source,
			"event", evt.Name,
			"error", err)
		return
	}
	for _, fn := range r.observers {
		fn(evt)
	}
	// Index loop: a handler may trigger Shutdown and clear r.active.
	for i := 0; i < len(r.active); i++ {
		r.active[i].HandleEvent(evt)
	}
}

// Tick advances the world clock by dt and ticks every tick-enabled
// system in initialization order.
func (r *Registry) Tick(dt float64) {
	if !r.initialized {
		return
	}
	r.clock.Advance(dt)
	for i := 0; i < len(r.active); i++ {
		if sys := r.active[i]; sys.TickEnabled() {
			sys.Tick(dt)
		}
	}
}

// Now returns the world clock time in seconds.
func (r *Registry) Now() float64 {
	return r.clock.Now()
}

// Clock returns the world clock.
func (r *Registry) Clock() *WorldClock {
	return r.clock
}

// IsInitialized reports whether a system set is live.
func (r *Registry) IsInitialized() bool {
	return r.initialized
}

// InitializationOrder returns the ids in the order they were initialized.
func (r *Registry) InitializationOrder() []string {
	return slices.Clone(r.order)
}

// ActiveSystemIDs returns the live system ids sorted lexically.
func (r *Registry) ActiveSystemIDs() []string {
	ids := slices.Clone(r.order)
	slices.Sort(ids)
	return ids
}

// System returns the live system with the given id.
func (r *Registry) System(id string) (System, bool) {
	sys, ok := r.byID[id]
	return sys, ok
}

// Manifest returns the manifest of the live system set, or nil.
func (r *Registry) Manifest() *ir.Manifest {
	return r.manifest
}

// SessionID returns the id tagging the live system set, or "".
func (r *Registry) SessionID() string {
	return r.sessionID
}

var _ Bus = (*Registry)(nil)
