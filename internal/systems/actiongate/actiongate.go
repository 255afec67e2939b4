// Package actiongate implements the ActionGate decision engine.
//
// ActionGate owns the set of known action definitions, the set of active
// actions and the reference-counted lock tags those actions apply. A start
// request is allowed or denied from the action's definition, its active
// policy, the state tags asserted by Status and the locks held by other
// actions.
//
// Evaluation order:
//
//  1. engine not initialized or empty id: deny
//  2. unknown or disabled action: deny
//  3. already active: apply the policy (deny, succeed, restart)
//  4. BlockedBy intersects state tags or active locks: deny
//  5. apply: stop cancelled actions, mark active, add locks
//  6. allow
package actiongate

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/message"
	"github.com/roach88/omni/internal/profile"
	"github.com/roach88/omni/internal/registry"
)

// System is the ActionGate runtime system.
type System struct {
	registry.Base

	provider  profile.Provider
	mode      profile.Mode
	logger    *slog.Logger
	telemetry Telemetry
	observers []func(Decision)

	bus         registry.Bus
	initialized bool
	profileName string
	profilePath string
	libraryPath string

	definitions map[string]profile.ActionDefinition
	active      map[string]bool
	locks       map[string]int

	last    Decision
	hasLast bool
	seq     int64
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *System) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMode selects strict or lenient content handling. Default: strict.
func WithMode(m profile.Mode) Option {
	return func(s *System) { s.mode = m }
}

// WithTelemetry sets the telemetry sink. Default: NopTelemetry.
func WithTelemetry(t Telemetry) Option {
	return func(s *System) {
		if t != nil {
			s.telemetry = t
		}
	}
}

// WithDecisionObserver registers fn to receive every published decision.
func WithDecisionObserver(fn func(Decision)) Option {
	return func(s *System) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// New creates an uninitialized ActionGate reading profiles from p.
func New(p profile.Provider, opts ...Option) *System {
	s := &System{
		provider:    p,
		logger:      slog.Default(),
		telemetry:   NopTelemetry{},
		definitions: make(map[string]profile.ActionDefinition),
		active:      make(map[string]bool),
		locks:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns "ActionGate".
func (s *System) ID() string { return ir.SystemActionGate }

// Dependencies returns Status, which answers the state tag query.
func (s *System) Dependencies() []string { return []string{ir.SystemStatus} }

// Init loads the action profile named by the manifest entry, validates
// its definitions and resets all runtime state.
func (s *System) Init(bus registry.Bus, manifest *ir.Manifest) error {
	s.reset()
	s.bus = bus

	defs, err := s.loadDefinitions(manifest)
	if err != nil {
		if s.mode != profile.ModeLenient {
			s.logger.Error("actiongate init failed",
				"system_id", s.ID(),
				"error", err)
			return err
		}
		s.logger.Warn("actiongate falling back to dev defaults",
			"mode", s.mode,
			"error", err)
		dev := profile.DevDefaults().Actions
		defs = dev.Definitions
		s.profileName = dev.Name
		s.profilePath = profile.DevDefaultsPath
		s.libraryPath = dev.Path
	}

	labels := profile.Labels{Profile: s.profileLabel(), Library: s.libraryLabel()}
	defs, issues := profile.ValidateDefinitions(defs, labels, s.mode == profile.ModeLenient)
	for _, issue := range issues {
		if s.mode == profile.ModeLenient {
			s.logger.Warn(issue.Message)
		} else {
			s.logger.Error(issue.Message)
		}
	}
	if len(issues) > 0 && s.mode != profile.ModeLenient {
		err := fmt.Errorf("ActionProfile validation failed for SystemId '%s' [Profile=%s Path=%s Setting=%s]. %s",
			s.ID(), s.profileLabel(), s.profilePath, ir.SettingActionProfile,
			profile.SummarizeIssues(issues, 3))
		s.reset()
		return err
	}

	s.rebuildDefinitionMap(defs)
	if len(s.definitions) == 0 {
		msg := fmt.Sprintf("No action definitions are available after profile resolution [SystemId=%s Profile=%s]. Configure '%s' in manifest and populate ActionLibrary '%s'.",
			s.ID(), s.profileLabel(), ir.SettingActionProfile, s.libraryLabel())
		if s.mode != profile.ModeLenient {
			s.logger.Error(msg)
			s.reset()
			return errors.New(msg)
		}
		s.logger.Warn(msg)
	}

	s.initialized = true
	s.publishCounts()
	s.logger.Info("actiongate initialized",
		"profile", s.profileLabel(),
		"path", s.profilePath,
		"library", s.libraryLabel(),
		"actions", len(s.definitions),
		"mode", s.mode)
	return nil
}

func (s *System) loadDefinitions(manifest *ir.Manifest) ([]profile.ActionDefinition, error) {
	if manifest == nil {
		return nil, fmt.Errorf("actiongate: manifest is nil")
	}
	entry := manifest.EntryFor(s.ID(), ir.ClassActionGateSystem)
	if entry == nil {
		return nil, fmt.Errorf("actiongate: SystemId '%s' not found in manifest '%s'", s.ID(), manifest.Name)
	}
	path := entry.ProfilePath(ir.SettingActionProfile)
	if path == "" {
		return nil, fmt.Errorf("actiongate: missing required manifest setting '%s' for SystemId '%s'. Expected an ActionProfile path (example: %s)",
			ir.SettingActionProfile, s.ID(), ir.DefaultProfilePath(ir.SystemActionGate))
	}
	s.profilePath = path
	if s.provider == nil {
		return nil, fmt.Errorf("actiongate: no profile provider configured")
	}

	prof, err := s.provider.LoadActionProfile(path)
	if err != nil {
		return nil, fmt.Errorf("actiongate: loading ActionProfile %s: %w", path, err)
	}
	s.profileName = prof.Name
	if strings.TrimSpace(prof.LibraryPath) == "" {
		return nil, fmt.Errorf("actiongate: profile '%s' for SystemId '%s' has null ActionLibrary. Assign ActionLibrary in '%s'.",
			s.profileLabel(), s.ID(), path)
	}
	s.libraryPath = prof.LibraryPath
	lib, err := s.provider.LoadActionLibrary(prof.LibraryPath)
	if err != nil {
		return nil, fmt.Errorf("actiongate: loading ActionLibrary %s: %w", prof.LibraryPath, err)
	}
	return profile.ResolveDefinitions(prof, lib), nil
}

func (s *System) profileLabel() string {
	if s.profileName != "" {
		return s.profileName
	}
	if s.profilePath != "" {
		return s.profilePath
	}
	return "<unknown>"
}

func (s *System) libraryLabel() string {
	if s.libraryPath != "" {
		return s.libraryPath
	}
	return "<unknown>"
}

// rebuildDefinitionMap indexes defs by id. A later duplicate replaces an
// earlier one.
func (s *System) rebuildDefinitionMap(defs []profile.ActionDefinition) {
	clear(s.definitions)
	for _, def := range defs {
		if strings.TrimSpace(def.ActionID) == "" {
			continue
		}
		if _, dup := s.definitions[def.ActionID]; dup {
			s.logger.Warn("duplicate action definition, keeping the last one",
				"action_id", def.ActionID)
		}
		s.definitions[def.ActionID] = def
	}
}

func (s *System) reset() {
	s.initialized = false
	s.profileName = ""
	s.profilePath = ""
	s.libraryPath = ""
	clear(s.definitions)
	clear(s.active)
	clear(s.locks)
	s.last = Decision{}
	s.hasLast = false
	s.seq = 0
}

// Shutdown clears definitions, active actions and locks.
func (s *System) Shutdown() {
	s.reset()
	s.bus = nil
	s.logger.Info("actiongate shut down")
}

// HandleCommand handles StartAction and StopAction. It returns whether the
// start was allowed or the stop removed an active action.
func (s *System) HandleCommand(cmd message.Command) bool {
	switch cmd.Name {
	case message.CommandStartAction:
		parsed, err := message.StartActionFromMessage(cmd)
		if err != nil {
			return false
		}
		return s.TryStartAction(parsed.ActionID).Allowed
	case message.CommandStopAction:
		parsed, err := message.StopActionFromMessage(cmd)
		if err != nil {
			return false
		}
		return s.Stop(parsed.ActionID, parsed.Reason)
	}
	return false
}

// HandleQuery answers CanStartAction and IsActionActive.
func (s *System) HandleQuery(q *message.Query) bool {
	switch q.Name {
	case message.QueryCanStartAction:
		q.Handled = true
		if err := message.ValidateCanStartAction(q); err != nil {
			q.Success = false
			q.Result = err.Error()
			return true
		}
		d := s.Evaluate(q.Arguments[message.KeyActionID], false)
		q.Success = d.Allowed
		q.Result = d.Reason
		q.SetOutput(message.KeyReason, d.Reason)
		return true
	case message.QueryIsActionActive:
		q.Handled = true
		id, _ := q.Arg(message.KeyActionID)
		id = strings.TrimSpace(id)
		if id == "" {
			q.Success = false
			q.Result = "Missing ActionId"
			return true
		}
		q.Success = true
		q.Result = message.FormatBool(s.IsActionActive(id))
		return true
	}
	return false
}

// Evaluate decides whether actionID may start. With applyChanges set, an
// allowed decision also stops cancelled actions, marks the action active
// and applies its locks; a restart stops the running instance first.
func (s *System) Evaluate(actionID string, applyChanges bool) Decision {
	d := Decision{ActionID: actionID, At: s.now()}
	if !s.initialized || strings.TrimSpace(actionID) == "" {
		d.Reason = ReasonNotInitialized
		return d
	}

	def, ok := s.definitions[actionID]
	if !ok || !def.Enabled {
		d.Reason = fmt.Sprintf("action '%s' unknown or disabled; known actions: [%s]",
			actionID, strings.Join(s.KnownActions(), ", "))
		if s.mode == profile.ModeLenient {
			s.logger.Warn("action not found", "action_id", actionID, "profile", s.profileLabel())
		} else {
			s.logger.Error("action not found", "action_id", actionID, "profile", s.profileLabel())
		}
		return d
	}
	d.Policy = def.Policy

	if s.active[actionID] {
		switch def.Policy {
		case profile.SucceedIfActive:
			d.Allowed = true
			d.Reason = ReasonSucceedActive
			return d
		case profile.RestartIfActive:
			if applyChanges {
				s.Stop(actionID, StopReasonRestart)
			}
			d.Reason = ReasonRestarted
		default:
			d.Reason = ReasonDenyActive
			return d
		}
	}

	blocking := s.blockingContext()
	for _, tag := range def.BlockedBy {
		if matchesTag(tag, blocking) {
			blocked := slices.Clone(def.BlockedBy)
			slices.Sort(blocked)
			d.Allowed = false
			d.Reason = "blocked by tags: " + strings.Join(blocked, ", ")
			return d
		}
	}

	if applyChanges {
		for _, cancel := range def.Cancels {
			if cancel == "" || !s.active[cancel] {
				continue
			}
			if s.Stop(cancel, actionID) {
				d.CanceledActions = append(d.CanceledActions, cancel)
			}
		}
		s.active[actionID] = true
		for _, lock := range def.AppliesLocks {
			s.locks[lock]++
		}
	}

	d.Allowed = true
	if d.Reason == "" {
		d.Reason = ReasonAuthorized
	}
	return d
}

// blockingContext returns the Status state tags united with the active
// lock tags.
func (s *System) blockingContext() map[string]bool {
	tags := make(map[string]bool)
	if s.bus != nil {
		q := message.GetStateTagsCsv{Source: ir.SystemActionGate}.ToMessage()
		if s.bus.ExecuteQuery(q) && q.Success {
			if parsed, err := message.GetStateTagsCsvFromMessage(q); err == nil {
				for _, tag := range parsed.Tags() {
					tags[tag] = true
				}
			}
		}
	}
	for tag, n := range s.locks {
		if n > 0 {
			tags[tag] = true
		}
	}
	return tags
}

// matchesTag reports whether tag or one of its parents is in tags.
// "State.Exhausted.Heavy" matches a context holding "State.Exhausted".
func matchesTag(tag string, tags map[string]bool) bool {
	for tag != "" {
		if tags[tag] {
			return true
		}
		i := strings.LastIndexByte(tag, '.')
		if i < 0 {
			return false
		}
		tag = tag[:i]
	}
	return false
}

// TryStartAction evaluates actionID with changes applied and publishes the
// decision.
func (s *System) TryStartAction(actionID string) Decision {
	d := s.Evaluate(actionID, true)
	return s.publish(d)
}

func (s *System) publish(d Decision) Decision {
	s.seq++
	d.Seq = s.seq
	s.last = d.Clone()
	s.hasLast = true

	s.publishCounts()
	s.telemetry.RecordDecision(d.Clone())
	for _, fn := range s.observers {
		fn(d.Clone())
	}
	if s.bus != nil {
		s.bus.BroadcastEvent(message.ActionDecision{
			Source:   ir.SystemActionGate,
			ActionID: d.ActionID,
			Allowed:  d.Allowed,
			Reason:   d.Reason,
		}.ToMessage())
	}

	attrs := []any{
		"action_id", d.ActionID,
		"reason", d.Reason,
		"seq", d.Seq,
	}
	if len(d.CanceledActions) > 0 {
		attrs = append(attrs, "canceled", d.CanceledActions)
	}
	s.logger.Info(d.Result(), attrs...)
	return d
}

func (s *System) publishCounts() {
	s.telemetry.SetKnownActions(len(s.definitions))
	s.telemetry.SetActiveActions(len(s.active))
	s.telemetry.SetActiveLocks(len(s.locks))
}

// Stop ends an active action and releases its locks. It returns false if
// the action was not active.
func (s *System) Stop(actionID, reason string) bool {
	if !s.active[actionID] {
		return false
	}
	delete(s.active, actionID)
	if def, ok := s.definitions[actionID]; ok {
		for _, lock := range def.AppliesLocks {
			if n := s.locks[lock] - 1; n > 0 {
				s.locks[lock] = n
			} else {
				delete(s.locks, lock)
			}
		}
	}
	s.logger.Debug("action stopped",
		"action_id", actionID,
		"reason", reason)
	s.publishCounts()
	return true
}

func (s *System) now() float64 {
	if s.bus == nil {
		return 0
	}
	return s.bus.Now()
}

// IsActionActive reports whether actionID is active.
func (s *System) IsActionActive(actionID string) bool { return s.active[actionID] }

// ActiveActions returns the active action ids, sorted.
func (s *System) ActiveActions() []string { return sortedKeys(s.active) }

// ActiveLocks returns the held lock tags, sorted.
func (s *System) ActiveLocks() []string { return sortedKeys(s.locks) }

// LockCount returns how many active actions hold tag.
func (s *System) LockCount(tag string) int { return s.locks[tag] }

// KnownActions returns the ids of all loaded definitions, sorted.
func (s *System) KnownActions() []string { return sortedKeys(s.definitions) }

// Definition returns the loaded definition for actionID.
func (s *System) Definition(actionID string) (profile.ActionDefinition, bool) {
	def, ok := s.definitions[actionID]
	if !ok {
		return profile.ActionDefinition{}, false
	}
	return def.Clone(), true
}

// LastDecision returns the most recent published decision.
func (s *System) LastDecision() (Decision, bool) { return s.last.Clone(), s.hasLast }

// IsInitialized reports whether Init succeeded and Shutdown has not run.
func (s *System) IsInitialized() bool { return s.initialized }

// ProfilePath returns the object path of the loaded action profile.
func (s *System) ProfilePath() string { return s.profilePath }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var _ registry.System = (*System)(nil)
