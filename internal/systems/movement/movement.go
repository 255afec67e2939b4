// Package movement implements the Movement system, which turns a sprint
// request into ActionGate start and stop commands and keeps Status
// informed of the sprint state.
package movement

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/message"
	"github.com/roach88/omni/internal/profile"
	"github.com/roach88/omni/internal/registry"
)

const epsilon = 1e-4

// Stop reasons sent with StopAction.
const (
	StopReleased       = "Released"
	StopExhausted      = "Exhausted"
	StopExhaustedEvent = "ExhaustedEvent"
	StopShutdown       = "Shutdown"
)

// System is the Movement runtime system.
type System struct {
	registry.Base

	provider profile.Provider
	mode     profile.Mode
	logger   *slog.Logger

	bus      registry.Bus
	settings profile.MovementSettings
	source   string

	requested     bool
	sprinting     bool
	nextAttempt   float64
	autoRemaining float64
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

// New creates an uninitialized Movement system reading profiles from p.
func New(p profile.Provider, opts ...Option) *System {
	s := &System{
		provider: p,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns "Movement".
func (s *System) ID() string { return ir.SystemMovement }

// Dependencies returns ActionGate and Status.
func (s *System) Dependencies() []string {
	return []string{ir.SystemActionGate, ir.SystemStatus}
}

// TickEnabled reports true; sprint state advances every tick.
func (s *System) TickEnabled() bool { return true }

// Init loads the movement profile and clears the sprint state. A positive
// AutoSprintSeconds setting starts an auto sprint right away.
func (s *System) Init(bus registry.Bus, manifest *ir.Manifest) error {
	s.bus = bus
	settings, source, err := s.loadSettings(manifest)
	if err != nil {
		if s.mode != profile.ModeLenient {
			s.logger.Error("movement init failed", "error", err)
			return err
		}
		s.logger.Warn("movement falling back to dev defaults",
			"mode", s.mode,
			"error", err)
		settings = profile.DevDefaults().Movement
		source = profile.DevDefaultsPath
	}

	s.settings = settings
	s.source = source
	s.requested = false
	s.sprinting = false
	s.nextAttempt = 0
	s.autoRemaining = 0

	s.logger.Info("movement initialized",
		"profile", source,
		"sprint_action", settings.SprintActionID)
	if settings.AutoSprintSeconds > 0 {
		s.StartAutoSprint(settings.AutoSprintSeconds)
	}
	return nil
}

func (s *System) loadSettings(manifest *ir.Manifest) (profile.MovementSettings, string, error) {
	if manifest == nil {
		return profile.MovementSettings{}, "", fmt.Errorf("movement: manifest is nil")
	}
	entry := manifest.EntryFor(s.ID(), ir.ClassMovementSystem)
	if entry == nil {
		return profile.MovementSettings{}, "", fmt.Errorf("movement: SystemId '%s' not found in manifest '%s'", s.ID(), manifest.Name)
	}
	path := entry.ProfilePath(ir.SettingMovementProfile)
	if path == "" {
		return profile.MovementSettings{}, "", fmt.Errorf("movement: missing required manifest setting '%s' for SystemId '%s' (expected path: %s)",
			ir.SettingMovementProfile, s.ID(), ir.DefaultProfilePath(ir.SystemMovement))
	}
	if s.provider == nil {
		return profile.MovementSettings{}, path, fmt.Errorf("movement: no profile provider configured")
	}
	settings, err := profile.LoadMovementSettings(s.provider, path)
	if err != nil {
		return settings, path, fmt.Errorf("movement: loading profile %s: %w", path, err)
	}
	return settings, path, nil
}

// Shutdown stops any running sprint.
func (s *System) Shutdown() {
	if s.bus != nil {
		s.stopSprinting(StopShutdown)
	}
	s.requested = false
	s.autoRemaining = 0
	s.bus = nil
	s.logger.Debug("movement shut down")
}

// Tick advances the auto sprint timer and reconciles the sprint request
// with the actual sprint state.
func (s *System) Tick(dt float64) {
	if s.bus == nil {
		return
	}
	if s.autoRemaining > 0 {
		s.autoRemaining = math.Max(0, s.autoRemaining-dt)
		if s.autoRemaining <= epsilon {
			s.logger.Debug("auto sprint finished")
			s.SetSprintRequested(false)
		}
	}

	switch {
	case s.requested && !s.sprinting && s.bus.Now() >= s.nextAttempt:
		s.startSprinting()
	case !s.requested && s.sprinting:
		s.stopSprinting(StopReleased)
	}

	if s.sprinting && s.queryExhausted() {
		s.stopSprinting(StopExhausted)
	}
}

func (s *System) startSprinting() {
	id := s.settings.SprintActionID
	q := message.CanStartAction{Source: ir.SystemMovement, ActionID: id}.ToMessage()
	s.bus.ExecuteQuery(q)
	check, err := message.CanStartActionFromMessage(q)
	if err != nil || !check.Allowed {
		s.logger.Debug("sprint denied",
			"action_id", id,
			"reason", check.Reason)
		s.scheduleRetry()
		return
	}

	if !s.bus.DispatchCommand(message.StartAction{Source: ir.SystemMovement, ActionID: id}.ToMessage()) {
		s.logger.Debug("sprint start rejected", "action_id", id)
		s.scheduleRetry()
		return
	}

	s.sprinting = true
	s.nextAttempt = 0
	s.bus.DispatchCommand(message.SetSprinting{Source: ir.SystemMovement, Sprinting: true}.ToMessage())
	s.logger.Info("sprint started", "action_id", id)
}

func (s *System) scheduleRetry() {
	s.nextAttempt = s.bus.Now() + s.settings.FailedRetryIntervalSeconds
}

func (s *System) stopSprinting(reason string) {
	if s.sprinting {
		s.bus.DispatchCommand(message.StopAction{
			Source:   ir.SystemMovement,
			ActionID: s.settings.SprintActionID,
			Reason:   reason,
		}.ToMessage())
		s.sprinting = false
		s.logger.Info("sprint stopped", "reason", reason)
	}
	s.bus.DispatchCommand(message.SetSprinting{Source: ir.SystemMovement, Sprinting: false}.ToMessage())
}

func (s *System) queryExhausted() bool {
	q := message.IsExhausted{Source: ir.SystemMovement}.ToMessage()
	if !s.bus.ExecuteQuery(q) || !q.Success {
		return false
	}
	parsed, err := message.IsExhaustedFromMessage(q)
	return err == nil && parsed.Exhausted
}

// HandleEvent stops the sprint when Status reports exhaustion.
func (s *System) HandleEvent(evt message.Event) {
	switch {
	case evt.Source == ir.SystemStatus && evt.Name == message.EventExhausted:
		if s.sprinting && s.bus != nil {
			s.stopSprinting(StopExhaustedEvent)
		}
	case evt.Source == ir.SystemActionGate:
		if id, _ := evt.PayloadValue(message.KeyActionID); id == s.settings.SprintActionID {
			reason, _ := evt.PayloadValue(message.KeyReason)
			s.logger.Debug("sprint decision observed",
				"event", evt.Name,
				"reason", reason)
		}
	}
}

// SetSprintRequested records whether sprint is wanted. The next Tick acts
// on it. Clearing the request also cancels an auto sprint.
func (s *System) SetSprintRequested(requested bool) {
	if s.requested == requested {
		return
	}
	s.requested = requested
	if !requested {
		s.autoRemaining = 0
	}
}

// ToggleSprintRequested flips the sprint request.
func (s *System) ToggleSprintRequested() { s.SetSprintRequested(!s.requested) }

// StartAutoSprint requests sprint for seconds of world time.
func (s *System) StartAutoSprint(seconds float64) {
	s.autoRemaining = math.Max(0, seconds)
	if s.autoRemaining > 0 {
		s.SetSprintRequested(true)
	}
}

// IsSprintRequested reports the current request.
func (s *System) IsSprintRequested() bool { return s.requested }

// IsSprinting reports whether the sprint action is running.
func (s *System) IsSprinting() bool { return s.sprinting }

// AutoSprintRemaining returns the seconds left on an auto sprint.
func (s *System) AutoSprintRemaining() float64 { return s.autoRemaining }

// NextAttempt returns the world time before which no start is retried.
func (s *System) NextAttempt() float64 { return s.nextAttempt }

// Settings returns the effective settings.
func (s *System) Settings() profile.MovementSettings { return s.settings }

// ProfileSource returns the object path settings were loaded from.
func (s *System) ProfileSource() string { return s.source }

var _ registry.System = (*System)(nil)
