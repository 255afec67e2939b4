// Package status implements the Status system: a stamina pool drained by
// sprinting and refilled after a delay, plus the state tags other systems
// use for blocking decisions.
package status

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/message"
	"github.com/roach88/omni/internal/profile"
	"github.com/roach88/omni/internal/registry"
)

// epsilon is the stamina level treated as empty.
const epsilon = 1e-4

// System is the Status runtime system.
type System struct {
	registry.Base

	provider profile.Provider
	mode     profile.Mode
	logger   *slog.Logger

	bus      registry.Bus
	settings profile.StatusSettings
	source   string

	current      float64
	sinceConsume float64
	exhausted    bool
	sprinting    bool
	external     map[string]bool
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

// New creates an uninitialized Status system reading profiles from p.
func New(p profile.Provider, opts ...Option) *System {
	s := &System{
		provider: p,
		logger:   slog.Default(),
		external: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns "Status".
func (s *System) ID() string { return ir.SystemStatus }

// TickEnabled reports true; stamina drains and regenerates per tick.
func (s *System) TickEnabled() bool { return true }

// Init loads the status profile named by the manifest entry and resets
// the stamina pool to full.
func (s *System) Init(bus registry.Bus, manifest *ir.Manifest) error {
	s.bus = bus
	settings, source, err := s.loadSettings(manifest)
	if err != nil {
		if s.mode != profile.ModeLenient {
			s.logger.Error("status init failed", "error", err)
			return err
		}
		s.logger.Warn("status falling back to dev defaults",
			"mode", s.mode,
			"error", err)
		settings = profile.DevDefaults().Status
		source = profile.DevDefaultsPath
	}
	if strings.TrimSpace(settings.ExhaustedTag) == "" {
		settings.ExhaustedTag = profile.DefaultExhaustedTag
	}

	s.settings = settings
	s.source = source
	s.current = settings.MaxStamina
	s.sinceConsume = settings.RegenDelaySeconds
	s.exhausted = false
	s.sprinting = false
	clear(s.external)

	s.logger.Info("status initialized",
		"profile", source,
		"max_stamina", settings.MaxStamina)
	return nil
}

func (s *System) loadSettings(manifest *ir.Manifest) (profile.StatusSettings, string, error) {
	if manifest == nil {
		return profile.StatusSettings{}, "", fmt.Errorf("status: manifest is nil")
	}
	entry := manifest.EntryFor(s.ID(), ir.ClassStatusSystem)
	if entry == nil {
		return profile.StatusSettings{}, "", fmt.Errorf("status: SystemId '%s' not found in manifest '%s'", s.ID(), manifest.Name)
	}
	path := entry.ProfilePath(ir.SettingStatusProfile)
	if path == "" {
		return profile.StatusSettings{}, "", fmt.Errorf("status: missing required manifest setting '%s' for SystemId '%s' (expected path: %s)",
			ir.SettingStatusProfile, s.ID(), ir.DefaultProfilePath(ir.SystemStatus))
	}
	if s.provider == nil {
		return profile.StatusSettings{}, path, fmt.Errorf("status: no profile provider configured")
	}
	settings, err := profile.LoadStatusSettings(s.provider, path)
	if err != nil {
		return settings, path, fmt.Errorf("status: loading profile %s: %w", path, err)
	}
	return settings, path, nil
}

// Shutdown clears the runtime state.
func (s *System) Shutdown() {
	s.sprinting = false
	s.exhausted = false
	clear(s.external)
	s.bus = nil
	s.logger.Debug("status shut down")
}

// Tick drains stamina while sprinting or regenerates it once the regen
// delay has passed, then updates the exhausted state.
func (s *System) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	if s.sprinting {
		s.ConsumeStamina(s.settings.SprintDrainPerSecond * dt)
	} else {
		s.sinceConsume += dt
		if s.sinceConsume >= s.settings.RegenDelaySeconds && s.current < s.settings.MaxStamina {
			s.AddStamina(s.settings.RegenPerSecond * dt)
		}
	}

	switch {
	case !s.exhausted && s.current <= epsilon:
		s.exhausted = true
		s.logger.Info("status exhausted", "stamina", s.current)
		s.broadcast(message.Exhausted{Source: ir.SystemStatus}.ToMessage())
	case s.exhausted && s.current >= s.settings.ExhaustRecoverThreshold:
		s.exhausted = false
		s.logger.Info("status exhaustion cleared", "stamina", s.current)
		s.broadcast(message.ExhaustedCleared{Source: ir.SystemStatus}.ToMessage())
	}
}

func (s *System) broadcast(evt message.Event) {
	if s.bus != nil {
		s.bus.BroadcastEvent(evt)
	}
}

// HandleCommand handles SetSprinting, ConsumeStamina and AddStamina.
func (s *System) HandleCommand(cmd message.Command) bool {
	switch cmd.Name {
	case message.CommandSetSprinting:
		parsed, err := message.SetSprintingFromMessage(cmd)
		if err != nil {
			return false
		}
		s.SetSprinting(parsed.Sprinting)
		return true
	case message.CommandConsumeStamina, message.CommandAddStamina:
		parsed, err := message.StaminaChangeFromMessage(cmd)
		if err != nil {
			return false
		}
		if parsed.Name == message.CommandConsumeStamina {
			s.ConsumeStamina(parsed.Amount)
		} else {
			s.AddStamina(parsed.Amount)
		}
		return true
	}
	return false
}

// HandleQuery answers IsExhausted, GetStateTagsCsv and GetStamina.
func (s *System) HandleQuery(q *message.Query) bool {
	switch q.Name {
	case message.QueryIsExhausted:
		q.Handled = true
		q.Success = true
		q.Result = message.FormatBool(s.exhausted)
		return true
	case message.QueryGetStateTagsCsv:
		q.Handled = true
		q.Success = true
		q.Result = strings.Join(s.StateTags(), ",")
		return true
	case message.QueryGetStamina:
		q.Handled = true
		q.Success = true
		q.Result = fmt.Sprintf("%.2f/%.2f", s.current, s.settings.MaxStamina)
		q.SetOutput(message.KeyCurrent, fmt.Sprintf("%.2f", s.current))
		q.SetOutput(message.KeyMax, fmt.Sprintf("%.2f", s.settings.MaxStamina))
		q.SetOutput(message.KeyNormalized, fmt.Sprintf("%.4f", s.Normalized()))
		return true
	}
	return false
}

// SetSprinting toggles the drain. Leaving sprint restarts the regen delay.
func (s *System) SetSprinting(sprinting bool) {
	if s.sprinting == sprinting {
		return
	}
	s.sprinting = sprinting
	if !sprinting {
		s.sinceConsume = 0
	}
}

// ConsumeStamina removes amount, never going below zero, and restarts
// the regen delay. Non-positive amounts are ignored.
func (s *System) ConsumeStamina(amount float64) {
	if amount <= 0 {
		return
	}
	s.current = math.Max(0, s.current-amount)
	s.sinceConsume = 0
}

// AddStamina adds amount, capped at MaxStamina. Non-positive amounts are
// ignored.
func (s *System) AddStamina(amount float64) {
	if amount <= 0 {
		return
	}
	s.current = math.Min(s.settings.MaxStamina, s.current+amount)
}

// SetExternalTag asserts or clears a state tag that is not derived from
// stamina.
func (s *System) SetExternalTag(tag string, on bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	if on {
		s.external[tag] = true
	} else {
		delete(s.external, tag)
	}
}

// StateTags returns the asserted state tags, sorted.
func (s *System) StateTags() []string {
	tags := make([]string, 0, len(s.external)+1)
	if s.exhausted && s.settings.ExhaustedTag != "" {
		tags = append(tags, s.settings.ExhaustedTag)
	}
	for tag := range s.external {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return slices.Compact(tags)
}

// Stamina returns the current stamina.
func (s *System) Stamina() float64 { return s.current }

// MaxStamina returns the configured maximum.
func (s *System) MaxStamina() float64 { return s.settings.MaxStamina }

// Normalized returns stamina as a fraction of the maximum.
func (s *System) Normalized() float64 {
	if s.settings.MaxStamina <= epsilon {
		return 0
	}
	return s.current / s.settings.MaxStamina
}

// IsExhausted reports the exhausted state.
func (s *System) IsExhausted() bool { return s.exhausted }

// IsSprinting reports whether stamina is draining.
func (s *System) IsSprinting() bool { return s.sprinting }

// Settings returns the effective settings.
func (s *System) Settings() profile.StatusSettings { return s.settings }

// ProfileSource returns the object path settings were loaded from.
func (s *System) ProfileSource() string { return s.source }

var _ registry.System = (*System)(nil)
