package profile

import (
	"fmt"
	"strings"
)

// Mode selects how systems react to bad or missing content.
type Mode int

const (
	// ModeStrict fails initialization on any content problem.
	ModeStrict Mode = iota
	// ModeLenient sanitizes what it can and falls back to DevDefaults.
	ModeLenient
)

func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeLenient:
		return "lenient"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "strict", "lenient" or "auto". Auto and the empty
// string resolve to strict.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "strict":
		return ModeStrict, nil
	case "lenient":
		return ModeLenient, nil
	default:
		return ModeStrict, fmt.Errorf("unknown mode %q (want auto, strict or lenient)", s)
	}
}

// Defaults is the built-in content used when lenient systems cannot load
// their profiles.
type Defaults struct {
	Actions  *ActionLibrary
	Status   StatusSettings
	Movement MovementSettings
}

// DevDefaultsPath is the pseudo object path reported for fallback content.
const DevDefaultsPath = "<dev-defaults>"

// DevDefaults returns a fresh copy of the built-in fallback content.
func DevDefaults() Defaults {
	return Defaults{
		Actions: &ActionLibrary{
			Name: "DevActionLibrary",
			Path: DevDefaultsPath,
			Definitions: []ActionDefinition{{
				ActionID:     "Movement.Sprint",
				Enabled:      true,
				Policy:       DenyIfActive,
				BlockedBy:    []string{DefaultExhaustedTag},
				AppliesLocks: []string{"Lock.Movement.Sprint"},
			}},
		},
		Status:   DefaultStatusSettings(),
		Movement: DefaultMovementSettings(),
	}
}
