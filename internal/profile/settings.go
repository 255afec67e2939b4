package profile

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultExhaustedTag is the state tag Status asserts while exhausted.
const DefaultExhaustedTag = "State.Exhausted"

// StatusSettings tune the stamina model of the Status system.
type StatusSettings struct {
	MaxStamina              float64 `json:"maxStamina" yaml:"maxStamina" validate:"gt=0"`
	SprintDrainPerSecond    float64 `json:"sprintDrainPerSecond" yaml:"sprintDrainPerSecond" validate:"gt=0"`
	RegenPerSecond          float64 `json:"regenPerSecond" yaml:"regenPerSecond" validate:"gt=0"`
	RegenDelaySeconds       float64 `json:"regenDelaySeconds" yaml:"regenDelaySeconds" validate:"gte=0"`
	ExhaustRecoverThreshold float64 `json:"exhaustRecoverThreshold" yaml:"exhaustRecoverThreshold" validate:"gte=0,ltefield=MaxStamina"`
	ExhaustedTag            string  `json:"exhaustedTag" yaml:"exhaustedTag"`
}

// DefaultStatusSettings returns the stock stamina tuning.
func DefaultStatusSettings() StatusSettings {
	return StatusSettings{
		MaxStamina:              100,
		SprintDrainPerSecond:    25,
		RegenPerSecond:          18,
		RegenDelaySeconds:       0.8,
		ExhaustRecoverThreshold: 22,
		ExhaustedTag:            DefaultExhaustedTag,
	}
}

// Validate checks the settings ranges.
func (s StatusSettings) Validate() error {
	return validateStruct(s)
}

// MovementSettings tune the Movement system.
type MovementSettings struct {
	SprintActionID             string  `json:"sprintActionId" yaml:"sprintActionId" validate:"required"`
	FailedRetryIntervalSeconds float64 `json:"failedRetryIntervalSeconds" yaml:"failedRetryIntervalSeconds" validate:"gt=0"`
	AutoSprintSeconds          float64 `json:"autoSprintSeconds" yaml:"autoSprintSeconds" validate:"gte=0"`
}

// DefaultMovementSettings returns the stock movement tuning.
func DefaultMovementSettings() MovementSettings {
	return MovementSettings{
		SprintActionID:             "Movement.Sprint",
		FailedRetryIntervalSeconds: 0.25,
	}
}

// Validate checks the settings ranges.
func (s MovementSettings) Validate() error {
	if strings.TrimSpace(s.SprintActionID) == "" {
		return errors.New("sprintActionId must not be empty.")
	}
	return validateStruct(s)
}

// StatusProfile selects a status library and optionally replaces its
// settings wholesale.
type StatusProfile struct {
	Name         string
	Path         string
	LibraryPath  string
	UseOverrides bool
	Overrides    StatusSettings
}

// StatusLibrary holds a reusable StatusSettings.
type StatusLibrary struct {
	Name     string
	Path     string
	Settings StatusSettings
}

// MovementProfile selects a movement library and optionally replaces its
// settings wholesale.
type MovementProfile struct {
	Name         string
	Path         string
	LibraryPath  string
	UseOverrides bool
	Overrides    MovementSettings
}

// MovementLibrary holds a reusable MovementSettings.
type MovementLibrary struct {
	Name     string
	Path     string
	Settings MovementSettings
}

// ErrNoSettingsSource is returned when a profile has neither a library
// nor overrides.
var ErrNoSettingsSource = errors.New("profile has no library and no overrides")

// ResolveStatusSettings picks library settings, replaced by the profile
// overrides when UseOverrides is set, and validates the result.
func ResolveStatusSettings(p *StatusProfile, lib *StatusLibrary) (StatusSettings, error) {
	out := DefaultStatusSettings()
	hasSource := false
	if lib != nil {
		out = lib.Settings
		hasSource = true
	}
	if p != nil && p.UseOverrides {
		out = p.Overrides
		hasSource = true
	}
	if !hasSource {
		return out, ErrNoSettingsSource
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// ResolveMovementSettings picks library settings, replaced by the profile
// overrides when UseOverrides is set, and validates the result.
func ResolveMovementSettings(p *MovementProfile, lib *MovementLibrary) (MovementSettings, error) {
	out := DefaultMovementSettings()
	hasSource := false
	if lib != nil {
		out = lib.Settings
		hasSource = true
	}
	if p != nil && p.UseOverrides {
		out = p.Overrides
		hasSource = true
	}
	if !hasSource {
		return out, ErrNoSettingsSource
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// settingsValidate is the validator instance for settings structs.
// Field names in messages are the document keys.
var settingsValidate *validator.Validate

func init() {
	settingsValidate = validator.New()
	settingsValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// validateStruct runs tag validation and reports the first violation in
// the same wording the content tools use.
func validateStruct(v any) error {
	err := settingsValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "gt":
		return fmt.Errorf("%s must be > %s.", fe.Field(), fe.Param())
	case "gte":
		return fmt.Errorf("%s must be >= %s.", fe.Field(), fe.Param())
	case "ltefield":
		return fmt.Errorf("%s must be in range [0, %s].", fe.Field(), lowerFirst(fe.Param()))
	case "required":
		return fmt.Errorf("%s must not be empty.", fe.Field())
	default:
		return fmt.Errorf("%s failed %s validation.", fe.Field(), fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
