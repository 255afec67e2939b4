package profile

import (
	"fmt"
	"slices"
	"strings"
)

// Policy decides what happens when an action is requested while active.
type Policy int

const (
	// DenyIfActive rejects the request.
	DenyIfActive Policy = iota
	// SucceedIfActive allows the request without re-applying it.
	SucceedIfActive
	// RestartIfActive stops the running instance and starts it again.
	RestartIfActive
)

var policyNames = [...]string{"DenyIfActive", "SucceedIfActive", "RestartIfActive"}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("Policy(%d)", int(p))
	}
	return policyNames[p]
}

// ParsePolicy parses a policy name, case-insensitively.
// The empty string means DenyIfActive.
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DenyIfActive, nil
	}
	for i, name := range policyNames {
		if strings.EqualFold(s, name) {
			return Policy(i), nil
		}
	}
	return DenyIfActive, fmt.Errorf("unknown policy %q (want one of %s)", s, strings.Join(policyNames[:], ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(policyNames) {
		return nil, fmt.Errorf("invalid policy %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ActionDefinition is the authorization rule for one action id.
type ActionDefinition struct {
	ActionID     string   `json:"actionId" yaml:"actionId"`
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	Policy       Policy   `json:"policy" yaml:"policy"`
	BlockedBy    []string `json:"blockedBy" yaml:"blockedBy"`
	Cancels      []string `json:"cancels" yaml:"cancels"`
	AppliesLocks []string `json:"appliesLocks" yaml:"appliesLocks"`
}

// Clone returns a deep copy of d.
func (d ActionDefinition) Clone() ActionDefinition {
	d.BlockedBy = slices.Clone(d.BlockedBy)
	d.Cancels = slices.Clone(d.Cancels)
	d.AppliesLocks = slices.Clone(d.AppliesLocks)
	return d
}

// ActionProfile selects an action library and overrides some of its
// definitions.
type ActionProfile struct {
	Name        string
	Path        string
	LibraryPath string
	Overrides   []ActionDefinition
}

// ActionLibrary is a reusable list of action definitions.
type ActionLibrary struct {
	Name        string
	Path        string
	Definitions []ActionDefinition
}

// ResolveDefinitions merges profile overrides onto library definitions.
//
// The result starts as a copy of the library definitions (nil library
// means none). Each override with a non-empty ActionId replaces the first
// definition with the same id, or is appended when there is none.
func ResolveDefinitions(p *ActionProfile, lib *ActionLibrary) []ActionDefinition {
	var out []ActionDefinition
	if lib != nil {
		for _, def := range lib.Definitions {
			out = append(out, def.Clone())
		}
	}
	if p == nil {
		return out
	}
	for _, override := range p.Overrides {
		if strings.TrimSpace(override.ActionID) == "" {
			continue
		}
		idx := slices.IndexFunc(out, func(d ActionDefinition) bool {
			return d.ActionID == override.ActionID
		})
		if idx >= 0 {
			out[idx] = override.Clone()
		} else {
			out = append(out, override.Clone())
		}
	}
	return out
}
