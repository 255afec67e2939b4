package ir

import "strings"

// Manifest declares which systems exist, their dependencies and settings.
// It is consumed, not redefined: the runtime registry and the forge both
// read the same structure.
type Manifest struct {
	Name         string        `json:"name" yaml:"name"`
	Namespace    string        `json:"namespace" yaml:"namespace"`
	BuildVersion int           `json:"buildVersion" yaml:"buildVersion"`
	Systems      []SystemEntry `json:"systems" yaml:"systems"`
}

// SystemEntry is one system declaration inside a manifest.
//
// Settings are free-form strings keyed by setting name; profile asset
// references live here (e.g. ActionProfileAssetPath).
type SystemEntry struct {
	SystemID     string            `json:"systemId" yaml:"systemId"`
	SystemClass  string            `json:"systemClass" yaml:"systemClass"`
	Enabled      bool              `json:"enabled" yaml:"enabled"`
	Dependencies []string          `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Settings     map[string]string `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Setting returns the value of a setting and whether it is present.
func (e SystemEntry) Setting(key string) (string, bool) {
	v, ok := e.Settings[key]
	return v, ok
}

// FindEntry returns the entry with the given system id.
// Returns nil when no entry matches or the manifest is nil.
func (m *Manifest) FindEntry(systemID string) *SystemEntry {
	if m == nil {
		return nil
	}
	for i := range m.Systems {
		if m.Systems[i].SystemID == systemID {
			return &m.Systems[i]
		}
	}
	return nil
}

// EntryFor returns the entry for a system, matching by id first and by
// class second. Returns nil when neither matches.
func (m *Manifest) EntryFor(systemID, systemClass string) *SystemEntry {
	if e := m.FindEntry(systemID); e != nil {
		return e
	}
	if m == nil || systemClass == "" {
		return nil
	}
	for i := range m.Systems {
		if m.Systems[i].SystemClass == systemClass {
			return &m.Systems[i]
		}
	}
	return nil
}

// ProfilePath returns the trimmed value of a profile setting, or "" when
// it is missing or blank.
func (e *SystemEntry) ProfilePath(key string) string {
	if e == nil {
		return ""
	}
	v, _ := e.Setting(key)
	return strings.TrimSpace(v)
}

// Clone returns a deep copy so callers can mutate entries without touching
// a shared builtin manifest.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	out := *m
	out.Systems = make([]SystemEntry, len(m.Systems))
	for i, e := range m.Systems {
		ce := e
		ce.Dependencies = append([]string(nil), e.Dependencies...)
		if e.Settings != nil {
			ce.Settings = make(map[string]string, len(e.Settings))
			for k, v := range e.Settings {
				ce.Settings[k] = v
			}
		}
		out.Systems[i] = ce
	}
	return &out
}
