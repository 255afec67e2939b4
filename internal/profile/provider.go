package profile

import (
	"fmt"
	"strings"
	"sync"
)

// Provider serves profile and library documents by object path.
// Implemented by FileProvider and Memory.
type Provider interface {
	LoadActionProfile(path string) (*ActionProfile, error)
	LoadActionLibrary(path string) (*ActionLibrary, error)
	LoadStatusProfile(path string) (*StatusProfile, error)
	LoadStatusLibrary(path string) (*StatusLibrary, error)
	LoadMovementProfile(path string) (*MovementProfile, error)
	LoadMovementLibrary(path string) (*MovementLibrary, error)
}

// LoadActionDefinitions loads the action profile at path and its
// library, then merges them with ResolveDefinitions.
// A profile without a library resolves to its overrides alone.
func LoadActionDefinitions(p Provider, path string) ([]ActionDefinition, *ActionProfile, error) {
	prof, err := p.LoadActionProfile(path)
	if err != nil {
		return nil, nil, err
	}
	var lib *ActionLibrary
	if strings.TrimSpace(prof.LibraryPath) != "" {
		lib, err = p.LoadActionLibrary(prof.LibraryPath)
		if err != nil {
			return nil, prof, err
		}
	}
	return ResolveDefinitions(prof, lib), prof, nil
}

// LoadStatusSettings loads the status profile at path and its library and
// resolves the effective settings.
func LoadStatusSettings(p Provider, path string) (StatusSettings, error) {
	prof, err := p.LoadStatusProfile(path)
	if err != nil {
		return StatusSettings{}, err
	}
	var lib *StatusLibrary
	if strings.TrimSpace(prof.LibraryPath) != "" {
		lib, err = p.LoadStatusLibrary(prof.LibraryPath)
		if err != nil {
			return StatusSettings{}, err
		}
	}
	settings, err := ResolveStatusSettings(prof, lib)
	if err != nil {
		return settings, &LoadError{Kind: KindInvalid, Path: path, Message: "invalid status settings", Err: err}
	}
	return settings, nil
}

// LoadMovementSettings loads the movement profile at path and its library
// and resolves the effective settings.
func LoadMovementSettings(p Provider, path string) (MovementSettings, error) {
	prof, err := p.LoadMovementProfile(path)
	if err != nil {
		return MovementSettings{}, err
	}
	var lib *MovementLibrary
	if strings.TrimSpace(prof.LibraryPath) != "" {
		lib, err = p.LoadMovementLibrary(prof.LibraryPath)
		if err != nil {
			return MovementSettings{}, err
		}
	}
	settings, err := ResolveMovementSettings(prof, lib)
	if err != nil {
		return settings, &LoadError{Kind: KindInvalid, Path: path, Message: "invalid movement settings", Err: err}
	}
	return settings, nil
}

// Memory is an in-process Provider.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]any
}

// NewMemory creates an empty Memory provider.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]any)}
}

// Put stores doc at path. doc must be one of the profile or library
// pointer types; the stored Path field is set to path.
func (m *Memory) Put(path string, doc any) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch d := doc.(type) {
	case *ActionProfile:
		d.Path = path
	case *ActionLibrary:
		d.Path = path
	case *StatusProfile:
		d.Path = path
	case *StatusLibrary:
		d.Path = path
	case *MovementProfile:
		d.Path = path
	case *MovementLibrary:
		d.Path = path
	}
	m.docs[path] = doc
	return m
}

func lookup[T any](m *Memory, path, kind string) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[path]
	if !ok {
		return nil, loadErrorf(KindNotFound, path, "no %s at path", kind)
	}
	typed, ok := doc.(*T)
	if !ok || typed == nil {
		le := loadErrorf(KindTypeMismatch, path, "document is not a %s", kind)
		le.Found = docKind(doc)
		return nil, le
	}
	cp := *typed
	return &cp, nil
}

func (m *Memory) LoadActionProfile(path string) (*ActionProfile, error) {
	p, err := lookup[ActionProfile](m, path, DocActionProfile)
	if err != nil {
		return nil, err
	}
	p.Overrides = cloneDefinitions(p.Overrides)
	return p, nil
}

func (m *Memory) LoadActionLibrary(path string) (*ActionLibrary, error) {
	l, err := lookup[ActionLibrary](m, path, DocActionLibrary)
	if err != nil {
		return nil, err
	}
	l.Definitions = cloneDefinitions(l.Definitions)
	return l, nil
}

func (m *Memory) LoadStatusProfile(path string) (*StatusProfile, error) {
	return lookup[StatusProfile](m, path, DocStatusProfile)
}

func (m *Memory) LoadStatusLibrary(path string) (*StatusLibrary, error) {
	return lookup[StatusLibrary](m, path, DocStatusLibrary)
}

func (m *Memory) LoadMovementProfile(path string) (*MovementProfile, error) {
	return lookup[MovementProfile](m, path, DocMovementProfile)
}

func (m *Memory) LoadMovementLibrary(path string) (*MovementLibrary, error) {
	return lookup[MovementLibrary](m, path, DocMovementLibrary)
}

func docKind(doc any) string {
	switch doc.(type) {
	case *ActionProfile:
		return DocActionProfile
	case *ActionLibrary:
		return DocActionLibrary
	case *StatusProfile:
		return DocStatusProfile
	case *StatusLibrary:
		return DocStatusLibrary
	case *MovementProfile:
		return DocMovementProfile
	case *MovementLibrary:
		return DocMovementLibrary
	}
	return fmt.Sprintf("%T", doc)
}

func cloneDefinitions(defs []ActionDefinition) []ActionDefinition {
	if defs == nil {
		return nil
	}
	out := make([]ActionDefinition, len(defs))
	for i, d := range defs {
		out[i] = d.Clone()
	}
	return out
}

var (
	_ Provider = (*Memory)(nil)
	_ Provider = (*FileProvider)(nil)
)
