package forge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/profile"
)

// DocManifest is the document kind of a manifest asset.
const DocManifest = "Manifest"

// ManifestLoader loads the manifest named by ForgeInput.ManifestAsset.
// Errors are *profile.LoadError values.
type ManifestLoader interface {
	LoadManifest(ref string) (*ir.Manifest, error)
}

// FileManifests loads manifest documents from YAML or CUE files.
//
// A reference under /Game/ is mapped through the content directory the
// same way profile.FileProvider maps profile paths; any other reference is
// a file path.
type FileManifests struct {
	ContentDir string
}

type manifestDoc struct {
	Kind         string           `json:"kind" yaml:"kind"`
	Name         string           `json:"name,omitempty" yaml:"name,omitempty"`
	Namespace    string           `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	BuildVersion int              `json:"buildVersion,omitempty" yaml:"buildVersion,omitempty"`
	Systems      []systemEntryDoc `json:"systems,omitempty" yaml:"systems,omitempty"`
}

type systemEntryDoc struct {
	SystemID     string            `json:"systemId" yaml:"systemId"`
	SystemClass  string            `json:"systemClass,omitempty" yaml:"systemClass,omitempty"`
	Enabled      *bool             `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Settings     map[string]string `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// LoadManifest implements ManifestLoader.
func (l FileManifests) LoadManifest(ref string) (*ir.Manifest, error) {
	file := ref
	if strings.HasPrefix(ref, profile.GamePrefix) {
		resolved, err := profile.NewFileProvider(l.ContentDir).Resolve(ref)
		if err != nil {
			return nil, err
		}
		file = resolved
	}
	return LoadManifestFile(file)
}

// LoadManifestFile decodes the manifest document in file. Entries without
// an enabled field are enabled.
func LoadManifestFile(file string) (*ir.Manifest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &profile.LoadError{Kind: profile.KindNotFound, Path: file, Message: "no manifest file"}
		}
		return nil, &profile.LoadError{Kind: profile.KindMalformed, Path: file, Message: "cannot read manifest", Err: err}
	}
	kind, err := profile.PeekKind(file, data)
	if err != nil {
		return nil, &profile.LoadError{Kind: profile.KindMalformed, Path: file, Message: "cannot parse manifest", Err: err}
	}
	if kind != DocManifest {
		return nil, &profile.LoadError{
			Kind:    profile.KindTypeMismatch,
			Path:    file,
			Message: fmt.Sprintf("document kind is %q, want %q", kind, DocManifest),
			Found:   kind,
		}
	}
	var doc manifestDoc
	if err := profile.DecodeDocument(file, data, &doc); err != nil {
		return nil, &profile.LoadError{Kind: profile.KindMalformed, Path: file, Message: "cannot decode manifest", Err: err}
	}

	m := &ir.Manifest{
		Name:         doc.Name,
		Namespace:    doc.Namespace,
		BuildVersion: doc.BuildVersion,
		Systems:      make([]ir.SystemEntry, 0, len(doc.Systems)),
	}
	for _, s := range doc.Systems {
		enabled := true
		if s.Enabled != nil {
			enabled = *s.Enabled
		}
		m.Systems = append(m.Systems, ir.SystemEntry{
			SystemID:     s.SystemID,
			SystemClass:  s.SystemClass,
			Enabled:      enabled,
			Dependencies: s.Dependencies,
			Settings:     s.Settings,
		})
	}
	return m, nil
}
