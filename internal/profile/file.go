package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Document kinds.
const (
	DocActionProfile   = "ActionProfile"
	DocActionLibrary   = "ActionLibrary"
	DocStatusProfile   = "StatusProfile"
	DocStatusLibrary   = "StatusLibrary"
	DocMovementProfile = "MovementProfile"
	DocMovementLibrary = "MovementLibrary"
)

// GamePrefix is the root every content object path lives under.
const GamePrefix = "/Game/"

// documentExtensions are tried in order when mapping an object path.
var documentExtensions = []string{".yaml", ".yml", ".cue"}

// SplitObjectPath splits /Game/A/B/Asset.Object into the package path
// A/B/Asset and the object name Object. A path without an object part
// uses the asset name for both.
func SplitObjectPath(objectPath string) (pkg, object string, err error) {
	p := strings.TrimSpace(objectPath)
	if !strings.HasPrefix(p, GamePrefix) {
		return "", "", fmt.Errorf("object path %q must start with %s", objectPath, GamePrefix)
	}
	rest := strings.TrimPrefix(p, GamePrefix)
	dir, base := path.Split(rest)
	asset, obj, hasObj := strings.Cut(base, ".")
	if asset == "" || (hasObj && obj == "") {
		return "", "", fmt.Errorf("object path %q has no asset name", objectPath)
	}
	if !hasObj {
		obj = asset
	}
	for _, seg := range strings.Split(strings.TrimSuffix(dir, "/"), "/") {
		if seg == ".." {
			return "", "", fmt.Errorf("object path %q escapes the content root", objectPath)
		}
	}
	return dir + asset, obj, nil
}

// FileProvider serves documents from YAML or CUE files under ContentDir.
//
// /Game/Omni/Data/Action/DA_X.DA_X maps to ContentDir/Omni/Data/Action/DA_X.yaml
// (or .yml, or .cue, the first that exists).
type FileProvider struct {
	ContentDir string
}

// NewFileProvider creates a provider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{ContentDir: dir}
}

// Resolve returns the file backing objectPath.
func (p *FileProvider) Resolve(objectPath string) (string, error) {
	pkg, _, err := SplitObjectPath(objectPath)
	if err != nil {
		return "", &LoadError{Kind: KindMalformed, Path: objectPath, Message: "invalid object path", Err: err}
	}
	base := filepath.Join(p.ContentDir, filepath.FromSlash(pkg))
	for _, ext := range documentExtensions {
		candidate := base + ext
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", loadErrorf(KindNotFound, objectPath, "no document file for %s", base)
}

// Exists reports whether a document file backs objectPath.
func (p *FileProvider) Exists(objectPath string) bool {
	_, err := p.Resolve(objectPath)
	return err == nil
}

func (p *FileProvider) load(objectPath, kind string, out any) error {
	file, err := p.Resolve(objectPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return loadErrorf(KindNotFound, objectPath, "document file disappeared: %s", file)
		}
		return &LoadError{Kind: KindMalformed, Path: objectPath, Message: "cannot read document", Err: err}
	}
	got, err := PeekKind(file, data)
	if err != nil {
		return &LoadError{Kind: KindMalformed, Path: objectPath, Message: "cannot parse document", Err: err}
	}
	if got != kind {
		le := loadErrorf(KindTypeMismatch, objectPath, "document kind is %q, want %q", got, kind)
		le.Found = got
		return le
	}
	if err := DecodeDocument(file, data, out); err != nil {
		return &LoadError{Kind: KindMalformed, Path: objectPath, Message: "cannot decode " + kind, Err: err}
	}
	return nil
}

func objectName(objectPath string) string {
	_, obj, err := SplitObjectPath(objectPath)
	if err != nil {
		return ""
	}
	return obj
}

func nameOr(name, objectPath string) string {
	if name != "" {
		return name
	}
	return objectName(objectPath)
}

// LoadActionProfile implements Provider.
func (p *FileProvider) LoadActionProfile(objectPath string) (*ActionProfile, error) {
	var doc actionProfileDoc
	if err := p.load(objectPath, DocActionProfile, &doc); err != nil {
		return nil, err
	}
	overrides, err := convertDefinitions(doc.Overrides)
	if err != nil {
		return nil, &LoadError{Kind: KindMalformed, Path: objectPath, Message: "invalid override", Err: err}
	}
	return &ActionProfile{
		Name:        nameOr(doc.Name, objectPath),
		Path:        objectPath,
		LibraryPath: strings.TrimSpace(doc.Library),
		Overrides:   overrides,
	}, nil
}

// LoadActionLibrary implements Provider.
func (p *FileProvider) LoadActionLibrary(objectPath string) (*ActionLibrary, error) {
	var doc actionLibraryDoc
	if err := p.load(objectPath, DocActionLibrary, &doc); err != nil {
		return nil, err
	}
	defs, err := convertDefinitions(doc.Definitions)
	if err != nil {
		return nil, &LoadError{Kind: KindMalformed, Path: objectPath, Message: "invalid definition", Err: err}
	}
	return &ActionLibrary{
		Name:        nameOr(doc.Name, objectPath),
		Path:        objectPath,
		Definitions: defs,
	}, nil
}

// LoadStatusProfile implements Provider.
func (p *FileProvider) LoadStatusProfile(objectPath string) (*StatusProfile, error) {
	doc := statusProfileDoc{Overrides: DefaultStatusSettings()}
	if err := p.load(objectPath, DocStatusProfile, &doc); err != nil {
		return nil, err
	}
	return &StatusProfile{
		Name:         nameOr(doc.Name, objectPath),
		Path:         objectPath,
		LibraryPath:  strings.TrimSpace(doc.Library),
		UseOverrides: doc.UseOverrides,
		Overrides:    doc.Overrides,
	}, nil
}

// LoadStatusLibrary implements Provider.
func (p *FileProvider) LoadStatusLibrary(objectPath string) (*StatusLibrary, error) {
	doc := statusLibraryDoc{Settings: DefaultStatusSettings()}
	if err := p.load(objectPath, DocStatusLibrary, &doc); err != nil {
		return nil, err
	}
	return &StatusLibrary{
		Name:     nameOr(doc.Name, objectPath),
		Path:     objectPath,
		Settings: doc.Settings,
	}, nil
}

// LoadMovementProfile implements Provider.
func (p *FileProvider) LoadMovementProfile(objectPath string) (*MovementProfile, error) {
	doc := movementProfileDoc{Overrides: DefaultMovementSettings()}
	if err := p.load(objectPath, DocMovementProfile, &doc); err != nil {
		return nil, err
	}
	return &MovementProfile{
		Name:         nameOr(doc.Name, objectPath),
		Path:         objectPath,
		LibraryPath:  strings.TrimSpace(doc.Library),
		UseOverrides: doc.UseOverrides,
		Overrides:    doc.Overrides,
	}, nil
}

// LoadMovementLibrary implements Provider.
func (p *FileProvider) LoadMovementLibrary(objectPath string) (*MovementLibrary, error) {
	doc := movementLibraryDoc{Settings: DefaultMovementSettings()}
	if err := p.load(objectPath, DocMovementLibrary, &doc); err != nil {
		return nil, err
	}
	return &MovementLibrary{
		Name:     nameOr(doc.Name, objectPath),
		Path:     objectPath,
		Settings: doc.Settings,
	}, nil
}

// PeekKind returns the top-level kind field of a YAML or CUE document.
func PeekKind(file string, data []byte) (string, error) {
	if isCUE(file) {
		v, err := compileCUE(file, data)
		if err != nil {
			return "", err
		}
		kind := v.LookupPath(cue.ParsePath("kind"))
		if !kind.Exists() {
			return "", errors.New("missing kind field")
		}
		return kind.String()
	}
	var header struct {
		Kind string `yaml:"kind"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return "", err
	}
	if header.Kind == "" {
		return "", errors.New("missing kind field")
	}
	return header.Kind, nil
}

// DecodeDocument decodes a YAML or CUE document into out, chosen by the
// file extension. YAML decoding rejects unknown fields.
func DecodeDocument(file string, data []byte, out any) error {
	if isCUE(file) {
		v, err := compileCUE(file, data)
		if err != nil {
			return err
		}
		return v.Decode(out)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func isCUE(file string) bool {
	return strings.EqualFold(filepath.Ext(file), ".cue")
}

func compileCUE(file string, data []byte) (cue.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(file))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compiling CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, fmt.Errorf("CUE document is not concrete: %w", err)
	}
	return v, nil
}

type actionDefinitionDoc struct {
	ActionID     string   `json:"actionId" yaml:"actionId"`
	Enabled      *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Policy       string   `json:"policy,omitempty" yaml:"policy,omitempty"`
	BlockedBy    []string `json:"blockedBy,omitempty" yaml:"blockedBy,omitempty"`
	Cancels      []string `json:"cancels,omitempty" yaml:"cancels,omitempty"`
	AppliesLocks []string `json:"appliesLocks,omitempty" yaml:"appliesLocks,omitempty"`
}

type actionProfileDoc struct {
	Kind      string                `json:"kind" yaml:"kind"`
	Name      string                `json:"name,omitempty" yaml:"name,omitempty"`
	Library   string                `json:"library,omitempty" yaml:"library,omitempty"`
	Overrides []actionDefinitionDoc `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

type actionLibraryDoc struct {
	Kind        string                `json:"kind" yaml:"kind"`
	Name        string                `json:"name,omitempty" yaml:"name,omitempty"`
	Definitions []actionDefinitionDoc `json:"definitions,omitempty" yaml:"definitions,omitempty"`
}

type statusProfileDoc struct {
	Kind         string         `json:"kind" yaml:"kind"`
	Name         string         `json:"name,omitempty" yaml:"name,omitempty"`
	Library      string         `json:"library,omitempty" yaml:"library,omitempty"`
	UseOverrides bool           `json:"useOverrides,omitempty" yaml:"useOverrides,omitempty"`
	Overrides    StatusSettings `json:"overrides" yaml:"overrides"`
}

type statusLibraryDoc struct {
	Kind     string         `json:"kind" yaml:"kind"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Settings StatusSettings `json:"settings" yaml:"settings"`
}

type movementProfileDoc struct {
	Kind         string           `json:"kind" yaml:"kind"`
	Name         string           `json:"name,omitempty" yaml:"name,omitempty"`
	Library      string           `json:"library,omitempty" yaml:"library,omitempty"`
	UseOverrides bool             `json:"useOverrides,omitempty" yaml:"useOverrides,omitempty"`
	Overrides    MovementSettings `json:"overrides" yaml:"overrides"`
}

type movementLibraryDoc struct {
	Kind     string           `json:"kind" yaml:"kind"`
	Name     string           `json:"name,omitempty" yaml:"name,omitempty"`
	Settings MovementSettings `json:"settings" yaml:"settings"`
}

func convertDefinitions(docs []actionDefinitionDoc) ([]ActionDefinition, error) {
	if docs == nil {
		return nil, nil
	}
	out := make([]ActionDefinition, 0, len(docs))
	for i, d := range docs {
		policy, err := ParsePolicy(d.Policy)
		if err != nil {
			return nil, fmt.Errorf("definition #%d (%s): %w", i, d.ActionID, err)
		}
		enabled := true
		if d.Enabled != nil {
			enabled = *d.Enabled
		}
		out = append(out, ActionDefinition{
			ActionID:     strings.TrimSpace(d.ActionID),
			Enabled:      enabled,
			Policy:       policy,
			BlockedBy:    d.BlockedBy,
			Cancels:      d.Cancels,
			AppliesLocks: d.AppliesLocks,
		})
	}
	return out, nil
}
