package forge

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/roach88/omni/internal/ir"
)

//go:embed resolved_manifest.schema.json
var resolvedManifestSchema []byte

const schemaResource = "resolved_manifest.schema.json"

// resolvedDoc fixes the field order of ResolvedManifest.json.
type resolvedDoc struct {
	ForgeVersion        int                  `json:"forgeVersion"`
	InputHash           string               `json:"inputHash"`
	SystemsCount        int                  `json:"systemsCount"`
	ActionsCount        int                  `json:"actionsCount"`
	GeneratedAt         *string              `json:"generatedAt"`
	Schema              string               `json:"schema"`
	GenerationRoot      string               `json:"generationRoot"`
	Namespace           string               `json:"namespace"`
	BuildVersion        int                  `json:"buildVersion"`
	Systems             []ir.ResolvedSystem  `json:"systems"`
	InitializationOrder []string             `json:"initializationOrder"`
	Profiles            []ir.ResolvedProfile `json:"profiles"`
	ActionDefinitions   []ir.ResolvedAction  `json:"actionDefinitions"`
}

// EncodeResolved renders res as ResolvedManifest.json: fixed field order,
// two-space indentation, generatedAt null, and empty lists as [].
func EncodeResolved(res *ir.Resolved) ([]byte, error) {
	doc := resolvedDoc{
		ForgeVersion:        res.ForgeVersion,
		InputHash:           res.InputHash,
		SystemsCount:        res.SystemsCount,
		ActionsCount:        res.ActionsCount,
		Schema:              ir.ResolvedManifestSchema,
		GenerationRoot:      res.GenerationRoot,
		Namespace:           res.Namespace,
		BuildVersion:        res.BuildVersion,
		Systems:             make([]ir.ResolvedSystem, 0, len(res.Systems)),
		InitializationOrder: orEmpty(res.InitializationOrder),
		Profiles:            orEmpty(res.Profiles),
		ActionDefinitions:   make([]ir.ResolvedAction, 0, len(res.ActionDefinitions)),
	}
	for _, s := range res.Systems {
		s.Dependencies = orEmpty(s.Dependencies)
		doc.Systems = append(doc.Systems, s)
	}
	for _, a := range res.ActionDefinitions {
		a.BlockedBy = orEmpty(a.BlockedBy)
		a.Cancels = orEmpty(a.Cancels)
		a.AppliesLocks = orEmpty(a.AppliesLocks)
		doc.ActionDefinitions = append(doc.ActionDefinitions, a)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	errSchema      error
)

func resolvedSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(resolvedManifestSchema))
		if err != nil {
			errSchema = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaResource, doc); err != nil {
			errSchema = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, errSchema = c.Compile(schemaResource)
	})
	return compiledSchema, errSchema
}

// ValidateResolvedJSON checks an encoded resolved manifest against the
// embedded JSON Schema.
func ValidateResolvedJSON(data []byte) error {
	sch, err := resolvedSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unmarshal resolved manifest: %w", err)
	}
	return sch.Validate(inst)
}

// RenderReport renders ForgeReport.md.
func RenderReport(rep *ir.Report) string {
	status := "FAIL"
	if rep.Passed {
		status = "PASS"
	}
	lines := []string{
		"# OMNI Forge Report",
		"",
		"- Status: " + status,
		"- Summary: " + rep.Summary,
		fmt.Sprintf("- Manifest Source: `%s`", rep.ManifestSource),
		fmt.Sprintf("- Systems: %d", rep.SystemCount),
		fmt.Sprintf("- Actions: %d", rep.ActionCount),
		fmt.Sprintf("- Errors: %d", rep.ErrorCount),
		fmt.Sprintf("- Warnings: %d", rep.WarningCount),
		"",
		"## Forge Metadata",
		"",
		fmt.Sprintf("- forgeVersion: %d", rep.ForgeVersion),
		"- inputHash: " + rep.InputHash,
		fmt.Sprintf("- systemsCount: %d", rep.SystemCount),
		fmt.Sprintf("- actionsCount: %d", rep.ActionCount),
		"",
	}
	if len(rep.Issues) > 0 {
		lines = append(lines, "## Issues", "")
		for _, issue := range rep.Issues {
			lines = append(lines, fmt.Sprintf("- [%s] `%s` at `%s`: %s | Recommendation: %s",
				issue.Severity, issue.Code, issue.Location, issue.Message, issue.Recommendation))
		}
		lines = append(lines, "")
	}
	lines = append(lines,
		"## Outputs",
		"",
		fmt.Sprintf("- ResolvedManifest: `%s`", rep.OutputResolvedManifestPath),
		fmt.Sprintf("- Report: `%s`", rep.OutputReportPath),
		"",
	)
	return strings.Join(lines, "\n")
}
