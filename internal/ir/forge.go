package ir

// ForgeInput selects the manifest source and generation options of a forge run.
type ForgeInput struct {
	GenerationRoot       string
	ManifestAsset        string
	ManifestClass        string
	RequireContentAssets bool
}

// DefaultForgeInput returns the input used when no arguments are given.
func DefaultForgeInput() ForgeInput {
	return ForgeInput{
		GenerationRoot:       DefaultGenerationRoot,
		RequireContentAssets: true,
	}
}

// Normalized is the canonicalized manifest the forge hashes and validates.
type Normalized struct {
	GenerationRoot string
	Namespace      string
	BuildVersion   int
	Systems        []NormalizedSystem
}

// NormalizedSystem is one enabled manifest entry after normalization.
type NormalizedSystem struct {
	SystemID        string
	SystemClassPath string
	Dependencies    []string
	Settings        map[string]string
}

// HashInput returns the value hashed into the forge input hash:
// {namespace, buildVersion, systems[{systemId, systemClassPath, dependencies, settings}]}.
func (n *Normalized) HashInput() map[string]any {
	systems := make([]any, 0, len(n.Systems))
	for _, s := range n.Systems {
		deps := s.Dependencies
		if deps == nil {
			deps = []string{}
		}
		settings := s.Settings
		if settings == nil {
			settings = map[string]string{}
		}
		systems = append(systems, map[string]any{
			"systemId":        s.SystemID,
			"systemClassPath": s.SystemClassPath,
			"dependencies":    deps,
			"settings":        settings,
		})
	}
	return map[string]any{
		"namespace":    n.Namespace,
		"buildVersion": n.BuildVersion,
		"systems":      systems,
	}
}

// Resolved is the content of ResolvedManifest.json.
type Resolved struct {
	ForgeVersion        int
	InputHash           string
	SystemsCount        int
	ActionsCount        int
	GenerationRoot      string
	Namespace           string
	BuildVersion        int
	Systems             []ResolvedSystem
	InitializationOrder []string
	Profiles            []ResolvedProfile
	ActionDefinitions   []ResolvedAction
}

// ResolvedSystem is a system as listed in the resolved manifest.
type ResolvedSystem struct {
	SystemID        string   `json:"systemId"`
	SystemClassPath string   `json:"systemClassPath"`
	Dependencies    []string `json:"dependencies"`
}

// ResolvedProfile binds a system setting to the profile and library assets
// it resolved to.
type ResolvedProfile struct {
	SystemID         string `json:"systemId"`
	SettingKey       string `json:"settingKey"`
	ProfileAssetPath string `json:"profileAssetPath"`
	ProfileClassPath string `json:"profileClassPath"`
	LibraryAssetPath string `json:"libraryAssetPath"`
	LibraryClassPath string `json:"libraryClassPath"`
}

// ResolvedAction is an action definition as listed in the resolved manifest.
type ResolvedAction struct {
	ActionID     string   `json:"actionId"`
	Enabled      bool     `json:"enabled"`
	Policy       string   `json:"policy"`
	BlockedBy    []string `json:"blockedBy"`
	Cancels      []string `json:"cancels"`
	AppliesLocks []string `json:"appliesLocks"`
}

// Severity classifies a forge issue.
type Severity string

const (
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Issue is one structured forge finding.
type Issue struct {
	Severity       Severity `json:"severity"`
	Code           string   `json:"code"`
	Message        string   `json:"message"`
	Location       string   `json:"location"`
	Recommendation string   `json:"recommendation"`
}

// Report is the outcome of a forge run. It is always produced.
type Report struct {
	Passed                     bool    `json:"passed"`
	ForgeVersion               int     `json:"forge_version"`
	InputHash                  string  `json:"input_hash"`
	Summary                    string  `json:"summary"`
	ManifestSource             string  `json:"manifest_source"`
	OutputResolvedManifestPath string  `json:"output_resolved_manifest_path"`
	OutputReportPath           string  `json:"output_report_path"`
	ErrorCount                 int     `json:"error_count"`
	WarningCount               int     `json:"warning_count"`
	SystemCount                int     `json:"system_count"`
	ActionCount                int     `json:"action_count"`
	Issues                     []Issue `json:"issues"`
}

// AddError records an error-severity issue.
func (r *Report) AddError(code, message, location, recommendation string) {
	r.Issues = append(r.Issues, Issue{
		Severity:       SeverityError,
		Code:           code,
		Message:        message,
		Location:       location,
		Recommendation: recommendation,
	})
	r.ErrorCount++
}

// AddWarning records a warning-severity issue. Warnings never block
// artifact generation.
func (r *Report) AddWarning(code, message, location, recommendation string) {
	r.Issues = append(r.Issues, Issue{
		Severity:       SeverityWarning,
		Code:           code,
		Message:        message,
		Location:       location,
		Recommendation: recommendation,
	})
	r.WarningCount++
}

// HasErrors reports whether at least one error-severity issue was recorded.
func (r *Report) HasErrors() bool {
	return r.ErrorCount > 0
}
