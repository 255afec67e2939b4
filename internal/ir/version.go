package ir

// Version constants for forge artifacts.
const (
	// ForgeVersion is the resolved manifest format version.
	ForgeVersion = 1

	// ResolvedManifestSchema tags every ResolvedManifest.json document.
	ResolvedManifestSchema = "omni.forge.resolved_manifest.v1"

	// DefaultGenerationRoot is used when the forge root is empty.
	DefaultGenerationRoot = "/Game/Data"
)
