package forge

// Issue codes. Every code reads OMNI_FORGE_<id>_<name>; the E prefix marks
// errors and the W prefix warnings.
const (
	// Manifest structure (E001-E009)
	CodeDuplicateSystemID = "OMNI_FORGE_E001_DUPLICATE_SYSTEMID"
	CodeDuplicateActionID = "OMNI_FORGE_E002_DUPLICATE_ACTIONID"
	CodeMissingSystemID   = "OMNI_FORGE_E003_MISSING_SYSTEMID"
	CodeMissingSetting    = "OMNI_FORGE_E003_MISSING_SETTING"
	CodeInvalidPath       = "OMNI_FORGE_E004_INVALID_PATH"
	CodeMissingDependency = "OMNI_FORGE_E005_MISSING_DEPENDENCY"
	CodeDependencyCycle   = "OMNI_FORGE_E006_DEPENDENCY_CYCLE"

	// Content assets (E010-E019)
	CodeMissingAsset          = "OMNI_FORGE_E010_MISSING_ASSET"
	CodeTypeMismatch          = "OMNI_FORGE_E011_TYPE_MISMATCH"
	CodeNullLibrary           = "OMNI_FORGE_E012_NULL_LIBRARY"
	CodeInvalidProfileConfig  = "OMNI_FORGE_E015_INVALID_PROFILE_CONFIG"
	CodeInvalidActionIDPrefix = "OMNI_FORGE_E020_INVALID_ACTIONID_PREFIX"
	CodeMissingSystemClass    = "OMNI_FORGE_E022_MISSING_SYSTEMCLASS"
	CodeEmptyManifest         = "OMNI_FORGE_E030_EMPTY_MANIFEST"

	CodeInternal = "OMNI_FORGE_E099_INTERNAL"

	CodeEmptyActionID = "OMNI_FORGE_W001_EMPTY_ACTIONID"
)

// Issue locations that are not bound to a system.
const (
	locManifestAsset = "ManifestAssetPath"
	locManifestClass = "ManifestClassPath"
	locManifest      = "Manifest"
	locSystems       = "Manifest.Systems"
	locDependencies  = "Manifest.Systems.Dependencies"
	locNormalize     = "Normalize"
	locGenerate      = "Generate"
)
