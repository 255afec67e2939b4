package forge

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/profile"
)

// ClassPath returns the class path recorded for a content document kind.
func ClassPath(kind string) string {
	return "/Script/OmniRuntime.Omni" + kind
}

// profileRule describes the profile setting one official system requires.
type profileRule struct {
	settingKey  string
	profileKind string
	libraryKind string
	check       func(st *run, c *profileCheck) bool
}

var profileRules = map[string]profileRule{
	ir.SystemActionGate: {
		settingKey:  ir.SettingActionProfile,
		profileKind: profile.DocActionProfile,
		libraryKind: profile.DocActionLibrary,
		check:       (*run).checkActionProfile,
	},
	ir.SystemStatus: {
		settingKey:  ir.SettingStatusProfile,
		profileKind: profile.DocStatusProfile,
		libraryKind: profile.DocStatusLibrary,
		check:       (*run).checkStatusProfile,
	},
	ir.SystemMovement: {
		settingKey:  ir.SettingMovementProfile,
		profileKind: profile.DocMovementProfile,
		libraryKind: profile.DocMovementLibrary,
		check:       (*run).checkMovementProfile,
	},
}

// profileCheck is the state of one profile setting under validation.
type profileCheck struct {
	rule     profileRule
	systemID string
	location string
	path     string
	resolved ir.ResolvedProfile
}

// validateProfile applies the profile rule of s, if any. A profile that
// passes is added to the resolved profiles.
func (st *run) validateProfile(s *ir.NormalizedSystem) {
	rule, ok := profileRules[s.SystemID]
	if !ok {
		return
	}
	c := &profileCheck{
		rule:     rule,
		systemID: s.SystemID,
		location: fmt.Sprintf("SystemId=%s Setting=%s", s.SystemID, rule.settingKey),
	}

	c.path = NormalizeSlashes(s.Settings[rule.settingKey])
	if c.path == "" {
		st.report.AddError(CodeMissingSetting,
			fmt.Sprintf("Missing required setting '%s' for system '%s'.", rule.settingKey, s.SystemID),
			c.location,
			fmt.Sprintf("Set '%s' to a valid %s asset path.", rule.settingKey, rule.profileKind))
		return
	}
	if !strings.HasPrefix(c.path, profile.GamePrefix) {
		st.report.AddError(CodeInvalidPath,
			fmt.Sprintf("Invalid profile asset path '%s' for system '%s'.", c.path, s.SystemID),
			c.location,
			"Use a valid object path starting with /Game/.")
		return
	}
	c.resolved = ir.ResolvedProfile{
		SystemID:         s.SystemID,
		SettingKey:       rule.settingKey,
		ProfileAssetPath: c.path,
	}
	if !st.in.RequireContentAssets {
		st.profiles = append(st.profiles, c.resolved)
		return
	}

	if _, _, err := profile.SplitObjectPath(c.path); err != nil {
		st.report.AddError(CodeInvalidPath,
			fmt.Sprintf("Malformed profile object path '%s' for system '%s'.", c.path, s.SystemID),
			c.location,
			"Fix the object path format: /Game/Folder/Asset.Asset.")
		return
	}
	if st.r.Provider == nil {
		st.report.AddError(CodeInternal,
			fmt.Sprintf("No content provider is configured to check profile '%s'.", c.path),
			c.location,
			"Pass a content directory or run with requireContentAssets=0.")
		return
	}
	if rule.check(st, c) {
		st.profiles = append(st.profiles, c.resolved)
	}
}

// profileLoadError reports a failed profile load.
func (st *run) profileLoadError(c *profileCheck, err error) {
	switch profile.KindOf(err) {
	case profile.KindNotFound:
		st.report.AddError(CodeMissingAsset,
			fmt.Sprintf("Profile asset not found for system '%s': %s", c.systemID, c.path),
			c.location,
			fmt.Sprintf("Create a %s document at this path and point its library at a %s.", c.rule.profileKind, c.rule.libraryKind))
	case profile.KindTypeMismatch:
		st.report.AddError(CodeTypeMismatch,
			fmt.Sprintf("Profile '%s' is '%s' (expected %s).", c.path, profile.FoundKind(err), c.rule.profileKind),
			c.location,
			fmt.Sprintf("Use the correct %s document kind.", c.rule.profileKind))
	default:
		st.report.AddError(CodeInvalidProfileConfig,
			fmt.Sprintf("Profile '%s' for system '%s' could not be decoded: %v", c.path, c.systemID, err),
			c.location,
			fmt.Sprintf("Fix the document so it decodes as a %s.", c.rule.profileKind))
	}
}

// libraryLoadError reports a failed library load.
func (st *run) libraryLoadError(c *profileCheck, libraryPath string, err error) {
	switch profile.KindOf(err) {
	case profile.KindNotFound:
		st.report.AddError(CodeMissingAsset,
			fmt.Sprintf("%s not found for profile '%s': %s", c.rule.libraryKind, c.path, libraryPath),
			c.location,
			"Create the library document and assign it in the profile.")
	case profile.KindTypeMismatch:
		st.report.AddError(CodeTypeMismatch,
			fmt.Sprintf("%s '%s' is '%s' (expected %s).", c.rule.libraryKind, libraryPath, profile.FoundKind(err), c.rule.libraryKind),
			c.location,
			fmt.Sprintf("Assign a document of kind %s.", c.rule.libraryKind))
	default:
		st.report.AddError(CodeInvalidProfileConfig,
			fmt.Sprintf("%s '%s' could not be decoded: %v", c.rule.libraryKind, libraryPath, err),
			c.location,
			fmt.Sprintf("Fix the document so it decodes as a %s.", c.rule.libraryKind))
	}
}

func (c *profileCheck) setLibrary(path string) {
	c.resolved.LibraryAssetPath = path
	c.resolved.LibraryClassPath = ClassPath(c.rule.libraryKind)
}

func (st *run) checkActionProfile(c *profileCheck) bool {
	prof, err := st.r.Provider.LoadActionProfile(c.path)
	if err != nil {
		st.profileLoadError(c, err)
		return false
	}
	c.resolved.ProfileClassPath = ClassPath(c.rule.profileKind)

	libPath := strings.TrimSpace(prof.LibraryPath)
	if libPath == "" {
		st.report.AddError(CodeNullLibrary,
			fmt.Sprintf("Profile '%s' has null ActionLibrary.", c.path),
			c.location,
			"Assign an ActionLibrary to the profile library field.")
		return false
	}
	lib, err := st.r.Provider.LoadActionLibrary(libPath)
	if err != nil {
		st.libraryLoadError(c, libPath, err)
		return false
	}
	c.setLibrary(libPath)

	defs := profile.ResolveDefinitions(prof, lib)
	if len(defs) == 0 {
		st.report.AddError(CodeInvalidProfileConfig,
			fmt.Sprintf("Action profile '%s' resolved zero definitions.", c.path),
			c.location,
			"Populate ActionLibrary definitions or profile overrides.")
		return false
	}

	resolvedAny := false
	for _, def := range defs {
		id := strings.TrimSpace(def.ActionID)
		switch {
		case id == "":
			st.report.AddWarning(CodeEmptyActionID,
				fmt.Sprintf("Action profile '%s' contains an entry with empty ActionId; entry ignored.", c.path),
				c.location,
				"Set ActionId to a valid gameplay/system id (example: Movement.Sprint).")
		case strings.HasPrefix(id, profile.ReservedActionPrefix):
			st.report.AddError(CodeInvalidActionIDPrefix,
				fmt.Sprintf("ActionId '%s' is invalid in profile '%s'.", id, c.path),
				c.location,
				"ActionId must be gameplay/system-level (example: Movement.Sprint), not Input.*")
		case st.actionIDs[id]:
			st.report.AddError(CodeDuplicateActionID,
				fmt.Sprintf("Duplicate ActionId '%s' found after profile resolution.", id),
				c.location,
				"Keep a single canonical ActionId definition.")
		default:
			st.actionIDs[id] = true
			st.actions = append(st.actions, toResolvedAction(id, def))
			resolvedAny = true
		}
	}
	return resolvedAny
}

func toResolvedAction(id string, def profile.ActionDefinition) ir.ResolvedAction {
	return ir.ResolvedAction{
		ActionID:     id,
		Enabled:      def.Enabled,
		Policy:       def.Policy.String(),
		BlockedBy:    sortedTags(def.BlockedBy),
		Cancels:      sortedIDs(def.Cancels),
		AppliesLocks: sortedTags(def.AppliesLocks),
	}
}

// sortedTags keeps the valid tags, deduplicated and sorted.
func sortedTags(tags []string) []string {
	out := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if profile.ValidTag(t) && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// sortedIDs keeps the non-blank ids, deduplicated and sorted.
func sortedIDs(ids []string) []string {
	out := []string{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func (st *run) checkStatusProfile(c *profileCheck) bool {
	prof, err := st.r.Provider.LoadStatusProfile(c.path)
	if err != nil {
		st.profileLoadError(c, err)
		return false
	}
	c.resolved.ProfileClassPath = ClassPath(c.rule.profileKind)

	var lib *profile.StatusLibrary
	if libPath := strings.TrimSpace(prof.LibraryPath); libPath != "" {
		if lib, err = st.r.Provider.LoadStatusLibrary(libPath); err != nil {
			st.libraryLoadError(c, libPath, err)
			return false
		}
		c.setLibrary(libPath)
	}
	if _, err := profile.ResolveStatusSettings(prof, lib); err != nil {
		st.report.AddError(CodeInvalidProfileConfig,
			fmt.Sprintf("Status profile '%s' has no valid resolved settings (%s).", c.path, strings.TrimSuffix(err.Error(), ".")),
			c.location,
			"Configure StatusLibrary and/or valid overrides.")
		return false
	}
	return true
}

func (st *run) checkMovementProfile(c *profileCheck) bool {
	prof, err := st.r.Provider.LoadMovementProfile(c.path)
	if err != nil {
		st.profileLoadError(c, err)
		return false
	}
	c.resolved.ProfileClassPath = ClassPath(c.rule.profileKind)

	var lib *profile.MovementLibrary
	if libPath := strings.TrimSpace(prof.LibraryPath); libPath != "" {
		if lib, err = st.r.Provider.LoadMovementLibrary(libPath); err != nil {
			st.libraryLoadError(c, libPath, err)
			return false
		}
		c.setLibrary(libPath)
	}
	if _, err := profile.ResolveMovementSettings(prof, lib); err != nil {
		st.report.AddError(CodeInvalidProfileConfig,
			fmt.Sprintf("Movement profile '%s' has no valid resolved settings (%s).", c.path, strings.TrimSuffix(err.Error(), ".")),
			c.location,
			"Configure MovementLibrary and/or valid overrides.")
		return false
	}
	return true
}
