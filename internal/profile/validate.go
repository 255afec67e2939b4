package profile

import (
	"fmt"
	"slices"
	"strings"
)

// ReservedActionPrefix is the action id namespace owned by input bindings.
const ReservedActionPrefix = "Input."

// IssueKind classifies a definition validation issue.
type IssueKind int

const (
	IssueEmptyActionID IssueKind = iota
	IssueReservedPrefix
	IssueInvalidBlockedBy
	IssueInvalidLocks
	IssueEmptyCancel
	IssueDuplicateActionID
	IssueUnknownCancel
)

// DefinitionIssue is one problem found in a resolved definition list.
type DefinitionIssue struct {
	Kind IssueKind

	// Index is the 1-based position of the definition.
	// Zero for duplicate-id issues.
	Index    int
	ActionID string
	// Ref is the offending Cancels entry for IssueUnknownCancel.
	Ref string
	// Count is the number of occurrences for IssueDuplicateActionID.
	Count   int
	Message string
}

// Labels names the profile and library in issue messages.
type Labels struct {
	Profile string
	Library string
}

// ValidTag reports whether tag can be used in a blocking context.
// Tags travel as CSV, so commas and whitespace are not allowed.
func ValidTag(tag string) bool {
	return tag != "" && !strings.ContainsAny(tag, ", \t\r\n")
}

// ValidateDefinitions checks resolved definitions and returns the issues
// in the order found.
//
// With sanitize set, the returned list drops definitions with an empty or
// reserved id, strips invalid tags and removes empty or unknown Cancels
// entries. Without it, the returned list is an unchanged copy.
// Duplicate ids are reported but never removed.
func ValidateDefinitions(defs []ActionDefinition, labels Labels, sanitize bool) ([]ActionDefinition, []DefinitionIssue) {
	var issues []DefinitionIssue
	out := make([]ActionDefinition, 0, len(defs))
	counts := make(map[string]int)
	var countOrder []string

	for i, def := range defs {
		def = def.Clone()
		index := i + 1

		if strings.TrimSpace(def.ActionID) == "" {
			issues = append(issues, DefinitionIssue{
				Kind:  IssueEmptyActionID,
				Index: index,
				Message: fmt.Sprintf("ActionProfile '%s' contains definition #%d with empty ActionId. Fix: set ActionId in ActionLibrary '%s' or profile overrides.",
					labels.Profile, index, labels.Library),
			})
			if !sanitize {
				out = append(out, def)
			}
			continue
		}

		if counts[def.ActionID] == 0 {
			countOrder = append(countOrder, def.ActionID)
		}
		counts[def.ActionID]++

		if strings.HasPrefix(def.ActionID, ReservedActionPrefix) {
			issues = append(issues, DefinitionIssue{
				Kind:     IssueReservedPrefix,
				Index:    index,
				ActionID: def.ActionID,
				Message: fmt.Sprintf("ActionProfile '%s' has disallowed ActionId '%s'. Fix: rename to gameplay/system namespace (example: Movement.Sprint) in '%s'.",
					labels.Profile, def.ActionID, labels.Library),
			})
			if !sanitize {
				out = append(out, def)
			}
			continue
		}

		if cleaned, bad := sanitizeTags(def.BlockedBy); bad {
			issues = append(issues, DefinitionIssue{
				Kind:     IssueInvalidBlockedBy,
				Index:    index,
				ActionID: def.ActionID,
				Message: fmt.Sprintf("Action '%s' in profile '%s' has invalid/empty tags in BlockedBy. Fix tags in ActionLibrary '%s'.",
					def.ActionID, labels.Profile, labels.Library),
			})
			if sanitize {
				def.BlockedBy = cleaned
			}
		}

		if cleaned, bad := sanitizeTags(def.AppliesLocks); bad {
			issues = append(issues, DefinitionIssue{
				Kind:     IssueInvalidLocks,
				Index:    index,
				ActionID: def.ActionID,
				Message: fmt.Sprintf("Action '%s' in profile '%s' has invalid/empty tags in AppliesLocks. Fix tags in ActionLibrary '%s'.",
					def.ActionID, labels.Profile, labels.Library),
			})
			if sanitize {
				def.AppliesLocks = cleaned
			}
		}

		for _, cancel := range def.Cancels {
			if strings.TrimSpace(cancel) != "" {
				continue
			}
			issues = append(issues, DefinitionIssue{
				Kind:     IssueEmptyCancel,
				Index:    index,
				ActionID: def.ActionID,
				Message: fmt.Sprintf("Action '%s' in profile '%s' has empty reference in Cancels. Fix the Cancels list in ActionLibrary '%s'.",
					def.ActionID, labels.Profile, labels.Library),
			})
		}
		if sanitize {
			def.Cancels = slices.DeleteFunc(def.Cancels, func(c string) bool {
				return strings.TrimSpace(c) == ""
			})
		}

		out = append(out, def)
	}

	for _, id := range countOrder {
		if n := counts[id]; n > 1 {
			issues = append(issues, DefinitionIssue{
				Kind:     IssueDuplicateActionID,
				ActionID: id,
				Count:    n,
				Message: fmt.Sprintf("ActionProfile '%s' has duplicate ActionId '%s' (%dx). Fix duplicates in ActionLibrary '%s' and/or profile overrides.",
					labels.Profile, id, n, labels.Library),
			})
		}
	}

	known := make(map[string]bool, len(out))
	for _, def := range out {
		if strings.TrimSpace(def.ActionID) != "" {
			known[def.ActionID] = true
		}
	}
	for i := range out {
		def := &out[i]
		if strings.TrimSpace(def.ActionID) == "" {
			continue
		}
		kept := def.Cancels[:0:0]
		for _, ref := range def.Cancels {
			if strings.TrimSpace(ref) == "" || known[ref] {
				kept = append(kept, ref)
				continue
			}
			issues = append(issues, DefinitionIssue{
				Kind:     IssueUnknownCancel,
				Index:    i + 1,
				ActionID: def.ActionID,
				Ref:      ref,
				Message: fmt.Sprintf("Action '%s' in profile '%s' references unknown action '%s' in Cancels. Fix: add '%s' to ActionLibrary '%s' or remove the reference.",
					def.ActionID, labels.Profile, ref, ref, labels.Library),
			})
			if !sanitize {
				kept = append(kept, ref)
			}
		}
		def.Cancels = kept
	}

	return out, issues
}

// sanitizeTags trims tags and drops invalid ones. bad reports whether any
// tag was dropped.
func sanitizeTags(tags []string) (cleaned []string, bad bool) {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if !ValidTag(tag) {
			bad = true
			continue
		}
		if !slices.Contains(cleaned, tag) {
			cleaned = append(cleaned, tag)
		}
	}
	return cleaned, bad
}

// SummarizeIssues formats at most limit issue messages joined by " | ",
// followed by " (+N more issue(s))" when some were left out.
func SummarizeIssues(issues []DefinitionIssue, limit int) string {
	n := min(limit, len(issues))
	msgs := make([]string, 0, n)
	for _, issue := range issues[:n] {
		msgs = append(msgs, issue.Message)
	}
	out := strings.Join(msgs, " | ")
	if extra := len(issues) - n; extra > 0 {
		out += fmt.Sprintf(" (+%d more issue(s))", extra)
	}
	return out
}
