package forge

import (
	"fmt"
	"strings"

	"github.com/roach88/omni/internal/ir"
)

// NormalizeSlashes trims s, turns backslashes into forward slashes and
// collapses repeated slashes.
func NormalizeSlashes(s string) string {
	out := strings.ReplaceAll(strings.TrimSpace(s), "\\", "/")
	for strings.Contains(out, "//") {
		out = strings.ReplaceAll(out, "//", "/")
	}
	return out
}

// NormalizeRoot turns a user-supplied generation root into an absolute
// /Game path without a trailing slash. An empty root becomes
// ir.DefaultGenerationRoot.
func NormalizeRoot(root string) string {
	out := NormalizeSlashes(root)
	if out == "" {
		return ir.DefaultGenerationRoot
	}
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	if !strings.HasPrefix(out, "/Game") {
		out = "/Game/" + out[1:]
	}
	out = strings.TrimRight(out, "/")
	if out == "" {
		return ir.DefaultGenerationRoot
	}
	return out
}

// ParseArgs builds a forge input from key=value arguments.
//
// Recognized keys, matched case-insensitively: root, manifestAsset,
// manifestClass and requireContentAssets. A leading argument without "="
// is taken as the root.
func ParseArgs(args []string) (ir.ForgeInput, error) {
	in := ir.DefaultForgeInput()
	for i, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			if i == 0 {
				in.GenerationRoot = strings.TrimSpace(arg)
				continue
			}
			return in, fmt.Errorf("argument %q is not key=value", arg)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "root":
			in.GenerationRoot = value
		case "manifestasset":
			in.ManifestAsset = value
		case "manifestclass":
			in.ManifestClass = value
		case "requirecontentassets":
			b, err := parseBool(value)
			if err != nil {
				return in, fmt.Errorf("requireContentAssets: %w", err)
			}
			in.RequireContentAssets = b
		default:
			return in, fmt.Errorf("unknown forge argument %q", key)
		}
	}
	return in, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q (want 1/0, true/false, on/off or yes/no)", s)
}
