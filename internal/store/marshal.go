package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/omni/internal/ir"
)

// marshalCanceled converts a canceled action list to canonical JSON TEXT.
// Order is preserved: it is the order ActionGate canceled the actions in.
func marshalCanceled(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := ir.MarshalCanonical(ids)
	if err != nil {
		return "", fmt.Errorf("marshal canceled: %w", err)
	}
	return string(data), nil
}

// unmarshalCanceled parses a canceled action list. Empty input yields an
// empty slice.
func unmarshalCanceled(data string) ([]string, error) {
	ids := []string{}
	if data == "" || data == "[]" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal canceled: %w", err)
	}
	return ids, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
