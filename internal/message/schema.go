package message

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SchemaError reports a message that does not match its contract.
type SchemaError struct {
	// Schema names the contract that rejected the message (e.g. "StartAction").
	Schema string

	// Message is the human-readable reason.
	Message string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return e.Message
}

func schemaErrorf(schema, format string, args ...any) *SchemaError {
	return &SchemaError{Schema: schema, Message: fmt.Sprintf(format, args...)}
}

// ParseBool parses the strict boolean text encoding used on the bus:
// case-insensitive "true"/"false", or "1"/"0".
func ParseBool(s string) (bool, error) {
	switch {
	case strings.EqualFold(s, "true") || s == "1":
		return true, nil
	case strings.EqualFold(s, "false") || s == "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", s)
}

// FormatBool renders a boolean the way systems publish it.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// FormatAmount renders a numeric argument in its shortest exact form.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func requiredValue(schema string, m map[string]string, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", schemaErrorf(schema, "Missing required key '%s'.", key)
	}
	return v, nil
}

func requiredActionID(schema string, m map[string]string) (string, error) {
	v, err := requiredValue(schema, m, KeyActionID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(v) == "" {
		return "", schemaErrorf(schema, "Invalid ActionId.")
	}
	return v, nil
}

func requiredBool(schema string, m map[string]string, key string) (bool, error) {
	v, err := requiredValue(schema, m, key)
	if err != nil {
		return false, err
	}
	b, perr := ParseBool(v)
	if perr != nil {
		return false, schemaErrorf(schema, "Invalid boolean value for %s.", key)
	}
	return b, nil
}

func requiredAmount(schema string, m map[string]string) (float64, error) {
	v, err := requiredValue(schema, m, KeyAmount)
	if err != nil {
		return 0, err
	}
	f, perr := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if perr != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, schemaErrorf(schema, "Invalid Amount '%s'; expected a non-negative number.", v)
	}
	return f, nil
}

func mismatch(kind, schema string) *SchemaError {
	return schemaErrorf(schema, "%s schema mismatch for %s.", kind, schema)
}
