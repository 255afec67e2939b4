package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/profile"
)

// Scenario defines a runtime scenario.
// A scenario boots the official systems from a manifest, drives them
// through a list of steps and asserts on the final state and the trace of
// broadcast events.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Manifest is a builtin manifest class (e.g. "Omni.Official") or a path
	// to a manifest document. Defaults to ir.DefaultManifestClass.
	Manifest string `yaml:"manifest,omitempty"`

	// Content is the content directory profiles are loaded from.
	// Relative paths are resolved against the scenario file.
	Content string `yaml:"content,omitempty"`

	// Mode is "strict" (default), "lenient" or "auto".
	Mode string `yaml:"mode,omitempty"`

	// SessionID is a fixed session id for deterministic tests.
	// Defaults to DefaultSessionID.
	SessionID string `yaml:"session_id,omitempty"`

	// Steps drive the systems in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultSessionID is used when a scenario does not name a session.
const DefaultSessionID = "test-session-default"

// Step is one scenario step. Exactly one field is set.
type Step struct {
	Command *CommandStep `yaml:"command,omitempty"`
	Query   *QueryStep   `yaml:"query,omitempty"`
	Event   *EventStep   `yaml:"event,omitempty"`
	Tick    *TickStep    `yaml:"tick,omitempty"`
	Sprint  *SprintStep  `yaml:"sprint,omitempty"`
	Tag     *TagStep     `yaml:"tag,omitempty"`
}

// CommandStep dispatches a command to one system.
type CommandStep struct {
	Target string            `yaml:"target"`
	Name   string            `yaml:"name"`
	Args   map[string]string `yaml:"args,omitempty"`

	// ExpectHandled, when set, must equal the dispatch result.
	ExpectHandled *bool `yaml:"expect_handled,omitempty"`
}

// QueryStep executes a query against one system.
type QueryStep struct {
	Target string            `yaml:"target"`
	Name   string            `yaml:"name"`
	Args   map[string]string `yaml:"args,omitempty"`

	// Expect specifies the expected response. If nil, no validation is performed.
	Expect *QueryExpect `yaml:"expect,omitempty"`
}

// QueryExpect specifies expected query response fields.
// Unset fields are not checked; Output is a subset match.
type QueryExpect struct {
	Handled *bool             `yaml:"handled,omitempty"`
	Success *bool             `yaml:"success,omitempty"`
	Result  *string           `yaml:"result,omitempty"`
	Output  map[string]string `yaml:"output,omitempty"`
}

// EventStep broadcasts an event.
type EventStep struct {
	Source  string            `yaml:"source"`
	Name    string            `yaml:"name"`
	Payload map[string]string `yaml:"payload,omitempty"`
}

// TickStep advances the registry Count times by DT seconds.
type TickStep struct {
	DT    float64 `yaml:"dt"`
	Count int     `yaml:"count,omitempty"`
}

// SprintStep sets the Movement sprint request.
type SprintStep struct {
	Requested bool `yaml:"requested"`
	// Auto, when positive, starts an auto sprint of that many seconds
	// instead of a held request.
	Auto float64 `yaml:"auto,omitempty"`
}

// TagStep asserts and clears external Status tags.
type TagStep struct {
	Set   []string `yaml:"set,omitempty"`
	Clear []string `yaml:"clear,omitempty"`
}

// Assertion validates final state or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "active_actions": ActionGate's active actions equal Actions
	// - "last_decision": the last published decision matches
	// - "lock_count": the number of holders of Tag equals Count
	// - "state_tags": Status state tags equal Tags
	// - "stamina": Status stamina equals Value
	// - "trace_count": the event Event appears exactly Count times
	// - "trace_order": the events Events appear in this order
	Type string `yaml:"type"`

	// Actions is the expected set of active actions (active_actions).
	Actions []string `yaml:"actions,omitempty"`

	// ActionID, Allowed, Reason and Canceled describe the expected decision
	// (last_decision). Unset fields are not checked.
	ActionID string   `yaml:"action_id,omitempty"`
	Allowed  *bool    `yaml:"allowed,omitempty"`
	Reason   string   `yaml:"reason,omitempty"`
	Canceled []string `yaml:"canceled,omitempty"`

	// Tag is the lock tag (lock_count).
	Tag string `yaml:"tag,omitempty"`

	// Count is the expected number (lock_count, trace_count).
	Count int `yaml:"count,omitempty"`

	// Tags is the expected state tag set (state_tags).
	Tags []string `yaml:"tags,omitempty"`

	// Value is the expected stamina (stamina).
	Value float64 `yaml:"value,omitempty"`

	// Event is the event name (trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected event order (trace_order).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertActiveActions = "active_actions"
	AssertLastDecision  = "last_decision"
	AssertLockCount     = "lock_count"
	AssertStateTags     = "state_tags"
	AssertStamina       = "stamina"
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Relative content and manifest paths are resolved against the file's
// directory. Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving content and manifest paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if basePath != "" {
		if scenario.Content != "" && !filepath.IsAbs(scenario.Content) {
			scenario.Content = filepath.Join(basePath, scenario.Content)
		}
		if isManifestPath(scenario.Manifest) && !filepath.IsAbs(scenario.Manifest) {
			scenario.Manifest = filepath.Join(basePath, scenario.Manifest)
		}
	}

	if err := validatePaths(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return scenario, nil
}

// ParseScenario parses and validates scenario YAML. Paths are left as
// written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// isManifestPath reports whether ref names a manifest document rather than
// a builtin class.
func isManifestPath(ref string) bool {
	if ref == "" || isAssetRef(ref) {
		return false
	}
	if _, ok := ir.BuiltinManifest(ref); ok {
		return false
	}
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// isAssetRef reports whether ref is a manifest asset in the content tree.
func isAssetRef(ref string) bool {
	return strings.HasPrefix(ref, "/Game/")
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Manifest != "" && !isManifestPath(s.Manifest) && !isAssetRef(s.Manifest) {
		if _, ok := ir.BuiltinManifest(s.Manifest); !ok {
			return fmt.Errorf("manifest %q is neither a builtin class (%s), a manifest file nor a /Game/ asset",
				s.Manifest, strings.Join(ir.BuiltinManifestClasses(), ", "))
		}
	}
	if isAssetRef(s.Manifest) && s.Content == "" {
		return fmt.Errorf("manifest asset %s requires content", s.Manifest)
	}

	if _, err := profile.ParseMode(s.Mode); err != nil {
		return err
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validatePaths checks that referenced files exist.
func validatePaths(s *Scenario) error {
	if s.Content != "" {
		info, err := os.Stat(s.Content)
		if err != nil {
			return fmt.Errorf("content directory not found: %s", s.Content)
		}
		if !info.IsDir() {
			return fmt.Errorf("content is not a directory: %s", s.Content)
		}
	}
	if isManifestPath(s.Manifest) {
		if _, err := os.Stat(s.Manifest); os.IsNotExist(err) {
			return fmt.Errorf("manifest file not found: %s", s.Manifest)
		}
	}
	return nil
}

// validateStep checks that exactly one step kind is set and its required
// fields are present.
func validateStep(index int, step *Step) error {
	set := 0
	for _, present := range []bool{
		step.Command != nil,
		step.Query != nil,
		step.Event != nil,
		step.Tick != nil,
		step.Sprint != nil,
		step.Tag != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of command, query, event, tick, sprint or tag is required (got %d)", index, set)
	}

	switch {
	case step.Command != nil:
		if step.Command.Target == "" || step.Command.Name == "" {
			return fmt.Errorf("steps[%d].command: target and name are required", index)
		}
	case step.Query != nil:
		if step.Query.Target == "" || step.Query.Name == "" {
			return fmt.Errorf("steps[%d].query: target and name are required", index)
		}
	case step.Event != nil:
		if step.Event.Source == "" || step.Event.Name == "" {
			return fmt.Errorf("steps[%d].event: source and name are required", index)
		}
	case step.Tick != nil:
		if step.Tick.DT < 0 {
			return fmt.Errorf("steps[%d].tick: dt must be non-negative", index)
		}
		if step.Tick.Count < 0 {
			return fmt.Errorf("steps[%d].tick: count must be non-negative", index)
		}
	case step.Sprint != nil:
		if step.Sprint.Auto < 0 {
			return fmt.Errorf("steps[%d].sprint: auto must be non-negative", index)
		}
	case step.Tag != nil:
		if len(step.Tag.Set) == 0 && len(step.Tag.Clear) == 0 {
			return fmt.Errorf("steps[%d].tag: set or clear is required", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertActiveActions, AssertStateTags, AssertStamina:
		// Empty lists and zero values are meaningful.
	case AssertLastDecision:
		if a.ActionID == "" {
			return fmt.Errorf("assertions[%d]: action_id is required for last_decision", index)
		}
	case AssertLockCount:
		if a.Tag == "" {
			return fmt.Errorf("assertions[%d]: tag is required for lock_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for lock_count", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
