package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/omni/internal/forge"
	"github.com/roach88/omni/internal/ir"
	"github.com/roach88/omni/internal/message"
	"github.com/roach88/omni/internal/profile"
	"github.com/roach88/omni/internal/registry"
	"github.com/roach88/omni/internal/systems"
	"github.com/roach88/omni/internal/systems/actiongate"
)

// Source is the message source used for commands, queries and events the
// harness sends.
const Source = "Harness"

// Harness executes one scenario against a live registry.
type Harness struct {
	registry *registry.Registry
	logger   *slog.Logger
	result   *Result
}

type runConfig struct {
	logger    *slog.Logger
	telemetry actiongate.Telemetry
	recorders []DecisionRecorder
}

// DecisionRecorder persists published decisions.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, sessionID string, d actiongate.Decision) error
}

// Option configures Run.
type Option func(*runConfig)

// WithLogger sets the logger passed to the registry and systems.
// Defaults to a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTelemetry sets the ActionGate telemetry sink.
func WithTelemetry(t actiongate.Telemetry) Option {
	return func(c *runConfig) {
		c.telemetry = t
	}
}

// WithDecisionRecorder persists every published decision under the
// scenario session.
func WithDecisionRecorder(rec DecisionRecorder) Option {
	return func(c *runConfig) {
		if rec != nil {
			c.recorders = append(c.recorders, rec)
		}
	}
}

// Run executes a scenario with a background context.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext executes a scenario and returns the result.
//
// Each scenario runs in a fresh registry with a fixed session id and a
// world clock at zero, so identical scenarios produce identical traces.
//
// Execution flow:
// 1. Resolve the manifest and content provider
// 2. Boot the standard catalog, observing every broadcast event
// 3. Execute steps with their expectations
// 4. Evaluate assertions against the final state
// 5. Shut the registry down
//
// Run returns an error when the scenario cannot execute at all (manifest,
// boot or recorder failures). Failed expectations are reported in the
// result.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	manifest, err := resolveManifest(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest: %w", err)
	}

	mode, err := profile.ParseMode(scenario.Mode)
	if err != nil {
		return nil, err
	}

	var provider profile.Provider = profile.NewMemory()
	if scenario.Content != "" {
		provider = profile.NewFileProvider(scenario.Content)
	}

	sessionID := scenario.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	result := NewResult()
	result.SessionID = sessionID

	var r *registry.Registry
	var recordErr error
	r = registry.New(
		registry.WithLogger(cfg.logger),
		registry.WithSessionIDs(registry.NewFixedGenerator(sessionID)),
		registry.WithEventObserver(func(evt message.Event) {
			result.AddEventTrace(r.Clock().TickIndex(), evt.Source, evt.Name, evt.Payload)
		}),
	)

	catalog := systems.StandardCatalog(systems.Config{
		Provider:  provider,
		Mode:      mode,
		Logger:    cfg.logger,
		Telemetry: cfg.telemetry,
		DecisionObservers: []func(actiongate.Decision){func(d actiongate.Decision) {
			result.Decisions = append(result.Decisions, d)
			for _, rec := range cfg.recorders {
				if err := rec.RecordDecision(ctx, sessionID, d); err != nil && recordErr == nil {
					recordErr = err
				}
			}
		}},
	})

	if err := r.InitializeFromManifest(manifest, catalog); err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}
	defer r.Shutdown()

	h := &Harness{registry: r, logger: cfg.logger, result: result}
	if err := h.executeSteps(ctx, scenario.Steps); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}
	if recordErr != nil {
		return nil, fmt.Errorf("failed to record decision: %w", recordErr)
	}

	actx := &AssertionContext{Registry: r}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// resolveManifest returns the manifest the scenario boots from.
func resolveManifest(s *Scenario) (*ir.Manifest, error) {
	ref := s.Manifest
	if ref == "" {
		ref = ir.DefaultManifestClass
	}
	if m, ok := ir.BuiltinManifest(ref); ok {
		return m, nil
	}
	if isAssetRef(ref) {
		return forge.FileManifests{ContentDir: s.Content}.LoadManifest(ref)
	}
	return forge.LoadManifestFile(ref)
}

// executeSteps runs all steps in order.
// Expectation failures are recorded on the result; an error means a step
// could not run.
func (h *Harness) executeSteps(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch {
		case step.Command != nil:
			h.executeCommand(i, step.Command)
		case step.Query != nil:
			h.executeQuery(i, step.Query)
		case step.Event != nil:
			h.registry.BroadcastEvent(message.Event{
				Source:  step.Event.Source,
				Name:    step.Event.Name,
				Payload: step.Event.Payload,
			})
		case step.Tick != nil:
			count := max(step.Tick.Count, 1)
			for range count {
				h.registry.Tick(step.Tick.DT)
			}
		case step.Sprint != nil:
			err = h.executeSprint(step.Sprint)
		case step.Tag != nil:
			err = h.executeTag(step.Tag)
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		h.logger.Debug("step completed",
			"step", i,
			"tick", h.registry.Clock().TickIndex(),
			"events", len(h.result.Trace))
	}
	return nil
}

func (h *Harness) executeCommand(i int, step *CommandStep) {
	cmd := message.Command{
		Source:    Source,
		Target:    step.Target,
		Name:      step.Name,
		Arguments: step.Args,
	}
	handled := h.registry.DispatchCommand(cmd)
	if step.ExpectHandled != nil && handled != *step.ExpectHandled {
		h.result.AddError(fmt.Sprintf("steps[%d] command %s.%s: handled = %t, expected %t",
			i, step.Target, step.Name, handled, *step.ExpectHandled))
	}
}

func (h *Harness) executeQuery(i int, step *QueryStep) {
	q := &message.Query{
		Source:    Source,
		Target:    step.Target,
		Name:      step.Name,
		Arguments: step.Args,
	}
	h.registry.ExecuteQuery(q)
	if step.Expect == nil {
		return
	}

	label := fmt.Sprintf("steps[%d] query %s.%s", i, step.Target, step.Name)
	if want := step.Expect.Handled; want != nil && q.Handled != *want {
		h.result.AddError(fmt.Sprintf("%s: handled = %t, expected %t", label, q.Handled, *want))
	}
	if want := step.Expect.Success; want != nil && q.Success != *want {
		h.result.AddError(fmt.Sprintf("%s: success = %t, expected %t (result %q)", label, q.Success, *want, q.Result))
	}
	if want := step.Expect.Result; want != nil && q.Result != *want {
		h.result.AddError(fmt.Sprintf("%s: result = %q, expected %q", label, q.Result, *want))
	}
	for _, key := range ir.SortedKeys(step.Expect.Output) {
		want := step.Expect.Output[key]
		if got, ok := q.OutputValue(key); !ok || got != want {
			h.result.AddError(fmt.Sprintf("%s: output %s = %q, expected %q", label, key, got, want))
		}
	}
}

func (h *Harness) executeSprint(step *SprintStep) error {
	mv, ok := systems.Movement(h.registry)
	if !ok {
		return fmt.Errorf("sprint: %s system is not active", ir.SystemMovement)
	}
	if step.Auto > 0 {
		mv.StartAutoSprint(step.Auto)
		return nil
	}
	mv.SetSprintRequested(step.Requested)
	return nil
}

func (h *Harness) executeTag(step *TagStep) error {
	st, ok := systems.Status(h.registry)
	if !ok {
		return fmt.Errorf("tag: %s system is not active", ir.SystemStatus)
	}
	for _, tag := range step.Set {
		st.SetExternalTag(tag, true)
	}
	for _, tag := range step.Clear {
		st.SetExternalTag(tag, false)
	}
	return nil
}

// activeSystemIDs is used in error messages.
func activeSystemIDs(r *registry.Registry) []string {
	ids := slices.Clone(r.ActiveSystemIDs())
	slices.Sort(ids)
	return ids
}
