package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ScenarioNotFoundError is returned when a referenced scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// ExpandScenarios turns files and directories into a sorted list of
// scenario files. Directories contribute their *.yaml and *.yml files
// (not recursive).
func ExpandScenarios(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{Path: p}
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			files = append(files, filepath.Join(p, entry.Name()))
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// SuiteResult contains results from running a set of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
	Results        []ScenarioOutcome `json:"results"`
}

// ScenarioOutcome is the result of one scenario in a suite.
type ScenarioOutcome struct {
	Name         string  `json:"name"`
	ScenarioPath string  `json:"scenario_path"`
	Result       *Result `json:"result,omitempty"`
}

// ScenarioFailure represents a failed scenario.
type ScenarioFailure struct {
	Name         string `json:"name,omitempty"`
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// AllPassed reports whether every scenario passed.
func (r *SuiteResult) AllPassed() bool {
	return r.Failed == 0
}

// RunSuite loads and runs every scenario under paths.
//
// For each scenario file:
// 1. Load the scenario
// 2. Run it via RunContext
// 3. Collect and report results
//
// Load and execution failures count as failed scenarios; RunSuite only
// returns an error when the paths cannot be expanded or ctx is done.
func RunSuite(ctx context.Context, paths []string, opts ...Option) (*SuiteResult, error) {
	files, err := ExpandScenarios(paths)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{Results: []ScenarioOutcome{}}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				ScenarioPath: path,
				Error:        fmt.Sprintf("failed to load scenario: %v", err),
			})
			continue
		}

		runResult, err := RunContext(ctx, scenario, opts...)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				Name:         scenario.Name,
				ScenarioPath: path,
				Error:        fmt.Sprintf("scenario execution failed: %v", err),
			})
			continue
		}
		result.Results = append(result.Results, ScenarioOutcome{
			Name:         scenario.Name,
			ScenarioPath: path,
			Result:       runResult,
		})

		if !runResult.Pass {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				Name:         scenario.Name,
				ScenarioPath: path,
				Error:        fmt.Sprintf("scenario assertions failed: %v", runResult.Errors),
			})
			continue
		}

		result.Passed++
	}

	return result, nil
}
