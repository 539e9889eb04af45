package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: one module analyzed once, with
// assertions over the recorded steps and hooks.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Module is the path to a YAML or CUE module file.
	// Relative paths are resolved against the scenario file's directory.
	Module string `yaml:"module"`

	// Strict enables block result checking on every end.
	Strict bool `yaml:"strict,omitempty"`

	// RunID is an optional fixed run ID.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate the analysis outcome.
	// Supported types: hook_present, hook_absent, hook_count, function_ok,
	// function_error, max_depth, stack_at
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one property of the analysis.
type Assertion struct {
	// Type specifies the assertion type:
	// - "hook_present": Hook key appears in the run's hooks
	// - "hook_absent": Hook key does not appear
	// - "hook_count": Exactly Count distinct hooks
	// - "function_ok": Function passed
	// - "function_error": Function failed with Code
	// - "max_depth": Function (or the module, if empty) peaked at Depth
	// - "stack_at": Function's stack after PC equals Stack
	Type string `yaml:"type"`

	// Hook is a hook key such as "drop:[i64]->[]".
	Hook string `yaml:"hook,omitempty"`

	// Function is the function name.
	Function string `yaml:"function,omitempty"`

	// Code is the expected error code (function_error).
	Code string `yaml:"code,omitempty"`

	// Count is the expected number of hooks (hook_count).
	Count int `yaml:"count,omitempty"`

	// Depth is the expected maximum operand depth (max_depth).
	Depth int `yaml:"depth,omitempty"`

	// PC is the body position (stack_at).
	PC int `yaml:"pc,omitempty"`

	// Stack is the expected stack bottom to top (stack_at), e.g.
	// ["block[i32]", "i32"].
	Stack []string `yaml:"stack,omitempty"`
}

// Assertion type constants.
const (
	AssertHookPresent   = "hook_present"
	AssertHookAbsent    = "hook_absent"
	AssertHookCount     = "hook_count"
	AssertFunctionOK    = "function_ok"
	AssertFunctionError = "function_error"
	AssertMaxDepth      = "max_depth"
	AssertStackAt       = "stack_at"
)

// LoadScenario reads and parses a scenario YAML file.
// The module path is resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the module path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Module != "" && !filepath.IsAbs(scenario.Module) && basePath != "" {
		scenario.Module = filepath.Join(basePath, scenario.Module)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Module == "" {
		return fmt.Errorf("module is required")
	}

	if _, err := os.Stat(s.Module); os.IsNotExist(err) {
		return fmt.Errorf("module file not found: %s", s.Module)
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
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
	case AssertHookPresent, AssertHookAbsent:
		if a.Hook == "" {
			return fmt.Errorf("assertions[%d]: hook is required for %s", index, a.Type)
		}
	case AssertHookCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for hook_count", index)
		}
	case AssertFunctionOK:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: function is required for function_ok", index)
		}
	case AssertFunctionError:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: function is required for function_error", index)
		}
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for function_error", index)
		}
	case AssertMaxDepth:
		if a.Depth < 0 {
			return fmt.Errorf("assertions[%d]: depth must be non-negative for max_depth", index)
		}
	case AssertStackAt:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: function is required for stack_at", index)
		}
		if a.PC < 0 {
			return fmt.Errorf("assertions[%d]: pc must be non-negative for stack_at", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
