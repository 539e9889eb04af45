package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the relevant trace to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Context  []string // Hooks or steps for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Context) > 0 {
		fmt.Fprintf(&buf, "\nContext:\n")
		for i, line := range e.Context {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
		}
	}

	return buf.String()
}

func assertHookPresent(result *Result, assertion Assertion) error {
	if slices.Contains(result.Hooks, assertion.Hook) {
		return nil
	}
	return &AssertionError{
		Type:     AssertHookPresent,
		Expected: fmt.Sprintf("hook %s", assertion.Hook),
		Actual:   "not found in hooks",
		Context:  result.Hooks,
	}
}

func assertHookAbsent(result *Result, assertion Assertion) error {
	if !slices.Contains(result.Hooks, assertion.Hook) {
		return nil
	}
	return &AssertionError{
		Type:     AssertHookAbsent,
		Expected: fmt.Sprintf("no hook %s", assertion.Hook),
		Actual:   "found in hooks",
		Context:  result.Hooks,
	}
}

func assertHookCount(result *Result, assertion Assertion) error {
	if len(result.Hooks) == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertHookCount,
		Expected: fmt.Sprintf("%d hooks", assertion.Count),
		Actual:   fmt.Sprintf("%d hooks", len(result.Hooks)),
		Context:  result.Hooks,
	}
}

func assertFunctionOK(result *Result, assertion Assertion) error {
	fn, err := lookupFunction(result, assertion)
	if err != nil {
		return err
	}
	if fn.OK() {
		return nil
	}
	return &AssertionError{
		Type:     AssertFunctionOK,
		Expected: fmt.Sprintf("function %s passes", fn.Name),
		Actual:   fmt.Sprintf("failed with %s", fn.ErrorCode),
		Context:  formatSteps(fn),
	}
}

func assertFunctionError(result *Result, assertion Assertion) error {
	fn, err := lookupFunction(result, assertion)
	if err != nil {
		return err
	}
	if fn.ErrorCode == assertion.Code {
		return nil
	}
	actual := "passed"
	if !fn.OK() {
		actual = fmt.Sprintf("failed with %s", fn.ErrorCode)
	}
	return &AssertionError{
		Type:     AssertFunctionError,
		Expected: fmt.Sprintf("function %s fails with %s", fn.Name, assertion.Code),
		Actual:   actual,
		Context:  formatSteps(fn),
	}
}

// assertMaxDepth checks one function's peak depth, or the module's when no
// function is named.
func assertMaxDepth(result *Result, assertion Assertion) error {
	if assertion.Function == "" {
		depth := 0
		for _, fn := range result.Functions {
			depth = max(depth, fn.MaxDepth)
		}
		if depth == assertion.Depth {
			return nil
		}
		return &AssertionError{
			Type:     AssertMaxDepth,
			Expected: fmt.Sprintf("module max depth %d", assertion.Depth),
			Actual:   fmt.Sprintf("max depth %d", depth),
		}
	}

	fn, err := lookupFunction(result, assertion)
	if err != nil {
		return err
	}
	if fn.MaxDepth == assertion.Depth {
		return nil
	}
	return &AssertionError{
		Type:     AssertMaxDepth,
		Expected: fmt.Sprintf("function %s max depth %d", fn.Name, assertion.Depth),
		Actual:   fmt.Sprintf("max depth %d", fn.MaxDepth),
		Context:  formatSteps(fn),
	}
}

// assertStackAt checks the stack snapshot recorded after the step at pc.
func assertStackAt(result *Result, assertion Assertion) error {
	fn, err := lookupFunction(result, assertion)
	if err != nil {
		return err
	}
	for _, st := range fn.Steps {
		if st.PC != assertion.PC {
			continue
		}
		if slices.Equal(st.Stack, assertion.Stack) || (len(st.Stack) == 0 && len(assertion.Stack) == 0) {
			return nil
		}
		return &AssertionError{
			Type:     AssertStackAt,
			Expected: fmt.Sprintf("%s pc %d stack [%s]", fn.Name, assertion.PC, strings.Join(assertion.Stack, " ")),
			Actual:   fmt.Sprintf("[%s]", strings.Join(st.Stack, " ")),
			Context:  formatSteps(fn),
		}
	}
	return &AssertionError{
		Type:     AssertStackAt,
		Expected: fmt.Sprintf("%s step at pc %d", fn.Name, assertion.PC),
		Actual:   "no step recorded",
		Context:  formatSteps(fn),
	}
}

func lookupFunction(result *Result, assertion Assertion) (*FunctionTrace, error) {
	fn, ok := result.Function(assertion.Function)
	if !ok {
		return nil, &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("function %s", assertion.Function),
			Actual:   "not in module",
		}
	}
	return fn, nil
}

func formatSteps(fn *FunctionTrace) []string {
	lines := make([]string, len(fn.Steps))
	for i, st := range fn.Steps {
		lines[i] = st.String()
	}
	return lines
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertHookPresent:
			err = assertHookPresent(result, assertion)
		case AssertHookAbsent:
			err = assertHookAbsent(result, assertion)
		case AssertHookCount:
			err = assertHookCount(result, assertion)
		case AssertFunctionOK:
			err = assertFunctionOK(result, assertion)
		case AssertFunctionError:
			err = assertFunctionError(result, assertion)
		case AssertMaxDepth:
			err = assertMaxDepth(result, assertion)
		case AssertStackAt:
			err = assertStackAt(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
