package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wasmstack/internal/analysis"
	"github.com/roach88/wasmstack/internal/wasm"
)

func testResult() *Result {
	r := NewResult()
	r.Module = "m"
	r.Hooks = []string{"drop:[i32]->[]", "i32.const:[]->[i32]"}
	r.Functions = []FunctionTrace{
		{
			Name:      "good",
			Signature: "[] -> []",
			MaxDepth:  1,
			Steps: []analysis.Step{
				{PC: 0, Instr: "i32.const 1", Outputs: []wasm.ValueType{wasm.ValueTypeI32}, Depth: 1, OpenBlocks: 1, Stack: []string{"block[]", "i32"}},
				{PC: 1, Instr: "drop", Inputs: []wasm.ValueType{wasm.ValueTypeI32}, OpenBlocks: 1, Stack: []string{"block[]"}},
				{PC: 2, Instr: "end", Stack: []string{}},
			},
		},
		{
			Name:      "bad",
			Signature: "[] -> [i32]",
			MaxDepth:  3,
			ErrorCode: "STACK_VIOLATION",
		},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertHookPresent, Hook: "drop:[i32]->[]"},
		{Type: AssertHookAbsent, Hook: "drop:[f64]->[]"},
		{Type: AssertHookCount, Count: 2},
		{Type: AssertFunctionOK, Function: "good"},
		{Type: AssertFunctionError, Function: "bad", Code: "STACK_VIOLATION"},
		{Type: AssertMaxDepth, Function: "good", Depth: 1},
		{Type: AssertMaxDepth, Depth: 3},
		{Type: AssertStackAt, Function: "good", PC: 0, Stack: []string{"block[]", "i32"}},
		{Type: AssertStackAt, Function: "good", PC: 2},
	}

	errs := EvaluateAssertions(testResult(), assertions)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Fail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      []string
	}{
		{
			name:      "hook missing",
			assertion: Assertion{Type: AssertHookPresent, Hook: "drop:[f64]->[]"},
			want:      []string{"hook_present", "drop:[f64]->[]", "not found in hooks"},
		},
		{
			name:      "hook present",
			assertion: Assertion{Type: AssertHookAbsent, Hook: "drop:[i32]->[]"},
			want:      []string{"hook_absent", "found in hooks"},
		},
		{
			name:      "hook count",
			assertion: Assertion{Type: AssertHookCount, Count: 5},
			want:      []string{"Expected: 5 hooks", "Actual: 2 hooks"},
		},
		{
			name:      "function failed",
			assertion: Assertion{Type: AssertFunctionOK, Function: "bad"},
			want:      []string{"function bad passes", "failed with STACK_VIOLATION"},
		},
		{
			name:      "function passed",
			assertion: Assertion{Type: AssertFunctionError, Function: "good", Code: "UNKNOWN_LOCAL"},
			want:      []string{"fails with UNKNOWN_LOCAL", "Actual: passed"},
		},
		{
			name:      "wrong code",
			assertion: Assertion{Type: AssertFunctionError, Function: "bad", Code: "UNKNOWN_LOCAL"},
			want:      []string{"failed with STACK_VIOLATION"},
		},
		{
			name:      "unknown function",
			assertion: Assertion{Type: AssertFunctionOK, Function: "nope"},
			want:      []string{"function nope", "not in module"},
		},
		{
			name:      "function depth",
			assertion: Assertion{Type: AssertMaxDepth, Function: "good", Depth: 4},
			want:      []string{"good max depth 4", "max depth 1"},
		},
		{
			name:      "module depth",
			assertion: Assertion{Type: AssertMaxDepth, Depth: 1},
			want:      []string{"module max depth 1", "max depth 3"},
		},
		{
			name:      "stack differs",
			assertion: Assertion{Type: AssertStackAt, Function: "good", PC: 1, Stack: []string{"block[]", "i32"}},
			want:      []string{"stack [block[] i32]", "Actual: [block[]]", "1 drop [i32] -> [] => [block[]]"},
		},
		{
			name:      "no step",
			assertion: Assertion{Type: AssertStackAt, Function: "good", PC: 9},
			want:      []string{"step at pc 9", "no step recorded"},
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "trace_order"},
			want:      []string{`unknown assertion type "trace_order"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(testResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			for _, want := range tt.want {
				assert.Contains(t, errs[0], want)
			}
		})
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertHookCount,
		Expected: "1 hooks",
		Actual:   "2 hooks",
		Context:  []string{"a:[]->[]", "b:[]->[]"},
	}

	want := "Assertion failed: hook_count\n" +
		"  Expected: 1 hooks\n" +
		"  Actual: 2 hooks\n" +
		"\nContext:\n" +
		"  [1] a:[]->[]\n" +
		"  [2] b:[]->[]\n"
	assert.Equal(t, want, err.Error())
}
