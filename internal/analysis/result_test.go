package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wasmstack/internal/wasm"
)

func TestStepString(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{
			name: "producer",
			step: Step{
				PC:      2,
				Instr:   "local.get 0",
				Outputs: []wasm.ValueType{wasm.ValueTypeI32},
				Stack:   []string{"block[]", "i32"},
			},
			want: "2 local.get 0 [] -> [i32] => [block[] i32]",
		},
		{
			name: "multiple inputs",
			step: Step{
				PC:      3,
				Instr:   "select",
				Inputs:  []wasm.ValueType{wasm.ValueTypeF64, wasm.ValueTypeF64, wasm.ValueTypeI32},
				Outputs: []wasm.ValueType{wasm.ValueTypeF64},
				Stack:   []string{"block[f64]", "f64"},
			},
			want: "3 select [f64,f64,i32] -> [f64] => [block[f64] f64]",
		},
		{
			name: "dead",
			step: Step{PC: 4, Instr: "nop", Stack: []string{"block[]"}, Dead: true},
			want: "4 nop [] -> [] => [block[]] (dead)",
		},
		{
			name: "empty stack",
			step: Step{PC: 0, Instr: "end"},
			want: "0 end [] -> [] => []",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.step.String())
		})
	}
}

func TestModuleResultHelpers(t *testing.T) {
	bad := &PassError{Code: ErrCodeUnknownLocal, Function: "b", PC: 1, Instr: "local.get 9"}
	res := &ModuleResult{
		Functions: []*FunctionResult{
			{Index: 0, Name: "a", MaxDepth: 2},
			{Index: 1, Name: "b", MaxDepth: 5, Err: bad},
			{Index: 2, Name: "c", MaxDepth: 1},
		},
	}

	assert.Equal(t, 5, res.MaxDepth())

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Name)

	err := res.Err()
	require.Error(t, err)
	var pe *PassError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrCodeUnknownLocal, pe.Code)

	fr, ok := res.Function("c")
	require.True(t, ok)
	assert.Equal(t, 2, fr.Index)
	_, ok = res.Function("missing")
	assert.False(t, ok)
}

func TestModuleResultErrNilWhenAllPass(t *testing.T) {
	res := &ModuleResult{Functions: []*FunctionResult{{Name: "a"}}}
	assert.NoError(t, res.Err())
	assert.Empty(t, res.Failed())
}
