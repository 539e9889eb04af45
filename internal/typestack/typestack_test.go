package typestack

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wasmstack/internal/wasm"
)

var (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
	f32 = wasm.ValueTypeF32
	f64 = wasm.ValueTypeF64
)

func requireViolation(t *testing.T, err error, code ViolationCode) *ViolationError {
	t.Helper()
	require.Error(t, err)
	var ve *ViolationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, code, ve.Code)
	return ve
}

func TestPushPopRoundTrip(t *testing.T) {
	for _, vt := range wasm.ValueTypes {
		t.Run(vt.String(), func(t *testing.T) {
			s := New()
			s.Push(vt)
			got, err := s.Pop()
			require.NoError(t, err)
			assert.Equal(t, vt, got)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestPopEmpty(t *testing.T) {
	s := New()
	_, err := s.Pop()
	requireViolation(t, err, ErrCodeEmptyStack)
	assert.True(t, IsViolation(err))
}

func TestPopBlockMarker(t *testing.T) {
	s := New()
	s.BeginBlock(wasm.BlockTypeEmpty)
	_, err := s.Pop()
	requireViolation(t, err, ErrCodeBlockMarker)
	assert.Equal(t, 1, s.Len(), "failed pop must not remove the marker")
}

func TestOpBinary(t *testing.T) {
	s := New()
	s.Push(f64)
	s.Push(i32)
	s.Push(i32)

	require.NoError(t, s.Op([]wasm.ValueType{i32, i32}, []wasm.ValueType{i32}))

	assert.Equal(t, []Element{Val{f64}, Val{i32}}, s.Elements())
}

func TestOpInputOrder(t *testing.T) {
	// The last declared input matches the top of stack.
	s := New()
	s.Push(i32)
	s.Push(f64)

	require.NoError(t, s.Op([]wasm.ValueType{i32, f64}, []wasm.ValueType{i64}))
	assert.Equal(t, []Element{Val{i64}}, s.Elements())

	s = New()
	s.Push(i32)
	s.Push(f64)
	err := s.Op([]wasm.ValueType{f64, i32}, nil)
	ve := requireViolation(t, err, ErrCodeTypeMismatch)
	assert.Equal(t, i32, ve.Expected)
	assert.Equal(t, f64, ve.Actual)
}

func TestOpOutputOrder(t *testing.T) {
	s := New()
	require.NoError(t, s.Op(nil, []wasm.ValueType{i32, f32, i64}))
	assert.Equal(t, []Element{Val{i32}, Val{f32}, Val{i64}}, s.Elements())
}

func TestOpMismatchIsAtomic(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*TypeStack)
		inputs []wasm.ValueType
		code   ViolationCode
	}{
		{
			name: "second input mismatches",
			setup: func(s *TypeStack) {
				s.Push(f32)
				s.Push(i32)
			},
			inputs: []wasm.ValueType{i32, i32},
			code:   ErrCodeTypeMismatch,
		},
		{
			name: "top mismatches",
			setup: func(s *TypeStack) {
				s.Push(i32)
				s.Push(i64)
			},
			inputs: []wasm.ValueType{i32, i32},
			code:   ErrCodeTypeMismatch,
		},
		{
			name: "too few values",
			setup: func(s *TypeStack) {
				s.Push(i32)
			},
			inputs: []wasm.ValueType{i32, i32},
			code:   ErrCodeEmptyStack,
		},
		{
			name: "marker below inputs",
			setup: func(s *TypeStack) {
				s.Push(i32)
				s.BeginBlock(wasm.BlockTypeEmpty)
				s.Push(i32)
			},
			inputs: []wasm.ValueType{i32, i32},
			code:   ErrCodeBlockMarker,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			tt.setup(s)
			before := s.Elements()

			err := s.Op(tt.inputs, []wasm.ValueType{f64})
			requireViolation(t, err, tt.code)
			assert.Equal(t, before, s.Elements(), "failed Op must leave the stack unchanged")
		})
	}
}

func TestBeginEndEmptyBlock(t *testing.T) {
	s := New()
	s.Push(i64)
	before := s.Elements()

	s.BeginBlock(wasm.BlockTypeEmpty)
	bt, err := s.EndBlock()
	require.NoError(t, err)

	assert.Equal(t, wasm.BlockTypeEmpty, bt)
	assert.Equal(t, before, s.Elements())
}

func TestEndBlockDiscardsAndPushesResult(t *testing.T) {
	s := New()
	s.BeginBlock(wasm.BlockTypeOf(i32))
	s.Push(f64)
	s.Push(i32)

	bt, err := s.EndBlock()
	require.NoError(t, err)

	assert.Equal(t, wasm.BlockTypeOf(i32), bt)
	assert.Equal(t, []Element{Val{i32}}, s.Elements())
}

func TestEndBlockDoesNotCheckDiscardedValues(t *testing.T) {
	// Default mode trusts upstream validation.
	s := New()
	s.BeginBlock(wasm.BlockTypeOf(i64))
	s.Push(f32)

	bt, err := s.EndBlock()
	require.NoError(t, err)
	assert.Equal(t, wasm.BlockTypeOf(i64), bt)
	assert.Equal(t, []Element{Val{i64}}, s.Elements())
}

func TestNestedBlocks(t *testing.T) {
	s := New()
	s.Push(f32)
	s.BeginBlock(wasm.BlockTypeOf(i64))
	s.Push(i32)
	s.BeginBlock(wasm.BlockTypeOf(f64))
	s.Push(i32)
	assert.Equal(t, 2, s.OpenBlocks())

	inner, err := s.EndBlock()
	require.NoError(t, err)
	assert.Equal(t, wasm.BlockTypeOf(f64), inner)
	assert.Equal(t, []Element{
		Val{f32},
		BlockBegin{wasm.BlockTypeOf(i64)},
		Val{i32},
		Val{f64},
	}, s.Elements())
	assert.Equal(t, 1, s.OpenBlocks())

	outer, err := s.EndBlock()
	require.NoError(t, err)
	assert.Equal(t, wasm.BlockTypeOf(i64), outer)
	assert.Equal(t, []Element{Val{f32}, Val{i64}}, s.Elements())
	assert.Equal(t, 0, s.OpenBlocks())
}

func TestEndBlockUnbalanced(t *testing.T) {
	s := New()
	s.Push(i32)

	_, err := s.EndBlock()
	requireViolation(t, err, ErrCodeUnbalancedEnd)
	assert.Equal(t, []Element{Val{i32}}, s.Elements(), "failed EndBlock must leave the stack unchanged")

	_, err = New().EndBlock()
	requireViolation(t, err, ErrCodeUnbalancedEnd)
}

func TestStrictBlockResults(t *testing.T) {
	tests := []struct {
		name  string
		block wasm.BlockType
		push  []wasm.ValueType
		code  ViolationCode
	}{
		{"exact result", wasm.BlockTypeOf(i32), []wasm.ValueType{i32}, ""},
		{"exact empty", wasm.BlockTypeEmpty, nil, ""},
		{"wrong type", wasm.BlockTypeOf(i32), []wasm.ValueType{f64}, ErrCodeBlockResultMismatch},
		{"extra value", wasm.BlockTypeOf(i32), []wasm.ValueType{f64, i32}, ErrCodeBlockResultMismatch},
		{"missing value", wasm.BlockTypeOf(i32), nil, ErrCodeBlockResultMismatch},
		{"leftover in empty block", wasm.BlockTypeEmpty, []wasm.ValueType{i64}, ErrCodeBlockResultMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(WithStrictBlockResults())
			require.True(t, s.Strict())
			s.BeginBlock(tt.block)
			for _, vt := range tt.push {
				s.Push(vt)
			}
			before := s.Elements()

			bt, err := s.EndBlock()
			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.block, bt)
				assert.Equal(t, 0, s.OpenBlocks())
				return
			}
			ve := requireViolation(t, err, tt.code)
			assert.Equal(t, tt.block, ve.Block)
			assert.Equal(t, before, s.Elements(), "failed EndBlock must leave the stack unchanged")
		})
	}
}

func TestReadOnlyHelpers(t *testing.T) {
	s := New()
	_, ok := s.Peek()
	assert.False(t, ok)
	assert.Equal(t, "[]", s.String())

	s.Push(i32)
	s.BeginBlock(wasm.BlockTypeOf(f64))
	s.Push(i64)

	top, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, Val{i64}, top)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "[i32 block[f64] i64]", s.String())
	assert.Equal(t, []wasm.ValueType{i64}, s.Values())

	elems := s.Elements()
	elems[0] = Val{f32}
	assert.Equal(t, "[i32 block[f64] i64]", s.String(), "Elements returns a copy")
}

func TestViolationErrorMessages(t *testing.T) {
	tests := []struct {
		err  *ViolationError
		want string
	}{
		{&ViolationError{Code: ErrCodeEmptyStack}, "EMPTY_STACK: pop on empty stack"},
		{&ViolationError{Code: ErrCodeTypeMismatch, Expected: i32, Actual: f64, Depth: 2}, "TYPE_MISMATCH: expected i32, found f64 (depth=2)"},
		{&ViolationError{Code: ErrCodeBlockResultMismatch, Block: wasm.BlockTypeOf(i32), Found: []wasm.ValueType{f32, i64}}, "BLOCK_RESULT_MISMATCH: block [i32] ended with [f32, i64]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestViolationWrapped(t *testing.T) {
	_, err := New().Pop()
	wrapped := fmt.Errorf("pc 3: %w", err)

	assert.True(t, IsViolation(wrapped))
	assert.Equal(t, ErrCodeEmptyStack, ViolationCodeOf(wrapped))
	assert.False(t, IsViolation(fmt.Errorf("plain")))
	assert.Equal(t, ViolationCode(""), ViolationCodeOf(nil))
}
