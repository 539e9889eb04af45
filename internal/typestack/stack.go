package typestack

import (
	"strings"

	"github.com/roach88/wasmstack/internal/wasm"
)

// TypeStack is the abstract operand stack of one function body.
// Elements are stored bottom to top.
type TypeStack struct {
	elems  []Element
	strict bool
}

// Option configures a TypeStack.
type Option func(*TypeStack)

// WithStrictBlockResults makes EndBlock require that the values above the
// block marker are exactly the block's declared results.
func WithStrictBlockResults() Option {
	return func(s *TypeStack) {
		s.strict = true
	}
}

// New creates an empty TypeStack.
func New(opts ...Option) *TypeStack {
	s := &TypeStack{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strict reports whether EndBlock checks block results.
func (s *TypeStack) Strict() bool {
	return s.strict
}

// Push appends a value of type v.
func (s *TypeStack) Push(v wasm.ValueType) {
	s.elems = append(s.elems, Val{Type: v})
}

// Pop removes and returns the top value type.
// Fails if the stack is empty or the top element is a block marker.
func (s *TypeStack) Pop() (wasm.ValueType, error) {
	n := len(s.elems)
	if n == 0 {
		return 0, &ViolationError{Code: ErrCodeEmptyStack}
	}
	v, ok := s.elems[n-1].(Val)
	if !ok {
		return 0, &ViolationError{Code: ErrCodeBlockMarker, Depth: n}
	}
	s.elems = s.elems[:n-1]
	return v.Type, nil
}

// Op applies one instruction's stack effect: inputs are consumed in reverse
// declaration order, then outputs are pushed in order.
//
// The inputs are checked against the stack before anything is removed, so a
// failed Op leaves the stack unchanged.
func (s *TypeStack) Op(inputs, outputs []wasm.ValueType) error {
	n := len(s.elems)
	for i := len(inputs) - 1; i >= 0; i-- {
		pos := n - len(inputs) + i
		if pos < 0 {
			return &ViolationError{Code: ErrCodeEmptyStack, Depth: n}
		}
		v, ok := s.elems[pos].(Val)
		if !ok {
			return &ViolationError{Code: ErrCodeBlockMarker, Depth: n}
		}
		if v.Type != inputs[i] {
			return &ViolationError{
				Code:     ErrCodeTypeMismatch,
				Expected: inputs[i],
				Actual:   v.Type,
				Depth:    n,
			}
		}
	}

	s.elems = s.elems[:n-len(inputs)]
	for _, out := range outputs {
		s.Push(out)
	}
	return nil
}

// BeginBlock opens a block with declared type bt.
func (s *TypeStack) BeginBlock(bt wasm.BlockType) {
	s.elems = append(s.elems, BlockBegin{Block: bt})
}

// EndBlock closes the innermost open block. Everything above its marker is
// discarded, the marker is removed, and the declared result (if any) is
// pushed. Returns the closed block's type.
//
// The discarded values are not checked unless the stack was created with
// WithStrictBlockResults. Fails with no open block; the stack is left
// unchanged on failure.
func (s *TypeStack) EndBlock() (wasm.BlockType, error) {
	marker := s.innermostBlock()
	if marker < 0 {
		return wasm.BlockTypeEmpty, &ViolationError{Code: ErrCodeUnbalancedEnd, Depth: len(s.elems)}
	}
	bt := s.elems[marker].(BlockBegin).Block

	if s.strict {
		if err := s.checkBlockResults(marker, bt); err != nil {
			return wasm.BlockTypeEmpty, err
		}
	}

	s.elems = s.elems[:marker]
	if vt, ok := bt.Result(); ok {
		s.Push(vt)
	}
	return bt, nil
}

// checkBlockResults compares the values above marker with bt's results.
func (s *TypeStack) checkBlockResults(marker int, bt wasm.BlockType) error {
	above := s.elems[marker+1:]
	found := make([]wasm.ValueType, len(above))
	for i, e := range above {
		// Markers above the innermost one cannot exist.
		found[i] = e.(Val).Type
	}
	want := bt.Results()
	if len(found) == len(want) {
		match := true
		for i := range want {
			if found[i] != want[i] {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	return &ViolationError{
		Code:  ErrCodeBlockResultMismatch,
		Block: bt,
		Found: found,
		Depth: len(s.elems),
	}
}

func (s *TypeStack) innermostBlock() int {
	for i := len(s.elems) - 1; i >= 0; i-- {
		if _, ok := s.elems[i].(BlockBegin); ok {
			return i
		}
	}
	return -1
}

// Len returns the number of elements, markers included.
func (s *TypeStack) Len() int {
	return len(s.elems)
}

// OpenBlocks returns the number of open block markers.
func (s *TypeStack) OpenBlocks() int {
	count := 0
	for _, e := range s.elems {
		if _, ok := e.(BlockBegin); ok {
			count++
		}
	}
	return count
}

// Peek returns the top element without removing it.
func (s *TypeStack) Peek() (Element, bool) {
	if len(s.elems) == 0 {
		return nil, false
	}
	return s.elems[len(s.elems)-1], true
}

// Elements returns a copy of the stack, bottom to top.
func (s *TypeStack) Elements() []Element {
	out := make([]Element, len(s.elems))
	copy(out, s.elems)
	return out
}

// Values returns the value types above the innermost open block, bottom to
// top. With no open block it returns every value.
func (s *TypeStack) Values() []wasm.ValueType {
	start := s.innermostBlock() + 1
	out := make([]wasm.ValueType, 0, len(s.elems)-start)
	for _, e := range s.elems[start:] {
		out = append(out, e.(Val).Type)
	}
	return out
}

// String renders the stack bottom to top, e.g. "[block[] i32 f64]".
func (s *TypeStack) String() string {
	parts := make([]string, len(s.elems))
	for i, e := range s.elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
