package typestack

import "github.com/roach88/wasmstack/internal/wasm"

// Element is a sealed interface for stack slots.
// Only Val and BlockBegin implement it.
type Element interface {
	element() // Sealed
	String() string
}

// Val is one operand slot holding a value of Type.
type Val struct {
	Type wasm.ValueType
}

func (Val) element() {}

// String returns the value type name.
func (v Val) String() string {
	return v.Type.String()
}

// BlockBegin marks the start of an open block with declared type Block.
type BlockBegin struct {
	Block wasm.BlockType
}

func (BlockBegin) element() {}

// String renders the marker as "block[i32]".
func (b BlockBegin) String() string {
	return "block" + b.Block.String()
}
