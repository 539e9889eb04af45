package wasm

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType is one primitive value category that can occupy an operand slot.
// The numeric values are the binary encodings of the MVP number types.
type ValueType byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypes lists all supported value types in declaration order.
var ValueTypes = []ValueType{ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64}

// String returns the text format name ("i32", "i64", ...).
func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return fmt.Sprintf("ValueType(0x%02x)", byte(v))
	}
}

// Valid reports whether v is one of the supported value types.
func (v ValueType) Valid() bool {
	switch v {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return true
	}
	return false
}

// ParseValueType parses a text format type name.
func ParseValueType(s string) (ValueType, error) {
	switch s {
	case "i32":
		return ValueTypeI32, nil
	case "i64":
		return ValueTypeI64, nil
	case "f32":
		return ValueTypeF32, nil
	case "f64":
		return ValueTypeF64, nil
	default:
		return 0, fmt.Errorf("unknown value type %q: must be i32, i64, f32, or f64", s)
	}
}

// ParseValueTypes parses a list of type names.
func ParseValueTypes(names []string) ([]ValueType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]ValueType, len(names))
	for i, n := range names {
		vt, err := ParseValueType(n)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = vt
	}
	return out, nil
}

// FormatValueTypes renders types as "i32, f64".
func FormatValueTypes(vts []ValueType) string {
	parts := make([]string, len(vts))
	for i, vt := range vts {
		parts[i] = vt.String()
	}
	return strings.Join(parts, ", ")
}

// ValueTypeNames returns the text names of vts. Returns an empty (non-nil)
// slice for no types so JSON output renders [] rather than null.
func ValueTypeNames(vts []ValueType) []string {
	names := make([]string, len(vts))
	for i, vt := range vts {
		names[i] = vt.String()
	}
	return names
}

// BlockType is the declared output shape of a block, loop, or if: either no
// result or exactly one result type. The zero value has no result.
type BlockType struct {
	result ValueType
}

// BlockTypeEmpty is the block type with no result.
var BlockTypeEmpty = BlockType{}

// BlockTypeOf returns the block type producing a single value of type v.
func BlockTypeOf(v ValueType) BlockType {
	return BlockType{result: v}
}

// Result returns the declared result type, if any.
func (b BlockType) Result() (ValueType, bool) {
	return b.result, b.result != 0
}

// Results returns the declared results as a slice (empty or one element).
func (b BlockType) Results() []ValueType {
	if b.result == 0 {
		return nil
	}
	return []ValueType{b.result}
}

// String renders the block type as "[]" or "[i32]".
func (b BlockType) String() string {
	if b.result == 0 {
		return "[]"
	}
	return "[" + b.result.String() + "]"
}

// FunctionType is a function signature.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// String renders the signature as "[i32, i32] -> [i32]".
func (f FunctionType) String() string {
	return "[" + FormatValueTypes(f.Params) + "] -> [" + FormatValueTypes(f.Results) + "]"
}

// BlockType returns the block type of a function body. Callers must ensure
// the function has at most one result.
func (f FunctionType) BlockType() BlockType {
	if len(f.Results) == 0 {
		return BlockTypeEmpty
	}
	return BlockTypeOf(f.Results[0])
}

// Global is a module-level global variable.
type Global struct {
	Type    ValueType
	Mutable bool
}

// Function is one decoded function body with its signature.
// Body excludes the function's final end; the body itself is the outermost block.
type Function struct {
	Name   string
	Type   FunctionType
	Locals []ValueType
	Body   []Instr
}

// LocalType returns the type of local idx, counting parameters first.
func (f *Function) LocalType(idx uint32) (ValueType, bool) {
	n := uint32(len(f.Type.Params))
	if idx < n {
		return f.Type.Params[idx], true
	}
	idx -= n
	if idx < uint32(len(f.Locals)) {
		return f.Locals[idx], true
	}
	return 0, false
}

// LocalCount returns params plus declared locals.
func (f *Function) LocalCount() int {
	return len(f.Type.Params) + len(f.Locals)
}

// Module is the unit of analysis: globals plus function bodies.
type Module struct {
	Name      string
	Globals   []Global
	Functions []Function
}

// Instr is one decoded instruction with its immediates.
// Only the immediates relevant to Op's ImmKind are meaningful.
type Instr struct {
	Op      Opcode
	Index   uint32    // local, global, function, or label index
	Block   BlockType // block, loop, if
	Labels  []uint32  // br_table targets; the last one is the default
	Literal string    // const operand as written
	Offset  uint32    // memarg
	Align   uint32    // memarg, 0 means natural alignment
	Line    int       // 1-based body entry, 0 if unknown
}

// String renders the instruction in text format.
func (in Instr) String() string {
	info := in.Op.Info()
	var b strings.Builder
	b.WriteString(info.Name)
	switch info.Imm {
	case ImmIndex:
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(uint64(in.Index), 10))
	case ImmBlock:
		if vt, ok := in.Block.Result(); ok {
			b.WriteString(" (result ")
			b.WriteString(vt.String())
			b.WriteByte(')')
		}
	case ImmLabels:
		for _, l := range in.Labels {
			b.WriteByte(' ')
			b.WriteString(strconv.FormatUint(uint64(l), 10))
		}
	case ImmLiteral:
		b.WriteByte(' ')
		b.WriteString(in.Literal)
	case ImmMemArg:
		if in.Offset != 0 {
			b.WriteString(" offset=")
			b.WriteString(strconv.FormatUint(uint64(in.Offset), 10))
		}
		if in.Align != 0 {
			b.WriteString(" align=")
			b.WriteString(strconv.FormatUint(uint64(in.Align), 10))
		}
	}
	return b.String()
}
