package wasm

import "fmt"

// Opcode is a single-byte MVP instruction opcode.
type Opcode byte

const (
	// ========================================================================
	// Control (0x00-0x11)
	// ========================================================================

	OpUnreachable Opcode = 0x00
	OpNop         Opcode = 0x01
	OpBlock       Opcode = 0x02
	OpLoop        Opcode = 0x03
	OpIf          Opcode = 0x04
	OpElse        Opcode = 0x05
	OpEnd         Opcode = 0x0b
	OpBr          Opcode = 0x0c
	OpBrIf        Opcode = 0x0d
	OpBrTable     Opcode = 0x0e
	OpReturn      Opcode = 0x0f
	OpCall        Opcode = 0x10

	// ========================================================================
	// Parametric (0x1A-0x1B)
	// ========================================================================

	OpDrop   Opcode = 0x1a
	OpSelect Opcode = 0x1b

	// ========================================================================
	// Variables (0x20-0x24)
	// ========================================================================

	OpLocalGet  Opcode = 0x20
	OpLocalSet  Opcode = 0x21
	OpLocalTee  Opcode = 0x22
	OpGlobalGet Opcode = 0x23
	OpGlobalSet Opcode = 0x24

	// ========================================================================
	// Memory (0x28-0x40)
	// ========================================================================

	OpI32Load    Opcode = 0x28
	OpI64Load    Opcode = 0x29
	OpF32Load    Opcode = 0x2a
	OpF64Load    Opcode = 0x2b
	OpI32Load8S  Opcode = 0x2c
	OpI32Load8U  Opcode = 0x2d
	OpI32Load16S Opcode = 0x2e
	OpI32Load16U Opcode = 0x2f
	OpI64Load8S  Opcode = 0x30
	OpI64Load8U  Opcode = 0x31
	OpI64Load16S Opcode = 0x32
	OpI64Load16U Opcode = 0x33
	OpI64Load32S Opcode = 0x34
	OpI64Load32U Opcode = 0x35
	OpI32Store   Opcode = 0x36
	OpI64Store   Opcode = 0x37
	OpF32Store   Opcode = 0x38
	OpF64Store   Opcode = 0x39
	OpI32Store8  Opcode = 0x3a
	OpI32Store16 Opcode = 0x3b
	OpI64Store8  Opcode = 0x3c
	OpI64Store16 Opcode = 0x3d
	OpI64Store32 Opcode = 0x3e
	OpMemorySize Opcode = 0x3f
	OpMemoryGrow Opcode = 0x40

	// ========================================================================
	// Constants (0x41-0x44)
	// ========================================================================

	OpI32Const Opcode = 0x41
	OpI64Const Opcode = 0x42
	OpF32Const Opcode = 0x43
	OpF64Const Opcode = 0x44

	// ========================================================================
	// Numeric (0x45-0xBF) - selected names used by tests and the shell;
	// the full range is registered in opcodeInfoTable.
	// ========================================================================

	OpI32Eqz Opcode = 0x45
	OpI32Eq  Opcode = 0x46
	OpI32LtS Opcode = 0x48
	OpI64Eqz Opcode = 0x50
	OpF64Lt  Opcode = 0x63
	OpI32Add Opcode = 0x6a
	OpI32Sub Opcode = 0x6b
	OpI32Mul Opcode = 0x6c
	OpI64Add Opcode = 0x7c
	OpI64Mul Opcode = 0x7e
	OpF32Add Opcode = 0x92
	OpF64Add Opcode = 0xa0
	OpF64Mul Opcode = 0xa2

	OpI32WrapI64        Opcode = 0xa7
	OpI64ExtendI32S     Opcode = 0xac
	OpF64ConvertI32S    Opcode = 0xb7
	OpF64PromoteF32     Opcode = 0xbb
	OpF64ReinterpretI64 Opcode = 0xbf
)

// Kind tells the analysis pass how an opcode affects the type stack.
// KindPlain opcodes have a fixed effect given by OpcodeInfo.In/Out; every
// other kind needs context (locals, globals, callee types, block nesting).
type Kind uint8

const (
	KindPlain Kind = iota
	KindUnreachable
	KindNop
	KindBlock
	KindLoop
	KindIf
	KindElse
	KindEnd
	KindBr
	KindBrIf
	KindBrTable
	KindReturn
	KindCall
	KindDrop
	KindSelect
	KindLocalGet
	KindLocalSet
	KindLocalTee
	KindGlobalGet
	KindGlobalSet
)

// IsControl reports whether k opens, splits, closes, or leaves a block.
func (k Kind) IsControl() bool {
	switch k {
	case KindBlock, KindLoop, KindIf, KindElse, KindEnd,
		KindBr, KindBrIf, KindBrTable, KindReturn, KindUnreachable:
		return true
	}
	return false
}

// EndsReachability reports whether code after an instruction of kind k is
// dead until the enclosing block's else or end.
func (k Kind) EndsReachability() bool {
	switch k {
	case KindBr, KindBrTable, KindReturn, KindUnreachable:
		return true
	}
	return false
}

// ImmKind describes the immediates an opcode carries in text format.
type ImmKind uint8

const (
	ImmNone    ImmKind = iota
	ImmIndex           // one u32 index
	ImmBlock           // block type
	ImmLabels          // br_table label list
	ImmLiteral         // number literal
	ImmMemArg          // offset= and align=
)

// OpcodeInfo provides metadata about each opcode.
type OpcodeInfo struct {
	Name string      // Text format mnemonic
	Kind Kind        // Stack effect category
	Imm  ImmKind     // Immediate operands
	In   []ValueType // Inputs for KindPlain (and fixed parts of other kinds)
	Out  []ValueType // Outputs for KindPlain
}

var (
	i32 = ValueTypeI32
	i64 = ValueTypeI64
	f32 = ValueTypeF32
	f64 = ValueTypeF64
)

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Control
	OpUnreachable: {"unreachable", KindUnreachable, ImmNone, nil, nil},
	OpNop:         {"nop", KindNop, ImmNone, nil, nil},
	OpBlock:       {"block", KindBlock, ImmBlock, nil, nil},
	OpLoop:        {"loop", KindLoop, ImmBlock, nil, nil},
	OpIf:          {"if", KindIf, ImmBlock, []ValueType{i32}, nil},
	OpElse:        {"else", KindElse, ImmNone, nil, nil},
	OpEnd:         {"end", KindEnd, ImmNone, nil, nil},
	OpBr:          {"br", KindBr, ImmIndex, nil, nil},
	OpBrIf:        {"br_if", KindBrIf, ImmIndex, []ValueType{i32}, nil},
	OpBrTable:     {"br_table", KindBrTable, ImmLabels, []ValueType{i32}, nil},
	OpReturn:      {"return", KindReturn, ImmNone, nil, nil},
	OpCall:        {"call", KindCall, ImmIndex, nil, nil},

	// Parametric
	OpDrop:   {"drop", KindDrop, ImmNone, nil, nil},
	OpSelect: {"select", KindSelect, ImmNone, []ValueType{i32}, nil},

	// Variables
	OpLocalGet:  {"local.get", KindLocalGet, ImmIndex, nil, nil},
	OpLocalSet:  {"local.set", KindLocalSet, ImmIndex, nil, nil},
	OpLocalTee:  {"local.tee", KindLocalTee, ImmIndex, nil, nil},
	OpGlobalGet: {"global.get", KindGlobalGet, ImmIndex, nil, nil},
	OpGlobalSet: {"global.set", KindGlobalSet, ImmIndex, nil, nil},

	// Memory
	OpMemorySize: {"memory.size", KindPlain, ImmNone, nil, []ValueType{i32}},
	OpMemoryGrow: {"memory.grow", KindPlain, ImmNone, []ValueType{i32}, []ValueType{i32}},

	// Constants
	OpI32Const: {"i32.const", KindPlain, ImmLiteral, nil, []ValueType{i32}},
	OpI64Const: {"i64.const", KindPlain, ImmLiteral, nil, []ValueType{i64}},
	OpF32Const: {"f32.const", KindPlain, ImmLiteral, nil, []ValueType{f32}},
	OpF64Const: {"f64.const", KindPlain, ImmLiteral, nil, []ValueType{f64}},
}

// mnemonicTable maps text mnemonics back to opcodes.
var mnemonicTable map[string]Opcode

func init() {
	// Loads: address -> value
	loads := []struct {
		op  Opcode
		vt  ValueType
		suf string
	}{
		{OpI32Load, i32, "i32.load"}, {OpI64Load, i64, "i64.load"},
		{OpF32Load, f32, "f32.load"}, {OpF64Load, f64, "f64.load"},
		{OpI32Load8S, i32, "i32.load8_s"}, {OpI32Load8U, i32, "i32.load8_u"},
		{OpI32Load16S, i32, "i32.load16_s"}, {OpI32Load16U, i32, "i32.load16_u"},
		{OpI64Load8S, i64, "i64.load8_s"}, {OpI64Load8U, i64, "i64.load8_u"},
		{OpI64Load16S, i64, "i64.load16_s"}, {OpI64Load16U, i64, "i64.load16_u"},
		{OpI64Load32S, i64, "i64.load32_s"}, {OpI64Load32U, i64, "i64.load32_u"},
	}
	for _, l := range loads {
		register(l.op, l.suf, ImmMemArg, []ValueType{i32}, []ValueType{l.vt})
	}

	// Stores: address, value -> nothing
	stores := []struct {
		op  Opcode
		vt  ValueType
		suf string
	}{
		{OpI32Store, i32, "i32.store"}, {OpI64Store, i64, "i64.store"},
		{OpF32Store, f32, "f32.store"}, {OpF64Store, f64, "f64.store"},
		{OpI32Store8, i32, "i32.store8"}, {OpI32Store16, i32, "i32.store16"},
		{OpI64Store8, i64, "i64.store8"}, {OpI64Store16, i64, "i64.store16"},
		{OpI64Store32, i64, "i64.store32"},
	}
	for _, s := range stores {
		register(s.op, s.suf, ImmMemArg, []ValueType{i32, s.vt}, nil)
	}

	// Tests and comparisons
	register(0x45, "i32.eqz", ImmNone, []ValueType{i32}, []ValueType{i32})
	registerRun(0x46, i32, []string{"eq", "ne", "lt_s", "lt_u", "gt_s", "gt_u", "le_s", "le_u", "ge_s", "ge_u"}, 2, i32)
	register(0x50, "i64.eqz", ImmNone, []ValueType{i64}, []ValueType{i32})
	registerRun(0x51, i64, []string{"eq", "ne", "lt_s", "lt_u", "gt_s", "gt_u", "le_s", "le_u", "ge_s", "ge_u"}, 2, i32)
	registerRun(0x5b, f32, []string{"eq", "ne", "lt", "gt", "le", "ge"}, 2, i32)
	registerRun(0x61, f64, []string{"eq", "ne", "lt", "gt", "le", "ge"}, 2, i32)

	// Integer arithmetic
	intUnary := []string{"clz", "ctz", "popcnt"}
	intBinary := []string{"add", "sub", "mul", "div_s", "div_u", "rem_s", "rem_u",
		"and", "or", "xor", "shl", "shr_s", "shr_u", "rotl", "rotr"}
	registerRun(0x67, i32, intUnary, 1, i32)
	registerRun(0x6a, i32, intBinary, 2, i32)
	registerRun(0x79, i64, intUnary, 1, i64)
	registerRun(0x7c, i64, intBinary, 2, i64)

	// Float arithmetic
	floatUnary := []string{"abs", "neg", "ceil", "floor", "trunc", "nearest", "sqrt"}
	floatBinary := []string{"add", "sub", "mul", "div", "min", "max", "copysign"}
	registerRun(0x8b, f32, floatUnary, 1, f32)
	registerRun(0x92, f32, floatBinary, 2, f32)
	registerRun(0x99, f64, floatUnary, 1, f64)
	registerRun(0xa0, f64, floatBinary, 2, f64)

	// Conversions
	conversions := []struct {
		op   Opcode
		name string
		in   ValueType
		out  ValueType
	}{
		{0xa7, "i32.wrap_i64", i64, i32},
		{0xa8, "i32.trunc_f32_s", f32, i32},
		{0xa9, "i32.trunc_f32_u", f32, i32},
		{0xaa, "i32.trunc_f64_s", f64, i32},
		{0xab, "i32.trunc_f64_u", f64, i32},
		{0xac, "i64.extend_i32_s", i32, i64},
		{0xad, "i64.extend_i32_u", i32, i64},
		{0xae, "i64.trunc_f32_s", f32, i64},
		{0xaf, "i64.trunc_f32_u", f32, i64},
		{0xb0, "i64.trunc_f64_s", f64, i64},
		{0xb1, "i64.trunc_f64_u", f64, i64},
		{0xb2, "f32.convert_i32_s", i32, f32},
		{0xb3, "f32.convert_i32_u", i32, f32},
		{0xb4, "f32.convert_i64_s", i64, f32},
		{0xb5, "f32.convert_i64_u", i64, f32},
		{0xb6, "f32.demote_f64", f64, f32},
		{0xb7, "f64.convert_i32_s", i32, f64},
		{0xb8, "f64.convert_i32_u", i32, f64},
		{0xb9, "f64.convert_i64_s", i64, f64},
		{0xba, "f64.convert_i64_u", i64, f64},
		{0xbb, "f64.promote_f32", f32, f64},
		{0xbc, "i32.reinterpret_f32", f32, i32},
		{0xbd, "i64.reinterpret_f64", f64, i64},
		{0xbe, "f32.reinterpret_i32", i32, f32},
		{0xbf, "f64.reinterpret_i64", i64, f64},
	}
	for _, c := range conversions {
		register(c.op, c.name, ImmNone, []ValueType{c.in}, []ValueType{c.out})
	}

	mnemonicTable = make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		mnemonicTable[info.Name] = op
	}
}

// register adds a KindPlain opcode to the table.
func register(op Opcode, name string, imm ImmKind, in, out []ValueType) {
	if _, dup := opcodeInfoTable[op]; dup {
		panic(fmt.Sprintf("wasm: opcode 0x%02x registered twice", byte(op)))
	}
	opcodeInfoTable[op] = OpcodeInfo{Name: name, Kind: KindPlain, Imm: imm, In: in, Out: out}
}

// registerRun registers consecutive opcodes starting at first, named
// "<operand>.<name>", each taking arity operands of type operand and
// producing one value of type result.
func registerRun(first Opcode, operand ValueType, names []string, arity int, result ValueType) {
	in := make([]ValueType, arity)
	for i := range in {
		in[i] = operand
	}
	for i, name := range names {
		register(first+Opcode(i), operand.String()+"."+name, ImmNone, in, []ValueType{result})
	}
}

// Info returns metadata for the opcode.
// Returns an "UNKNOWN" entry if the opcode is not in the catalog.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02x)", byte(op)), Kind: KindPlain}
}

// Known reports whether op is in the catalog.
func (op Opcode) Known() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the mnemonic.
func (op Opcode) String() string {
	return op.Info().Name
}

// LookupMnemonic returns the opcode for a text format mnemonic.
func LookupMnemonic(name string) (Opcode, bool) {
	op, ok := mnemonicTable[name]
	return op, ok
}

// OpcodeCount returns the number of opcodes in the catalog.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
