package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/wasmstack/internal/wasm"
)

// ParseInstr parses one text format instruction.
//
// Accepted immediate forms:
//
//	local.get 0
//	block
//	block (result i32)
//	block i32
//	br_table 0 1 2
//	i64.load offset=8 align=3
//	f64.const 1.5
//
// A ";;" starts a comment that runs to the end of the line.
func ParseInstr(line string) (wasm.Instr, error) {
	if i := strings.Index(line, ";;"); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return wasm.Instr{}, fmt.Errorf("empty instruction")
	}

	op, ok := wasm.LookupMnemonic(fields[0])
	if !ok {
		return wasm.Instr{}, fmt.Errorf("unknown instruction %q", fields[0])
	}
	instr := wasm.Instr{Op: op}
	args := fields[1:]

	info := op.Info()
	switch info.Imm {
	case wasm.ImmNone:
		if len(args) > 0 {
			return instr, fmt.Errorf("%s takes no immediates, got %q", info.Name, strings.Join(args, " "))
		}

	case wasm.ImmIndex:
		if len(args) != 1 {
			return instr, fmt.Errorf("%s requires exactly one index", info.Name)
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return instr, fmt.Errorf("%s: %w", info.Name, err)
		}
		instr.Index = idx

	case wasm.ImmBlock:
		bt, err := parseBlockType(args)
		if err != nil {
			return instr, fmt.Errorf("%s: %w", info.Name, err)
		}
		instr.Block = bt

	case wasm.ImmLabels:
		if len(args) == 0 {
			return instr, fmt.Errorf("%s requires at least one label", info.Name)
		}
		instr.Labels = make([]uint32, len(args))
		for i, a := range args {
			idx, err := parseIndex(a)
			if err != nil {
				return instr, fmt.Errorf("%s label %d: %w", info.Name, i, err)
			}
			instr.Labels[i] = idx
		}

	case wasm.ImmLiteral:
		if len(args) != 1 {
			return instr, fmt.Errorf("%s requires exactly one literal", info.Name)
		}
		if err := checkLiteral(info.Out[0], args[0]); err != nil {
			return instr, fmt.Errorf("%s: %w", info.Name, err)
		}
		instr.Literal = args[0]

	case wasm.ImmMemArg:
		for _, a := range args {
			key, val, ok := strings.Cut(a, "=")
			if !ok {
				return instr, fmt.Errorf("%s: malformed memarg %q", info.Name, a)
			}
			n, err := parseIndex(val)
			if err != nil {
				return instr, fmt.Errorf("%s %s: %w", info.Name, key, err)
			}
			switch key {
			case "offset":
				instr.Offset = n
			case "align":
				instr.Align = n
			default:
				return instr, fmt.Errorf("%s: unknown memarg %q", info.Name, key)
			}
		}
	}

	return instr, nil
}

func parseIndex(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return uint32(n), nil
}

// parseBlockType accepts no tokens, "(result T)", or a bare "T".
func parseBlockType(args []string) (wasm.BlockType, error) {
	if len(args) == 0 {
		return wasm.BlockTypeEmpty, nil
	}
	text := strings.Join(args, " ")
	if strings.HasPrefix(text, "(") {
		inner, ok := strings.CutPrefix(text, "(result")
		if !ok || !strings.HasSuffix(inner, ")") {
			return wasm.BlockTypeEmpty, fmt.Errorf("malformed block type %q", text)
		}
		text = strings.TrimSpace(strings.TrimSuffix(inner, ")"))
	}
	if strings.ContainsAny(text, " \t") {
		return wasm.BlockTypeEmpty, fmt.Errorf("block types have at most one result, got %q", text)
	}
	vt, err := wasm.ParseValueType(text)
	if err != nil {
		return wasm.BlockTypeEmpty, err
	}
	return wasm.BlockTypeOf(vt), nil
}

// checkLiteral verifies that s is a valid constant of type vt.
// Integer constants accept both signed and unsigned interpretations.
func checkLiteral(vt wasm.ValueType, s string) error {
	clean := strings.ReplaceAll(s, "_", "")
	switch vt {
	case wasm.ValueTypeI32:
		if n, err := strconv.ParseInt(clean, 0, 64); err == nil && n >= math.MinInt32 && n <= math.MaxUint32 {
			return nil
		}
	case wasm.ValueTypeI64:
		if _, err := strconv.ParseInt(clean, 0, 64); err == nil {
			return nil
		}
		if _, err := strconv.ParseUint(clean, 0, 64); err == nil {
			return nil
		}
	case wasm.ValueTypeF32, wasm.ValueTypeF64:
		if strings.HasPrefix(strings.TrimLeft(clean, "+-"), "nan:0x") {
			return nil
		}
		bits := 64
		if vt == wasm.ValueTypeF32 {
			bits = 32
		}
		if _, err := strconv.ParseFloat(clean, bits); err == nil {
			return nil
		}
	}
	return fmt.Errorf("invalid %s literal %q", vt, s)
}
