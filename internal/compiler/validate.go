package compiler

import (
	"fmt"

	"github.com/roach88/wasmstack/internal/wasm"
)

// Validation error codes (E200-E299)
const (
	// Malformed description (E200): bad type name or instruction text
	ErrMalformedModule = "E200"

	// Function signature errors (E201)
	ErrMultipleResults = "E201" // MVP functions return at most one value

	// Index errors (E202-E204)
	ErrLocalIndex  = "E202" // local index out of range
	ErrGlobalIndex = "E203" // global index out of range
	ErrCallTarget  = "E204" // call target out of range

	// Structure errors (E205-E210)
	ErrUnbalancedBlock = "E205" // end without block, or block without end
	ErrElseOutsideIf   = "E206" // else not directly inside an if
	ErrImmutableGlobal = "E207" // global.set on an immutable global
	ErrBranchDepth     = "E208" // branch label deeper than the open blocks
	ErrDuplicateFunc   = "E209" // duplicate function name
	ErrIfResultNoElse  = "E210" // if with a result needs an else arm
)

// ValidationError represents a structural validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the structural rules the analysis pass relies on.
// Returns all errors found (does not fail-fast).
//
// Validate does not type check instruction operands. That is the analysis
// pass's job.
func Validate(m *wasm.Module) []ValidationError {
	var errs []ValidationError

	names := make(map[string]int)
	for i := range m.Functions {
		fn := &m.Functions[i]
		field := fmt.Sprintf("functions[%d]", i)

		// E209: duplicate function name
		if first, dup := names[fn.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate function name %q (first at functions[%d])", fn.Name, first),
				Code:    ErrDuplicateFunc,
			})
		} else {
			names[fn.Name] = i
		}

		// E201: at most one result
		if len(fn.Type.Results) > 1 {
			errs = append(errs, ValidationError{
				Field:   field + ".results",
				Message: fmt.Sprintf("function %q declares %d results, at most one is supported", fn.Name, len(fn.Type.Results)),
				Code:    ErrMultipleResults,
			})
		}

		errs = append(errs, validateBody(m, i)...)
	}

	return errs
}

// frame is one open block during the structural walk.
type frame struct {
	kind    wasm.Kind
	name    string
	block   wasm.BlockType
	hasElse bool
	line    int
}

func validateBody(m *wasm.Module, fnIdx int) []ValidationError {
	var errs []ValidationError
	fn := &m.Functions[fnIdx]
	var ctrl []frame

	for pc, in := range fn.Body {
		field := fmt.Sprintf("functions[%d].body[%d]", fnIdx, pc)
		if in.Line > 0 {
			field = fmt.Sprintf("functions[%d].body[%d]", fnIdx, in.Line-1)
		}
		add := func(code, msg string) {
			errs = append(errs, ValidationError{Field: field, Message: msg, Code: code, Line: in.Line})
		}

		switch kind := in.Op.Info().Kind; kind {
		case wasm.KindBlock, wasm.KindLoop, wasm.KindIf:
			ctrl = append(ctrl, frame{kind: kind, name: in.Op.String(), block: in.Block, line: in.Line})

		case wasm.KindElse:
			if len(ctrl) == 0 || ctrl[len(ctrl)-1].kind != wasm.KindIf || ctrl[len(ctrl)-1].hasElse {
				add(ErrElseOutsideIf, "else must directly follow the then arm of an if")
				continue
			}
			ctrl[len(ctrl)-1].hasElse = true

		case wasm.KindEnd:
			if len(ctrl) == 0 {
				add(ErrUnbalancedBlock, "end without an open block (the function's end is implicit)")
				continue
			}
			top := ctrl[len(ctrl)-1]
			if _, hasResult := top.block.Result(); hasResult && top.kind == wasm.KindIf && !top.hasElse {
				add(ErrIfResultNoElse, fmt.Sprintf("if %s has no else arm", top.block))
			}
			ctrl = ctrl[:len(ctrl)-1]

		case wasm.KindBr, wasm.KindBrIf:
			if int64(in.Index) > int64(len(ctrl)) {
				add(ErrBranchDepth, fmt.Sprintf("label %d exceeds depth %d", in.Index, len(ctrl)))
			}

		case wasm.KindBrTable:
			for _, l := range in.Labels {
				if int64(l) > int64(len(ctrl)) {
					add(ErrBranchDepth, fmt.Sprintf("label %d exceeds depth %d", l, len(ctrl)))
				}
			}

		case wasm.KindLocalGet, wasm.KindLocalSet, wasm.KindLocalTee:
			if _, ok := fn.LocalType(in.Index); !ok {
				add(ErrLocalIndex, fmt.Sprintf("local %d out of range (function has %d)", in.Index, fn.LocalCount()))
			}

		case wasm.KindGlobalGet, wasm.KindGlobalSet:
			if int64(in.Index) >= int64(len(m.Globals)) {
				add(ErrGlobalIndex, fmt.Sprintf("global %d out of range (module has %d)", in.Index, len(m.Globals)))
				continue
			}
			if kind == wasm.KindGlobalSet && !m.Globals[in.Index].Mutable {
				add(ErrImmutableGlobal, fmt.Sprintf("global %d is immutable", in.Index))
			}

		case wasm.KindCall:
			if int64(in.Index) >= int64(len(m.Functions)) {
				add(ErrCallTarget, fmt.Sprintf("function %d out of range (module has %d)", in.Index, len(m.Functions)))
			}
		}
	}

	for i := len(ctrl) - 1; i >= 0; i-- {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("functions[%d].body", fnIdx),
			Message: fmt.Sprintf("%s opened at line %d is never closed", ctrl[i].name, ctrl[i].line),
			Code:    ErrUnbalancedBlock,
			Line:    ctrl[i].line,
		})
	}

	return errs
}
