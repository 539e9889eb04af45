package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/wasmstack/internal/wasm"
)

// CompileError reports a malformed module description.
type CompileError struct {
	Field   string
	Message string
	Line    int       // 1-based body entry, 0 if not applicable
	Pos     token.Pos // CUE position if available
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d): %s", e.Field, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileModule converts a description into a module.
// Returns the first *CompileError found.
//
// Blank body entries and entries holding only a ";;" comment are skipped;
// Instr.Line keeps the original 1-based entry number.
func CompileModule(desc *ModuleDesc) (*wasm.Module, error) {
	m := &wasm.Module{Name: desc.Name}

	for i, g := range desc.Globals {
		vt, err := wasm.ParseValueType(g.Type)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("globals[%d].type", i),
				Message: err.Error(),
			}
		}
		m.Globals = append(m.Globals, wasm.Global{Type: vt, Mutable: g.Mutable})
	}

	for i := range desc.Functions {
		fn, err := compileFunction(i, &desc.Functions[i])
		if err != nil {
			return nil, err
		}
		m.Functions = append(m.Functions, *fn)
	}

	return m, nil
}

func compileFunction(idx int, fd *FunctionDesc) (*wasm.Function, error) {
	field := fmt.Sprintf("functions[%d]", idx)
	if fd.Name == "" {
		return nil, &CompileError{Field: field + ".name", Message: "name is required"}
	}

	fn := &wasm.Function{Name: fd.Name}
	var err error
	if fn.Type.Params, err = wasm.ParseValueTypes(fd.Params); err != nil {
		return nil, &CompileError{Field: field + ".params", Message: err.Error()}
	}
	if fn.Type.Results, err = wasm.ParseValueTypes(fd.Results); err != nil {
		return nil, &CompileError{Field: field + ".results", Message: err.Error()}
	}
	if fn.Locals, err = wasm.ParseValueTypes(fd.Locals); err != nil {
		return nil, &CompileError{Field: field + ".locals", Message: err.Error()}
	}

	for j, line := range fd.Body {
		if isBlankEntry(line) {
			continue
		}
		instr, err := ParseInstr(line)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s.body[%d]", field, j),
				Message: err.Error(),
				Line:    j + 1,
			}
		}
		instr.Line = j + 1
		fn.Body = append(fn.Body, instr)
	}

	return fn, nil
}

func isBlankEntry(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, ";;")
}
