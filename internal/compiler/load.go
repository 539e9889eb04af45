package compiler

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/wasmstack/internal/wasm"
)

// LoadModuleFile reads, decodes, and compiles a module description.
// The format is chosen by extension: .yaml/.yml or .cue.
// An empty module name defaults to the file's base name.
func LoadModuleFile(path string) (*wasm.Module, error) {
	desc, err := LoadModuleDesc(path)
	if err != nil {
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	m, err := CompileModule(desc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadModuleDesc reads and decodes a module description without compiling it.
func LoadModuleDesc(path string) (*ModuleDesc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ParseModuleYAML(data)
	case ".cue":
		return ParseModuleCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported module file extension %q (want .yaml, .yml, or .cue)", ext)
	}
}

// ParseModuleYAML decodes a YAML module description.
// Unknown fields are rejected.
func ParseModuleYAML(data []byte) (*ModuleDesc, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(f.Module.Functions) == 0 {
		return nil, &CompileError{Field: "module.functions", Message: "at least one function is required"}
	}
	return &f.Module, nil
}

// ParseModuleCUE decodes a CUE module description.
// filename is used for error positions only.
func ParseModuleCUE(data []byte, filename string) (*ModuleDesc, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	mv := v.LookupPath(cue.ParsePath("module"))
	if !mv.Exists() {
		return nil, &CompileError{Field: "module", Message: "module is required", Pos: v.Pos()}
	}
	if err := mv.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var desc ModuleDesc
	if err := mv.Decode(&desc); err != nil {
		return nil, formatCUEError(err)
	}
	if len(desc.Functions) == 0 {
		return nil, &CompileError{Field: "module.functions", Message: "at least one function is required", Pos: mv.Pos()}
	}
	return &desc, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
