package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/wasmstack/internal/wasm"
)

// Step records one instruction as the pass saw it.
type Step struct {
	PC         int
	Instr      string
	Inputs     []wasm.ValueType
	Outputs    []wasm.ValueType
	Depth      int      // operand values after the instruction
	OpenBlocks int      // open blocks after the instruction, function scope included
	Stack      []string // stack after the instruction, bottom to top
	Dead       bool
}

// String renders the step as "2 local.get 0 [] -> [i32] => [block[] i32]".
func (s Step) String() string {
	line := fmt.Sprintf("%d %s [%s] -> [%s] => [%s]",
		s.PC,
		s.Instr,
		joinTypes(s.Inputs),
		joinTypes(s.Outputs),
		strings.Join(s.Stack, " "),
	)
	if s.Dead {
		line += " (dead)"
	}
	return line
}

// FunctionResult is the outcome of analyzing one function.
//
// On failure Steps holds the instructions processed before the failing one
// and Err is set.
type FunctionResult struct {
	Index       int
	Name        string
	Type        wasm.FunctionType
	Steps       []Step
	MaxDepth    int
	Hooks       []HookSignature
	ContentHash string
	Err         *PassError
}

// OK reports whether the function was analyzed without error.
func (r *FunctionResult) OK() bool {
	return r.Err == nil
}

// ModuleResult is the outcome of one analysis run over a module.
type ModuleResult struct {
	RunID           string
	Module          string
	Strict          bool
	AnalysisVersion string
	Functions       []*FunctionResult // module order
	Hooks           []HookSignature   // distinct across all functions
	ContentHash     string
}

// Failed returns the results of functions that did not pass.
func (r *ModuleResult) Failed() []*FunctionResult {
	var out []*FunctionResult
	for _, fr := range r.Functions {
		if !fr.OK() {
			out = append(out, fr)
		}
	}
	return out
}

// Err joins the errors of every failed function, or returns nil.
func (r *ModuleResult) Err() error {
	var errs []error
	for _, fr := range r.Failed() {
		errs = append(errs, fr.Err)
	}
	return errors.Join(errs...)
}

// Function returns the result for the named function.
func (r *ModuleResult) Function(name string) (*FunctionResult, bool) {
	for _, fr := range r.Functions {
		if fr.Name == name {
			return fr, true
		}
	}
	return nil, false
}

// MaxDepth returns the deepest operand stack across all functions.
func (r *ModuleResult) MaxDepth() int {
	depth := 0
	for _, fr := range r.Functions {
		depth = max(depth, fr.MaxDepth)
	}
	return depth
}
