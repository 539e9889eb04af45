package analysis

import (
	"errors"
	"fmt"

	"github.com/roach88/wasmstack/internal/typestack"
)

// ErrorCode categorizes pass failures.
type ErrorCode string

const (
	// ErrCodeStackViolation indicates a type stack invariant violation.
	ErrCodeStackViolation ErrorCode = "STACK_VIOLATION"

	// ErrCodeUnbalancedFunction indicates a body whose blocks do not close
	// exactly at the function's implicit end.
	ErrCodeUnbalancedFunction ErrorCode = "UNBALANCED_FUNCTION"

	// ErrCodeUnknownLocal indicates a local index past params and locals.
	ErrCodeUnknownLocal ErrorCode = "UNKNOWN_LOCAL"

	// ErrCodeUnknownGlobal indicates a global index past the module's globals.
	ErrCodeUnknownGlobal ErrorCode = "UNKNOWN_GLOBAL"

	// ErrCodeUnknownFunction indicates a call target past the module's functions.
	ErrCodeUnknownFunction ErrorCode = "UNKNOWN_FUNCTION"

	// ErrCodeUnknownLabel indicates a branch past the open blocks.
	ErrCodeUnknownLabel ErrorCode = "UNKNOWN_LABEL"

	// ErrCodeUnknownOpcode indicates an opcode missing from the catalog.
	ErrCodeUnknownOpcode ErrorCode = "UNKNOWN_OPCODE"

	// ErrCodeMultipleResults indicates a function with more than one result.
	ErrCodeMultipleResults ErrorCode = "MULTIPLE_RESULTS"
)

// PassError reports why the pass stopped on a function.
//
// A PassError is final for its function: the pass never continues a body
// after one.
type PassError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Function is the function name.
	Function string

	// Index is the function index in the module.
	Index int

	// PC is the body position of the failing instruction.
	// Equal to the body length for the implicit final end.
	PC int

	// Instr is the failing instruction in text format.
	Instr string

	// Err is the underlying cause, a *typestack.ViolationError for
	// STACK_VIOLATION.
	Err error
}

// Error implements the error interface.
func (e *PassError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: function %q pc %d (%s): %v", e.Code, e.Function, e.PC, e.Instr, e.Err)
	}
	return fmt.Sprintf("%s: function %q pc %d (%s)", e.Code, e.Function, e.PC, e.Instr)
}

// Unwrap returns the underlying cause.
func (e *PassError) Unwrap() error {
	return e.Err
}

// IsStackViolation returns true if err is a stack invariant violation,
// either a STACK_VIOLATION PassError or a bare typestack violation.
// Uses errors.As to handle wrapped errors.
func IsStackViolation(err error) bool {
	var pe *PassError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeStackViolation
	}
	return typestack.IsViolation(err)
}

// CodeOf returns the pass error code of err, or "" if err is not a PassError.
func CodeOf(err error) ErrorCode {
	var pe *PassError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
