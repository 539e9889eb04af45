package typestack

import (
	"errors"
	"fmt"

	"github.com/roach88/wasmstack/internal/wasm"
)

// ViolationCode categorizes stack invariant violations.
type ViolationCode string

const (
	// ErrCodeEmptyStack indicates a pop on an empty stack.
	ErrCodeEmptyStack ViolationCode = "EMPTY_STACK"

	// ErrCodeBlockMarker indicates a pop that hit an open block marker.
	ErrCodeBlockMarker ViolationCode = "BLOCK_MARKER"

	// ErrCodeTypeMismatch indicates an operand of the wrong type.
	ErrCodeTypeMismatch ViolationCode = "TYPE_MISMATCH"

	// ErrCodeUnbalancedEnd indicates EndBlock with no open block.
	ErrCodeUnbalancedEnd ViolationCode = "UNBALANCED_END"

	// ErrCodeBlockResultMismatch indicates a block that left values other
	// than its declared results. Only reported in strict mode.
	ErrCodeBlockResultMismatch ViolationCode = "BLOCK_RESULT_MISMATCH"
)

// ViolationError reports a stack invariant violation.
//
// Violations are not retryable. They signal a bug in the driving pass or in
// upstream decoding, never a recoverable condition of the input.
type ViolationError struct {
	// Code identifies the violation.
	Code ViolationCode

	// Expected is the declared type (TYPE_MISMATCH only).
	Expected wasm.ValueType

	// Actual is the type found on the stack (TYPE_MISMATCH only).
	Actual wasm.ValueType

	// Block is the declared block type (BLOCK_RESULT_MISMATCH only).
	Block wasm.BlockType

	// Found lists the values left above the marker (BLOCK_RESULT_MISMATCH only).
	Found []wasm.ValueType

	// Depth is the stack length when the violation was detected.
	Depth int
}

// Error implements the error interface.
func (e *ViolationError) Error() string {
	switch e.Code {
	case ErrCodeEmptyStack:
		return fmt.Sprintf("%s: pop on empty stack", e.Code)
	case ErrCodeBlockMarker:
		return fmt.Sprintf("%s: pop reached an open block marker (depth=%d)", e.Code, e.Depth)
	case ErrCodeTypeMismatch:
		return fmt.Sprintf("%s: expected %s, found %s (depth=%d)", e.Code, e.Expected, e.Actual, e.Depth)
	case ErrCodeUnbalancedEnd:
		return fmt.Sprintf("%s: end with no open block (depth=%d)", e.Code, e.Depth)
	case ErrCodeBlockResultMismatch:
		return fmt.Sprintf("%s: block %s ended with [%s]", e.Code, e.Block, wasm.FormatValueTypes(e.Found))
	default:
		return string(e.Code)
	}
}

// IsViolation returns true if err is (or wraps) a *ViolationError.
func IsViolation(err error) bool {
	var ve *ViolationError
	return errors.As(err, &ve)
}

// ViolationCodeOf returns the violation code of err, or "" if err is not a
// violation.
func ViolationCodeOf(err error) ViolationCode {
	var ve *ViolationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
