// Package typestack implements the abstract type stack used by the
// instrumentation pass.
//
// A TypeStack models the operand stack of one WebAssembly function body at a
// single program point: which value types occupy it and which structured
// blocks are open. The pass drives it one instruction at a time.
//
// MODEL:
//
// The stack holds two kinds of Element:
//   - Val: one operand slot of a concrete value type
//   - BlockBegin: the start of a nested block, carrying its declared type
//
// Block markers are well nested. EndBlock removes everything down to and
// including the nearest marker, then pushes the block's declared result.
// Pop never crosses a marker.
//
// ERRORS:
//
// Every failed operation returns a *ViolationError. A violation means the
// driver or upstream decoding is wrong; callers stop processing the function
// body after one. Failed operations never mutate the stack.
//
// By default EndBlock discards the values above the marker without checking
// them against the declared result. WithStrictBlockResults turns that check
// on.
//
// A TypeStack is not safe for concurrent use. Create one per function pass.
package typestack
