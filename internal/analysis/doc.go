// Package analysis implements the instrumentation pass that drives a
// typestack.TypeStack over each function body.
//
// For every instruction the pass records a Step: the concrete input and
// output types the instruction has at that program point, and the stack
// shape after it. Polymorphic instructions (drop, select, local and global
// access, calls, branches) get their concrete types here, which is what an
// instrumentation tool needs to emit type-specialized hooks.
//
// CONTROL FLOW:
//
// The function body is the outermost block. block and loop open a block;
// if consumes its i32 condition and opens a block; else closes the then arm
// and reopens the same block type; end closes the innermost block. The
// function's final end is implicit.
//
// After br, br_table, return, or unreachable the rest of the enclosing block
// is dead. Dead instructions are recorded with Dead set and do not touch the
// stack. At the closing else or end the stack is reset to the block marker
// and the block's result is assumed, since unreachable code may produce any
// values.
//
// CONCURRENCY:
//
// AnalyzeModule analyzes functions in parallel, each with its own TypeStack.
// Results are returned in module order regardless of completion order.
package analysis
