// Package wasm provides the WebAssembly MVP type and instruction catalog used
// by the type stack and the analysis pass.
//
// This package contains type definitions and static tables only. All other
// internal packages import wasm; wasm imports nothing internal.
//
// Key design constraints:
//   - Value types are the four MVP number types (i32, i64, f32, f64)
//   - A block type has no result or exactly one result
//   - Function bodies are already decoded; there is no binary codec here
//   - Canonical JSON (MarshalCanonical) is the only input to ContentHash
package wasm
