// Package compiler turns text module descriptions into wasm.Module values.
//
// A module description lists globals and functions; each function body is a
// list of text format instructions, one per entry:
//
//	module:
//	  name: math
//	  functions:
//	    - name: add
//	      params: [i32, i32]
//	      results: [i32]
//	      body:
//	        - local.get 0
//	        - local.get 1
//	        - i32.add
//
// The function's final end is implicit. Descriptions are read from YAML
// (.yaml, .yml) or CUE (.cue). Both carry the description under a top-level
// module key.
//
// CompileModule fails on the first malformed entry. Validate then checks the
// structural rules the analysis pass relies on and reports every problem it
// finds.
package compiler
