// Package harness provides conformance testing for the type stack analysis.
//
// A scenario names one module file, analyzes it once, persists the run to a
// fresh in-memory store, and checks assertions against the trace read back
// from that store.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	module: ../modules/poly.yaml
//	strict: false
//	assertions:
//	  - type: hook_present
//	    hook: "drop:[i64]->[]"
//	  - type: function_error
//	    function: broken
//	    code: STACK_VIOLATION
//	  - type: stack_at
//	    function: pick
//	    pc: 3
//	    stack: ["block[f64]", "f64"]
//
// # Assertion Types
//
//   - hook_present / hook_absent: a hook key is or is not emitted
//   - hook_count: the number of distinct hooks
//   - function_ok / function_error: a function's outcome
//   - max_depth: peak operand depth of a function or the whole module
//   - stack_at: the stack snapshot after one instruction
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run ID (scenario.run_id or
// "test-run-default") and a single worker, so traces are identical across
// runs and can be compared against golden files in testdata/golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/select_drop.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
