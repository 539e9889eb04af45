package wasm

// Version constants for analysis output and the tool.
const (
	// AnalysisVersion is the schema version of analysis results.
	AnalysisVersion = "1"

	// ToolVersion is the wasmstack version.
	ToolVersion = "0.1.0"
)
