package harness

import "github.com/roach88/wasmstack/internal/analysis"

// FunctionTrace is the recorded analysis of one function as read back from
// the store.
type FunctionTrace struct {
	Name      string          `json:"name"`
	Signature string          `json:"signature"`
	MaxDepth  int             `json:"max_depth"`
	ErrorCode string          `json:"error_code,omitempty"`
	Steps     []analysis.Step `json:"steps"`
}

// OK reports whether the function passed.
func (f *FunctionTrace) OK() bool {
	return f.ErrorCode == ""
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Module is the analyzed module's name.
	Module string `json:"module"`

	// ContentHash is the run's content hash.
	ContentHash string `json:"content_hash"`

	// Functions holds one trace per function in module order.
	Functions []FunctionTrace `json:"functions"`

	// Hooks holds the run's distinct hook keys in key order.
	Hooks []string `json:"hooks"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Functions: []FunctionTrace{},
		Hooks:     []string{},
		Errors:    []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Function returns the trace of the named function.
func (r *Result) Function(name string) (*FunctionTrace, bool) {
	for i := range r.Functions {
		if r.Functions[i].Name == name {
			return &r.Functions[i], true
		}
	}
	return nil, false
}
