package testutil

// ConstantRunID returns the same run ID every time.
//
// Unlike analysis.FixedGenerator which returns IDs in sequence, this
// generator never runs out, so a scenario can be analyzed any number of
// times and still produce byte-identical output.
//
// Thread-safety: ConstantRunID is stateless and safe for concurrent use.
type ConstantRunID struct {
	id string
}

// NewConstantRunID creates a constant run ID generator.
//
// If id is empty, Generate() returns "test-run-default".
func NewConstantRunID(id string) *ConstantRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &ConstantRunID{id: id}
}

// Generate returns the constant run ID.
//
// Implements analysis.RunIDGenerator.
func (g *ConstantRunID) Generate() string {
	return g.id
}
