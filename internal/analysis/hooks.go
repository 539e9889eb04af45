package analysis

import (
	"slices"
	"strings"

	"github.com/roach88/wasmstack/internal/wasm"
)

// HookSignature is the concrete stack effect of one instruction mnemonic.
// A monomorphizing instrumentation emits one hook per distinct signature,
// e.g. one drop hook for i32 and another for f64.
type HookSignature struct {
	Instr   string
	Inputs  []wasm.ValueType
	Outputs []wasm.ValueType
}

// Key renders the signature as "drop:[i32]->[]". Keys are unique per
// signature and order hooks deterministically.
func (h HookSignature) Key() string {
	var b strings.Builder
	b.WriteString(h.Instr)
	b.WriteString(":[")
	b.WriteString(joinTypes(h.Inputs))
	b.WriteString("]->[")
	b.WriteString(joinTypes(h.Outputs))
	b.WriteByte(']')
	return b.String()
}

// String implements fmt.Stringer.
func (h HookSignature) String() string {
	return h.Key()
}

func joinTypes(vts []wasm.ValueType) string {
	parts := make([]string, len(vts))
	for i, vt := range vts {
		parts[i] = vt.String()
	}
	return strings.Join(parts, ",")
}

// hookSet collects distinct hook signatures.
type hookSet map[string]HookSignature

func (s hookSet) add(h HookSignature) {
	k := h.Key()
	if _, ok := s[k]; !ok {
		s[k] = h
	}
}

// sorted returns the signatures ordered by key.
func (s hookSet) sorted() []HookSignature {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]HookSignature, len(keys))
	for i, k := range keys {
		out[i] = s[k]
	}
	return out
}

// ParseHookKey parses a key produced by HookSignature.Key.
func ParseHookKey(key string) (HookSignature, bool) {
	instr, rest, ok := strings.Cut(key, ":[")
	if !ok {
		return HookSignature{}, false
	}
	in, out, ok := strings.Cut(rest, "]->[")
	if !ok || !strings.HasSuffix(out, "]") {
		return HookSignature{}, false
	}
	out = strings.TrimSuffix(out, "]")

	inputs, err := parseTypeList(in)
	if err != nil {
		return HookSignature{}, false
	}
	outputs, err := parseTypeList(out)
	if err != nil {
		return HookSignature{}, false
	}
	return HookSignature{Instr: instr, Inputs: inputs, Outputs: outputs}, true
}

func parseTypeList(s string) ([]wasm.ValueType, error) {
	if s == "" {
		return nil, nil
	}
	return wasm.ParseValueTypes(strings.Split(s, ","))
}
