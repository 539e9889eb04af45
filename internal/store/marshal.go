package store

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/wasmstack/internal/wasm"
)

// cborEncMode encodes stack snapshots with canonical options so equal
// stacks produce equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// marshalStack encodes a stack snapshot (bottom to top) as a CBOR array.
// A nil snapshot is stored as an empty array.
func marshalStack(stack []string) ([]byte, error) {
	if stack == nil {
		stack = []string{}
	}
	data, err := cborEncMode.Marshal(stack)
	if err != nil {
		return nil, fmt.Errorf("marshal stack: %w", err)
	}
	return data, nil
}

// unmarshalStack decodes a CBOR stack snapshot. Always returns a non-nil slice.
func unmarshalStack(data []byte) ([]string, error) {
	var stack []string
	if err := cbor.Unmarshal(data, &stack); err != nil {
		return nil, fmt.Errorf("unmarshal stack: %w", err)
	}
	if stack == nil {
		stack = []string{}
	}
	return stack, nil
}

// formatTypes renders a type list as "i32,i64" for TEXT columns.
func formatTypes(vts []wasm.ValueType) string {
	return strings.Join(wasm.ValueTypeNames(vts), ",")
}

// parseTypes is the inverse of formatTypes. The empty string is no types.
func parseTypes(s string) ([]wasm.ValueType, error) {
	if s == "" {
		return nil, nil
	}
	vts, err := wasm.ParseValueTypes(strings.Split(s, ","))
	if err != nil {
		return nil, fmt.Errorf("parse types %q: %w", s, err)
	}
	return vts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
