package store

import (
	"bytes"
	"testing"

	"github.com/roach88/wasmstack/internal/wasm"
)

func TestMarshalStack_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		stack []string
	}{
		{"nil", nil},
		{"empty", []string{}},
		{"function scope", []string{"block[i32]"}},
		{"nested", []string{"block[]", "i32", "block[f64]", "f64", "f64"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := marshalStack(tt.stack)
			if err != nil {
				t.Fatalf("marshalStack() failed: %v", err)
			}
			got, err := unmarshalStack(data)
			if err != nil {
				t.Fatalf("unmarshalStack() failed: %v", err)
			}
			if got == nil {
				t.Fatal("unmarshalStack() returned nil slice")
			}
			if len(got) != len(tt.stack) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.stack))
			}
			for i := range got {
				if got[i] != tt.stack[i] {
					t.Errorf("[%d] = %q, want %q", i, got[i], tt.stack[i])
				}
			}
		})
	}
}

func TestMarshalStack_Deterministic(t *testing.T) {
	stack := []string{"block[]", "i64", "i32"}

	a, err := marshalStack(stack)
	if err != nil {
		t.Fatalf("marshalStack() failed: %v", err)
	}
	b, err := marshalStack(append([]string(nil), stack...))
	if err != nil {
		t.Fatalf("marshalStack() failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("equal stacks encoded differently: %x vs %x", a, b)
	}
}

func TestMarshalStack_EmptyIsEmptyArray(t *testing.T) {
	data, err := marshalStack(nil)
	if err != nil {
		t.Fatalf("marshalStack() failed: %v", err)
	}
	// CBOR major type 4 (array), length 0
	if !bytes.Equal(data, []byte{0x80}) {
		t.Errorf("marshalStack(nil) = %x, want 80", data)
	}
}

func TestUnmarshalStack_Malformed(t *testing.T) {
	if _, err := unmarshalStack([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for malformed CBOR")
	}
}

func TestFormatTypes(t *testing.T) {
	tests := []struct {
		vts  []wasm.ValueType
		want string
	}{
		{nil, ""},
		{[]wasm.ValueType{wasm.ValueTypeI32}, "i32"},
		{[]wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeF64}, "i32,f64"},
	}

	for _, tt := range tests {
		got := formatTypes(tt.vts)
		if got != tt.want {
			t.Errorf("formatTypes(%v) = %q, want %q", tt.vts, got, tt.want)
		}

		back, err := parseTypes(got)
		if err != nil {
			t.Fatalf("parseTypes(%q) failed: %v", got, err)
		}
		if formatTypes(back) != tt.want {
			t.Errorf("parseTypes(%q) = %v", got, back)
		}
	}
}

func TestParseTypes_Invalid(t *testing.T) {
	if _, err := parseTypes("i32,v128"); err == nil {
		t.Error("expected error for unknown type")
	}
}
