package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wasmstack/internal/wasm"
)

const yamlModule = `module:
  name: counter
  globals:
    - type: i32
      mutable: true
  functions:
    - name: bump
      results: [i32]
      body:
        - global.get 0
        - i32.const 1
        - i32.add
        - global.set 0
        - global.get 0
`

const cueModule = `module: {
	name: "counter"
	globals: [{type: "i32", mutable: true}]
	functions: [{
		name:    "bump"
		results: ["i32"]
		body: [
			"global.get 0",
			"i32.const 1",
			"i32.add",
			"global.set 0",
			"global.get 0",
		]
	}]
}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadModuleFileFormatsAgree(t *testing.T) {
	fromYAML, err := LoadModuleFile(writeFile(t, "counter.yaml", yamlModule))
	require.NoError(t, err)
	fromCUE, err := LoadModuleFile(writeFile(t, "counter.cue", cueModule))
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromCUE)
	assert.Equal(t, "counter", fromYAML.Name)
	require.Len(t, fromYAML.Functions, 1)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, fromYAML.Functions[0].Type.Results)
	assert.Len(t, fromYAML.Functions[0].Body, 5)
	assert.Empty(t, Validate(fromYAML))
}

func TestLoadModuleFileDefaultName(t *testing.T) {
	path := writeFile(t, "anon.yml", `module:
  functions:
    - name: f
      body: [nop]
`)
	m, err := LoadModuleFile(path)
	require.NoError(t, err)
	assert.Equal(t, "anon", m.Name)
}

func TestLoadModuleFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		errText string
	}{
		{"unknown yaml field", "m.yaml", "module:\n  name: x\n  fucntions: []\n", "failed to parse YAML"},
		{"no functions", "m.yaml", "module:\n  name: x\n", "at least one function"},
		{"cue missing module", "m.cue", "name: \"x\"\n", "module is required"},
		{"cue syntax", "m.cue", "module: {\n", "cue"},
		{"bad instruction", "m.yaml", "module:\n  functions:\n    - name: f\n      body: [i32.nope]\n", "functions[0].body[0]"},
		{"unsupported extension", "m.json", "{}", "unsupported module file extension"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadModuleFile(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}

	_, err := LoadModuleFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read module file")
}
