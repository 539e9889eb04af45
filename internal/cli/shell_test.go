package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wasmstack/internal/typestack"
)

// run feeds lines to s and returns the output of the last one.
func run(t *testing.T, s *Session, lines ...string) string {
	t.Helper()
	var out string
	for _, line := range lines {
		var err error
		out, _, err = s.Exec(line)
		require.NoError(t, err, "line %q", line)
	}
	return out
}

func TestSessionExec(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"push", []string{"push i32 f64"}, "[i32 f64]"},
		{"op", []string{"push i32 i32", "op i32 i32 -> i32"}, "[i32]"},
		{"op no outputs", []string{"push i64", "op i64 ->"}, "[]"},
		{"op no inputs", []string{"op -> f32 f32"}, "[f32 f32]"},
		{"pop", []string{"push i32 f32", "pop"}, "[i32]  popped f32"},
		{"begin end", []string{"begin i32", "push i32", "end"}, "[i32]"},
		{"unchecked end", []string{"begin", "push i64", "end"}, "[]"},
		{"plain", []string{"exec i32.const 1", "exec i32.const 2", "exec i32.add"}, "[i32]"},
		{"conversion", []string{"exec f64.const 1.5", "exec i64.trunc_f64_s"}, "[i64]"},
		{"drop", []string{"push f32", "exec drop"}, "[]"},
		{"select", []string{"push f64 f64 i32", "exec select"}, "[f64]"},
		{"nop", []string{"push i32", "exec nop"}, "[i32]"},
		{"block", []string{"exec block (result f32)", "exec f32.const 1", "exec end"}, "[f32]"},
		{"loop", []string{"exec loop", "exec end"}, "[]"},
		{"if else", []string{
			"push i32",
			"exec if (result i32)",
			"exec i32.const 1",
			"exec else",
			"exec i32.const 2",
			"exec end",
		}, "[i32]"},
		{"open blocks", []string{"begin", "begin i64"}, "[block[] block[i64]]"},
		{"stack", []string{"push i32", "stack"}, "[i32]"},
		{"reset", []string{"push i32", "begin", "reset"}, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(t, NewSession(false), tt.lines...))
		})
	}
}

func TestSessionViolations(t *testing.T) {
	tests := []struct {
		name  string
		setup []string
		line  string
		code  typestack.ViolationCode
		stack string
	}{
		{"pop empty", nil, "pop", typestack.ErrCodeEmptyStack, "[]"},
		{"pop marker", []string{"begin"}, "pop", typestack.ErrCodeBlockMarker, "[block[]]"},
		{"op mismatch", []string{"push i32 f32"}, "op i32 i32 -> i32", typestack.ErrCodeTypeMismatch, "[i32 f32]"},
		{"exec mismatch", []string{"push i32"}, "exec i64.eqz", typestack.ErrCodeTypeMismatch, "[i32]"},
		{"end without block", []string{"push i32"}, "end", typestack.ErrCodeUnbalancedEnd, "[i32]"},
		{"select operands differ", []string{"push f64 i64 i32"}, "exec select", typestack.ErrCodeTypeMismatch, "[f64 i64 i32]"},
		{"select condition", []string{"push i32 i32 f32"}, "exec select", typestack.ErrCodeTypeMismatch, "[i32 i32 f32]"},
		{"select underflow", []string{"push i32"}, "exec select", typestack.ErrCodeEmptyStack, "[i32]"},
		{"select at marker", []string{"push i32", "begin", "push i32 i32"}, "exec select", typestack.ErrCodeBlockMarker, "[i32 block[] i32 i32]"},
		{"if condition", []string{"push f32"}, "exec if", typestack.ErrCodeTypeMismatch, "[f32]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(false)
			run(t, s, tt.setup...)

			_, _, err := s.Exec(tt.line)
			require.Error(t, err)
			assert.Equal(t, tt.code, typestack.ViolationCodeOf(err))
			assert.Equal(t, tt.stack, s.Stack().String())
		})
	}
}

func TestSessionStrict(t *testing.T) {
	s := NewSession(true)
	run(t, s, "begin", "push i32")

	_, _, err := s.Exec("end")
	require.Error(t, err)
	assert.Equal(t, typestack.ErrCodeBlockResultMismatch, typestack.ViolationCodeOf(err))
	assert.Equal(t, "[block[] i32]", s.Stack().String())

	// reset keeps the mode.
	run(t, s, "reset")
	assert.True(t, s.Stack().Strict())
}

func TestSessionCommandErrors(t *testing.T) {
	tests := []struct {
		line    string
		wantErr string
	}{
		{"frobnicate", "unknown command"},
		{"push", "at least one type"},
		{"push i128", "unknown value type"},
		{"op i32 i32", "separated by ->"},
		{"op i32 -> v128", "outputs"},
		{"begin i32 i64", "at most one result"},
		{"exec", "needs an instruction"},
		{"exec i32.frobnicate", "unknown instruction"},
		{"exec local.get 0", "needs a function context"},
		{"exec br 0", "needs a function context"},
		{"exec call 1", "needs a function context"},
		{"exec else", "else outside an if"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s := NewSession(false)
			out, quit, err := s.Exec(tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, out)
			assert.False(t, quit)
		})
	}
}

func TestSessionQuit(t *testing.T) {
	for _, line := range []string{"quit", "exit"} {
		_, quit, err := NewSession(false).Exec(line)
		require.NoError(t, err)
		assert.True(t, quit, line)
	}
}

func TestSessionHelpAndBlank(t *testing.T) {
	s := NewSession(false)
	assert.Contains(t, run(t, s, "help"), "exec INSTR")
	assert.Empty(t, run(t, s, "   "))
}

func TestSessionRunScript(t *testing.T) {
	script := strings.Join([]string{
		"# add two constants",
		"exec i32.const 1",
		"exec i32.const 2",
		"",
		"exec i32.add",
		"exec i64.add",
		"quit",
		"push f32",
	}, "\n")

	var out bytes.Buffer
	failed := NewSession(false).RunScript(strings.NewReader(script), &out)
	assert.Equal(t, 1, failed)

	text := out.String()
	assert.Contains(t, text, "stack> exec i32.add\n[i32]\n")
	assert.Contains(t, text, "stack> exec i64.add\n✗ TYPE_MISMATCH")
	assert.NotContains(t, text, "# add two constants")
	assert.NotContains(t, text, "push f32")
}

func TestShellCommandScript(t *testing.T) {
	dir := t.TempDir()
	ok := writeFile(t, dir, "ok.txt", "push i32 i32\nexec i32.add\n")
	bad := writeFile(t, dir, "bad.txt", "pop\n")

	out, _, err := execute(t, NewShellCommand(&RootOptions{Format: "text"}), "--script", ok)
	require.NoError(t, err)
	assert.Contains(t, out, "[i32]")

	_, _, err = execute(t, NewShellCommand(&RootOptions{Format: "text"}), "--script", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, _, err = execute(t, NewShellCommand(&RootOptions{Format: "text"}), "--script", "/nonexistent/script.txt")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
