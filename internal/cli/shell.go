package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/roach88/wasmstack/internal/compiler"
	"github.com/roach88/wasmstack/internal/typestack"
	"github.com/roach88/wasmstack/internal/wasm"
)

const (
	shellPrompt      = "stack> "
	shellHistoryFile = ".wasmstack_history"
)

const shellHelp = `Commands:
  push T...          push values (i32 i64 f32 f64)
  pop                pop the top value
  op IN... -> OUT... apply a stack effect, e.g. op i32 i32 -> i32
  begin [T]          open a block, optionally with a result type
  end                close the innermost block
  exec INSTR         apply an instruction, e.g. exec i32.add
  stack              print the stack
  reset              clear the stack
  help               show this text
  quit               leave the shell`

// ShellOptions holds flags for the shell command.
type ShellOptions struct {
	*RootOptions
	Strict bool
	Script string
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Drive a type stack interactively",
		Long: `Start an interactive shell over one type stack. Each command pushes,
pops, or applies an instruction; the stack is printed after every change.

A violation is reported and leaves the stack as it was.

Examples:
  wasmstack shell
  wasmstack shell --strict
  wasmstack shell --script ./session.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "check block results on every end")
	cmd.Flags().StringVar(&opts.Script, "script", "", "read commands from a file instead of the terminal")

	return cmd
}

func runShell(opts *ShellOptions, cmd *cobra.Command) error {
	sess := NewSession(opts.Strict)

	if opts.Script != "" {
		f, err := os.Open(opts.Script)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open script", err)
		}
		defer f.Close()
		if failed := sess.RunScript(f, cmd.OutOrStdout()); failed > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d command(s) failed", failed))
		}
		return nil
	}

	return interactiveShell(sess, cmd.OutOrStdout(), opts.logger().Debug)
}

func interactiveShell(sess *Session, w io.Writer, debug func(string, ...any)) error {
	fmt.Fprintln(w, "wasmstack shell. Type help for commands, Ctrl+D to exit.")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, shellHistoryFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt(shellPrompt)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(w)
			return nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read input", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)

		out, quit, err := sess.Exec(line)
		if err != nil {
			debug("shell command failed", "line", line, "error", err)
			fmt.Fprintf(w, "✗ %v\n", err)
			continue
		}
		if quit {
			return nil
		}
		if out != "" {
			fmt.Fprintln(w, out)
		}
	}
}

// Session is one shell's type stack plus the kinds of the blocks it opened.
type Session struct {
	stack *typestack.TypeStack
	kinds []wasm.Kind
}

// NewSession returns a session over an empty stack.
func NewSession(strict bool) *Session {
	s := &Session{}
	s.stack = newShellStack(strict)
	return s
}

func newShellStack(strict bool) *typestack.TypeStack {
	if strict {
		return typestack.New(typestack.WithStrictBlockResults())
	}
	return typestack.New()
}

// Stack returns the session's stack.
func (s *Session) Stack() *typestack.TypeStack {
	return s.stack
}

// RunScript executes one command per line, echoing each with its outcome.
// Blank lines and lines starting with # are skipped. Returns the number of
// failed commands.
func (s *Session) RunScript(r io.Reader, w io.Writer) int {
	failed := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fmt.Fprintf(w, "%s%s\n", shellPrompt, line)

		out, quit, err := s.Exec(line)
		if err != nil {
			failed++
			fmt.Fprintf(w, "✗ %v\n", err)
			continue
		}
		if quit {
			break
		}
		if out != "" {
			fmt.Fprintln(w, out)
		}
	}
	if err := scanner.Err(); err != nil {
		failed++
		fmt.Fprintf(w, "✗ %v\n", err)
	}
	return failed
}

// Exec runs one shell command and returns the text to print. quit is set by
// quit and exit. A failed command leaves the stack unchanged.
func (s *Session) Exec(line string) (out string, quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false, nil
	}
	verb, args := fields[0], fields[1:]

	switch verb {
	case "quit", "exit":
		return "", true, nil
	case "help":
		return shellHelp, false, nil
	case "stack":
		return s.stack.String(), false, nil
	case "reset":
		s.stack = newShellStack(s.stack.Strict())
		s.kinds = nil
		return s.stack.String(), false, nil
	case "push":
		err = s.push(args)
	case "pop":
		var vt wasm.ValueType
		if vt, err = s.stack.Pop(); err == nil {
			return fmt.Sprintf("%s  popped %s", s.stack, vt), false, nil
		}
	case "op":
		err = s.op(args)
	case "begin":
		err = s.begin(args)
	case "end":
		err = s.end()
	case "exec":
		err = s.exec(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "exec")))
	default:
		err = fmt.Errorf("unknown command %q (type help)", verb)
	}

	if err != nil {
		return "", false, err
	}
	return s.stack.String(), false, nil
}

func (s *Session) push(args []string) error {
	if len(args) == 0 {
		return errors.New("push needs at least one type")
	}
	vts, err := wasm.ParseValueTypes(args)
	if err != nil {
		return err
	}
	for _, vt := range vts {
		s.stack.Push(vt)
	}
	return nil
}

// op parses "IN... -> OUT...". Either side may be empty.
func (s *Session) op(args []string) error {
	arrow := -1
	for i, a := range args {
		if a == "->" {
			arrow = i
			break
		}
	}
	if arrow < 0 {
		return errors.New("op needs inputs and outputs separated by ->")
	}
	inputs, err := wasm.ParseValueTypes(args[:arrow])
	if err != nil {
		return fmt.Errorf("inputs: %w", err)
	}
	outputs, err := wasm.ParseValueTypes(args[arrow+1:])
	if err != nil {
		return fmt.Errorf("outputs: %w", err)
	}
	return s.stack.Op(inputs, outputs)
}

func (s *Session) begin(args []string) error {
	bt := wasm.BlockTypeEmpty
	switch len(args) {
	case 0:
	case 1:
		vt, err := wasm.ParseValueType(args[0])
		if err != nil {
			return err
		}
		bt = wasm.BlockTypeOf(vt)
	default:
		return errors.New("a block has at most one result type")
	}
	s.openBlock(wasm.KindBlock, bt)
	return nil
}

func (s *Session) openBlock(kind wasm.Kind, bt wasm.BlockType) {
	s.stack.BeginBlock(bt)
	s.kinds = append(s.kinds, kind)
}

func (s *Session) end() error {
	if _, err := s.stack.EndBlock(); err != nil {
		return err
	}
	if len(s.kinds) > 0 {
		s.kinds = s.kinds[:len(s.kinds)-1]
	}
	return nil
}

// exec applies an instruction the same way the analysis pass does.
// Instructions that depend on locals, globals, callees, or labels have no
// meaning outside a function and are rejected.
func (s *Session) exec(text string) error {
	if text == "" {
		return errors.New("exec needs an instruction")
	}
	in, err := compiler.ParseInstr(text)
	if err != nil {
		return err
	}
	info := in.Op.Info()
	i32 := []wasm.ValueType{wasm.ValueTypeI32}

	switch info.Kind {
	case wasm.KindPlain:
		return s.stack.Op(info.In, info.Out)

	case wasm.KindNop:
		return nil

	case wasm.KindBlock, wasm.KindLoop:
		s.openBlock(info.Kind, in.Block)
		return nil

	case wasm.KindIf:
		if err := s.stack.Op(i32, nil); err != nil {
			return err
		}
		s.openBlock(wasm.KindIf, in.Block)
		return nil

	case wasm.KindElse:
		if len(s.kinds) == 0 || s.kinds[len(s.kinds)-1] != wasm.KindIf {
			return errors.New("else outside an if")
		}
		bt, err := s.stack.EndBlock()
		if err != nil {
			return err
		}
		if _, ok := bt.Result(); ok {
			// EndBlock pushed the then arm's result; the else arm starts clean.
			_, _ = s.stack.Pop()
		}
		s.stack.BeginBlock(bt)
		s.kinds[len(s.kinds)-1] = wasm.KindElse
		return nil

	case wasm.KindEnd:
		return s.end()

	case wasm.KindDrop:
		_, err := s.stack.Pop()
		return err

	case wasm.KindSelect:
		// Checked as a whole so a bad select leaves the stack untouched.
		vals := s.stack.Values()
		if len(vals) > 0 && vals[len(vals)-1] != wasm.ValueTypeI32 {
			return s.stack.Op(i32, nil)
		}
		if len(vals) < 3 {
			// Matches what is there so Op reports the underflow.
			ins := make([]wasm.ValueType, 3)
			copy(ins[3-len(vals):], vals)
			return s.stack.Op(ins, nil)
		}
		t := vals[len(vals)-2]
		return s.stack.Op([]wasm.ValueType{t, t, wasm.ValueTypeI32}, []wasm.ValueType{t})
	}

	return fmt.Errorf("%s needs a function context (locals, globals, callees, or labels)", info.Name)
}
