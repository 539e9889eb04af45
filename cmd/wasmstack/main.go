// Command wasmstack analyzes the operand type stack of WebAssembly functions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/wasmstack/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return cli.ExitSuccess
	}

	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		// Flag and argument errors from cobra itself.
		fmt.Fprintf(os.Stderr, "wasmstack: %v\n", err)
		return cli.ExitCommandError
	}
	// Failures are already part of the command's output.
	if exitErr.Code != cli.ExitFailure {
		fmt.Fprintf(os.Stderr, "wasmstack: %v\n", err)
	}
	return exitErr.Code
}
