// Command ingest loads a coach's CSV export into the athlete graph.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Process exit codes.
const (
	exitOK       = 0
	exitFatal    = 1
	exitUnmapped = 2
)

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func fatal(err error) error { return &exitError{code: exitFatal, err: err} }

func unmapped(err error) error { return &exitError{code: exitUnmapped, err: err} }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command tree and maps its error to an exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "[error] %v\n", err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFatal
}
