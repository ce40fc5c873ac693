package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	a := newApp()
	err := newRootCommand(a).ExecuteContext(ctx)
	if cleanupErr := a.cleanup(); cleanupErr != nil {
		fmt.Fprintf(os.Stderr, "Cleanup error: %v\n", cleanupErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code := 1
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) && exitErr.code > 0 {
			code = exitErr.code
		}
		os.Exit(code)
	}
}

// exitCodeError carries a non-default process exit code.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }

func (e *exitCodeError) Unwrap() error { return e.err }
