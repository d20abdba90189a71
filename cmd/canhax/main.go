// Package main implements the canhax command: fingerprint a candump log,
// fuzz a bus from the resulting document, or zeroize a bus.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rybolov/Can-Hax/errors"
)

// Build information constants
const (
	Version = "2.0.0"
	appName = "canhax"
)

// Exit statuses.
const (
	exitOK          = 0
	exitFailure     = 1
	exitThreshold   = 3
	exitInterrupted = 130
)

// errInterrupted marks a run that stopped early on SIGINT/SIGTERM.
var errInterrupted = stderrors.New("interrupted")

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	code := exitCode(err)
	if code != exitOK && code != exitInterrupted {
		slog.Error("Application failed", "error", err, "exit_code", code)
	}
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(newApp(stdout, stderr))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case stderrors.Is(err, errInterrupted):
		return exitInterrupted
	case stderrors.Is(err, errors.ErrThresholdExceeded):
		return exitThreshold
	default:
		return exitFailure
	}
}
