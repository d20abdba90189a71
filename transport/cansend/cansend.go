// Package cansend sends frames by running the can-utils cansend binary.
package cansend

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/frame"
	"github.com/rybolov/Can-Hax/transport"
)

// DefaultBinary is looked up on PATH when no explicit path is configured.
const DefaultBinary = "cansend"

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Transport runs "cansend <iface> <id>#<payload>" for each frame.
type Transport struct {
	binary   string
	resolved string
	logger   *slog.Logger
	lookPath func(string) (string, error)
	run      runFunc
}

// Option configures the transport.
type Option func(*Transport)

// WithLogger sets the transport's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a cansend transport. An empty binary means DefaultBinary.
func New(binary string, opts ...Option) *Transport {
	if binary == "" {
		binary = DefaultBinary
	}
	t := &Transport{
		binary:   binary,
		logger:   slog.Default(),
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Factory adapts New to transport.Factory.
func Factory(_ context.Context, s transport.Settings) (transport.Transport, error) {
	return New(s.CansendPath), nil
}

// Name implements transport.Transport.
func (t *Transport) Name() string { return "cansend" }

// Check verifies that the binary can be found.
func (t *Transport) Check(_ context.Context) error {
	path, err := t.lookPath(t.binary)
	if err != nil {
		return transport.Unavailable("cansend", "Check", fmt.Errorf("cannot find %s, please verify that it's in your path: %w", t.binary, err))
	}
	t.resolved = path
	t.logger.Debug("Found cansend", "path", path)
	return nil
}

// Send runs cansend once for f. A full transmit queue is reported as transient.
func (t *Transport) Send(ctx context.Context, iface string, f frame.Frame) error {
	bin := t.resolved
	if bin == "" {
		bin = t.binary
	}

	out, err := t.run(ctx, bin, iface, f.String())
	if err == nil {
		return nil
	}

	msg := strings.TrimSpace(string(out))
	cause := fmt.Errorf("cansend %s %s: %w: %s", iface, f, err, msg)
	if strings.Contains(strings.ToLower(msg), "no buffer space") {
		return errors.WrapTransient(cause, "cansend", "Send", "transmit")
	}
	return errors.WrapFatal(cause, "cansend", "Send", "transmit")
}

// Close implements transport.Transport.
func (t *Transport) Close() error { return nil }
