package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rybolov/Can-Hax/config"
	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/metric"
	"github.com/rybolov/Can-Hax/transport"
	"github.com/rybolov/Can-Hax/transport/cansend"
	"github.com/rybolov/Can-Hax/transport/natsbus"
	"github.com/rybolov/Can-Hax/transport/udp"
	"github.com/rybolov/Can-Hax/transport/websocket"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath  string
	logLevel    string
	logFormat   string
	transport   string
	metricsAddr string
	verbose     bool
}

// app carries what every subcommand shares.
type app struct {
	stdout, stderr io.Writer
	opts           globalOptions
	transports     *transport.Registry
	metrics        *metric.Registry
	logger         *slog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		transports: newTransportRegistry(),
		metrics:    metric.NewRegistry(),
		logger:     slog.Default(),
	}
}

func newTransportRegistry() *transport.Registry {
	r := transport.NewRegistry()
	for kind, f := range map[string]transport.Factory{
		config.TransportCansend:   cansend.Factory,
		config.TransportNATS:      natsbus.Factory,
		config.TransportUDP:       udp.Factory,
		config.TransportWebSocket: websocket.Factory,
	} {
		// Kinds are distinct literals, registration cannot collide
		_ = r.Register(kind, f)
	}
	return r
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Fingerprint and fuzz Controller Area Network (CAN) devices",
		Long: `Can-Hax builds a fingerprint of every CAN identifier seen in a candump log
and then fuzzes a bus by sending every payload the fingerprints allow.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.configPath, "config", getEnv("CANHAX_CONFIG", ""), "Path to YAML configuration file (env: CANHAX_CONFIG)")
	pf.StringVar(&a.opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&a.opts.logFormat, "log-format", "", "Log format: json, text")
	pf.StringVar(&a.opts.transport, "transport", "", "Frame transport: cansend, nats, udp, websocket")
	pf.StringVar(&a.opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	pf.BoolVarP(&a.opts.verbose, "verbose", "v", false, "Verbose mode (debug logging)")

	root.AddCommand(
		fingerprintCmd(a),
		fuzzCmd(a),
		zeroizeCmd(a),
		testCmd(a),
	)
	return root
}

// loadConfig layers defaults, file, environment, global flags and finally
// the subcommand's own flags, validates the result and installs the logger.
func (a *app) loadConfig(cmd *cobra.Command, apply func(*config.Config) error) (*config.Config, error) {
	loader := config.NewLoader()
	if a.opts.configPath != "" {
		loader.AddLayer(a.opts.configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.opts.logFormat
	}
	if flags.Changed("transport") {
		cfg.Transport.Kind = a.opts.transport
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = a.opts.metricsAddr
	}
	if a.opts.verbose {
		cfg.Log.Level = "debug"
	}

	if apply != nil {
		if err := apply(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapFatal(err, "canhax", "loadConfig", "validate configuration")
	}

	a.logger = setupLogger(cfg.Log.Level, cfg.Log.Format, a.stderr)
	slog.SetDefault(a.logger)
	return cfg, nil
}

// openTransport builds the configured transport and refuses to continue
// unless its availability check passes.
func (a *app) openTransport(ctx context.Context, cfg *config.Config, runID string) (transport.Transport, error) {
	settings, err := cfg.TransportSettings(runID)
	if err != nil {
		return nil, err
	}
	t, err := a.transports.Open(ctx, cfg.Transport.Kind, settings)
	if err != nil {
		return nil, err
	}
	if err := t.Check(ctx); err != nil {
		_ = t.Close()
		return nil, err
	}
	a.logger.Info("Transport available", "transport", t.Name())
	return t, nil
}

// startMetrics serves metrics when an address is configured. The returned
// stop function is always safe to call.
func (a *app) startMetrics(cfg *config.Config) (func(), error) {
	if cfg.Metrics.Addr == "" {
		return func() {}, nil
	}
	srv := metric.NewServer(cfg.Metrics.Addr, "", a.metrics)
	if err := srv.Listen(); err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Start(); err != nil {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()
	a.logger.Info("Serving metrics", "address", srv.Address())
	return func() { _ = srv.Stop() }, nil
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stdout, format, args...)
}
