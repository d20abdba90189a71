package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rybolov/Can-Hax/capture"
	"github.com/rybolov/Can-Hax/config"
	"github.com/rybolov/Can-Hax/dispatch"
	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/fingerprint"
	"github.com/rybolov/Can-Hax/fuzz"
)

func fingerprintCmd(a *app) *cobra.Command {
	var (
		input, output, description, timezone string
	)

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Build a fingerprint document from a candump log",
		Long: `Reads a candump log ("(seconds.micros) iface ID#PAYLOAD" per line) and writes a
JSON document with one payload template per CAN identifier. Five malformed
lines abort the run without writing anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return inputMissing("fingerprint", "no input file specified with --input")
			}
			if output == "" {
				return inputMissing("fingerprint", "no output file specified with --output")
			}

			cfg, err := a.loadConfig(cmd, func(cfg *config.Config) error {
				if cmd.Flags().Changed("description") {
					cfg.Fingerprint.Description = description
				}
				if cmd.Flags().Changed("timezone") {
					cfg.Fingerprint.Location = timezone
				}
				return nil
			})
			if err != nil {
				return err
			}
			loc, _ := cfg.Fingerprint.TimeLocation()
			m := a.metrics.Metrics

			reader := capture.NewReader(
				capture.WithThreshold(errors.DefaultThreshold),
				capture.WithLogger(a.logger),
				capture.WithErrorHook(func(error) { m.RecordParseError() }),
			)
			c, err := reader.ReadFile(cmd.Context(), input)
			if err != nil {
				return err
			}

			builder := fingerprint.NewBuilder(
				fingerprint.WithDescription(cfg.Fingerprint.Description),
				fingerprint.WithLocation(loc),
				fingerprint.WithLogger(a.logger),
			)
			doc, err := builder.Build(c)
			if err != nil {
				return err
			}

			store := fingerprint.NewStore(errors.DefaultThreshold, a.logger)
			if err := store.Save(cmd.Context(), output, doc); err != nil {
				return err
			}

			a.printf("Date of last log line: %s\n", doc.CaptureDate)
			a.printf("Found %d CAN IDs.\n", len(doc.Templates))
			if a.opts.verbose {
				if err := doc.Encode(a.stdout); err != nil {
					return err
				}
			}
			a.printf("Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "candump log to fingerprint")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Fingerprint document to write")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description of the device")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA zone for the capture date (default: local time)")
	return cmd
}

func fuzzCmd(a *app) *cobra.Command {
	var (
		input, iface, identifier, timing string
		dryRun, quick, superQuick        bool
		adaptive                         bool
	)

	cmd := &cobra.Command{
		Use:   "fuzz",
		Short: "Send every payload a fingerprint document allows",
		Long: `Loads a fingerprint document and, for each identifier, sends the cartesian
product of candidate digits for every payload position, pausing --timing
between frames. --quick, --superquick and --adaptive shrink the candidate sets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return inputMissing("fuzz", "no input file specified with --input")
			}

			cfg, err := a.loadConfig(cmd, func(cfg *config.Config) error {
				flags := cmd.Flags()
				if flags.Changed("can") {
					cfg.Fuzz.Interface = iface
				}
				if flags.Changed("id") {
					cfg.Fuzz.Identifier = identifier
				}
				if flags.Changed("dry-run") {
					cfg.Fuzz.DryRun = dryRun
				}
				if flags.Changed("timing") {
					d, err := config.ParseTiming(timing)
					if err != nil {
						return inputMissing("fuzz", "--timing: %v", err)
					}
					cfg.Fuzz.Delay = config.Duration(d)
				}
				if quick || superQuick || adaptive {
					cfg.Fuzz.Mode = fuzz.ResolveMode(quick, superQuick, adaptive).String()
				}
				return nil
			})
			if err != nil {
				return err
			}
			if cfg.Fuzz.Interface == "" {
				return inputMissing("fuzz", "no CAN device specified with --can")
			}

			store := fingerprint.NewStore(errors.DefaultThreshold, a.logger)
			loaded, err := store.Load(cmd.Context(), input)
			if err != nil {
				return err
			}
			for range loaded.Rejected {
				a.metrics.Metrics.RecordValidationError()
			}
			a.printf("Found %d CAN IDs.\n", len(loaded.Document.Templates))

			plan, err := fuzz.NewSelector(cfg.Mode(), cfg.Fuzz.Identifier).Plan(loaded.Document)
			if err != nil {
				return err
			}
			total := fuzz.TotalCardinality(plan)
			for _, m := range plan {
				a.printf("%s %s %s (%d frames)\n", m.Identifier, m.Template, m, m.Cardinality())
			}

			return a.runDispatch(cmd, cfg, func(c *dispatch.Controller) (dispatch.Result, error) {
				a.logger.Info("Starting fuzz run", "mode", cfg.Fuzz.Mode, "identifiers", len(plan),
					"frames", total, "delay", cfg.Fuzz.Delay.Std().String())
				return c.Run(cmd.Context(), plan)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "", "Fingerprint document to fuzz from")
	f.StringVarP(&iface, "can", "c", "", "CAN interface, e.g. can0 or vcan0")
	f.StringVar(&identifier, "id", "", "Fuzz only this CAN identifier")
	f.StringVarP(&timing, "timing", "t", "20", "Delay per frame: seconds, or a duration like 250ms")
	f.BoolVar(&dryRun, "dry-run", false, "Generate frames without sending them")
	f.BoolVar(&quick, "quick", false, "Try boundary and midpoint digits only")
	f.BoolVar(&superQuick, "superquick", false, "Try only the lowest and highest digit")
	f.BoolVar(&adaptive, "adaptive", false, "Pick the value sets per identifier from its complexity score")
	return cmd
}

func zeroizeCmd(a *app) *cobra.Command {
	var (
		iface  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "zeroize",
		Short: "Flood the bus with all-zero frames",
		Long: fmt.Sprintf(`Sends %s %d times with no delay, to return
devices left in odd states by a fuzz run to a quiet baseline.`,
			dispatch.ZeroizeFrame(), dispatch.ZeroizeRepeats),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd, func(cfg *config.Config) error {
				if cmd.Flags().Changed("can") {
					cfg.Fuzz.Interface = iface
				}
				if cmd.Flags().Changed("dry-run") {
					cfg.Fuzz.DryRun = dryRun
				}
				return nil
			})
			if err != nil {
				return err
			}
			if cfg.Fuzz.Interface == "" {
				return inputMissing("zeroize", "no CAN device specified with --can")
			}
			return a.runDispatch(cmd, cfg, func(c *dispatch.Controller) (dispatch.Result, error) {
				return c.Zeroize(cmd.Context())
			})
		},
	}

	cmd.Flags().StringVarP(&iface, "can", "c", "", "CAN interface, e.g. can0 or vcan0")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count frames without sending them")
	return cmd
}

func testCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that the configured transport can send frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			t, err := a.openTransport(cmd.Context(), cfg, uuid.NewString())
			if err != nil {
				a.printf("Transport %s is not available: %v\n", cfg.Transport.Kind, err)
				return err
			}
			defer t.Close()
			a.printf("Found %s. We can use this to send CAN frames.\n", t.Name())
			return nil
		},
	}
}

// runDispatch checks the transport, runs fn and prints the summary. A dry
// run still refuses to start without an available transport.
func (a *app) runDispatch(cmd *cobra.Command, cfg *config.Config, fn func(*dispatch.Controller) (dispatch.Result, error)) error {
	stopMetrics, err := a.startMetrics(cfg)
	if err != nil {
		return err
	}
	defer stopMetrics()

	runID := uuid.NewString()
	t, err := a.openTransport(cmd.Context(), cfg, runID)
	if err != nil {
		a.printf("Transport %s is not available: %v\n", cfg.Transport.Kind, err)
		return err
	}
	defer t.Close()

	ctrl := dispatch.NewController(dispatch.Config{
		Interface: cfg.Fuzz.Interface,
		Delay:     cfg.Fuzz.Delay.Std(),
		DryRun:    cfg.Fuzz.DryRun,
		Retry:     cfg.Transport.Retry,
	}, t,
		dispatch.WithLogger(a.logger),
		dispatch.WithMetrics(a.metrics.Metrics),
		dispatch.WithRunID(runID),
	)

	res, err := fn(ctrl)
	a.printf("Generated %d frames, sent %d.\n", res.Generated, res.Sent)
	if err != nil {
		return err
	}
	if res.Cancelled {
		return errInterrupted
	}
	return nil
}
