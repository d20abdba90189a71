// Package dispatch drives generated payloads onto a transport: one frame at
// a time, paced by a fixed inter-frame delay, stoppable between frames.
package dispatch

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/frame"
	"github.com/rybolov/Can-Hax/fuzz"
	"github.com/rybolov/Can-Hax/metric"
	"github.com/rybolov/Can-Hax/pkg/retry"
	"github.com/rybolov/Can-Hax/transport"
)

// DefaultDelay is the pause after each frame when none is configured.
const DefaultDelay = 20 * time.Second

// Config controls a dispatch run.
type Config struct {
	Interface string
	Delay     time.Duration
	DryRun    bool
	Retry     errors.RetryConfig
}

// DefaultConfig returns the default run configuration for iface.
func DefaultConfig(iface string) Config {
	return Config{
		Interface: iface,
		Delay:     DefaultDelay,
		Retry:     errors.DefaultRetryConfig(),
	}
}

// Result summarizes a run.
type Result struct {
	RunID     string
	Generated uint64
	Sent      uint64
	Cancelled bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.runID = id
		}
	}
}

// Controller sends frames one at a time. It is not safe for concurrent Runs.
type Controller struct {
	cfg       Config
	transport transport.Transport
	logger    *slog.Logger
	metrics   *metric.Metrics
	runID     string

	// wait pauses for d or until ctx is done; replaced in tests
	wait func(ctx context.Context, d time.Duration) error
}

// NewController creates a controller. The transport may be nil only for
// dry runs.
func NewController(cfg Config, t transport.Transport, opts ...Option) *Controller {
	c := &Controller{
		cfg:       cfg,
		transport: t,
		logger:    slog.Default(),
		runID:     uuid.NewString(),
		wait:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "dispatch", "run_id", c.runID)
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run dispatches every payload of every matrix in plan order. Cancelling
// ctx stops the run before the next payload is pulled; a send already in
// progress is allowed to finish. A cancelled run returns a nil error with
// Result.Cancelled set.
func (c *Controller) Run(ctx context.Context, plan []fuzz.Matrix) (Result, error) {
	res := Result{RunID: c.runID}
	if !c.cfg.DryRun && c.transport == nil {
		return res, transport.Unavailable("dispatch", "Run", errors.ErrNoConnection)
	}

	for _, m := range plan {
		c.metrics.SetCardinality(m.Identifier, m.Mode.String(), m.Cardinality())
		c.logger.Info("Fuzzing identifier",
			"id", m.Identifier,
			"template", m.Template.String(),
			"score", m.Score,
			"mode", m.Mode.String(),
			"matrix", m.String(),
			"frames", m.Cardinality())

		gen := fuzz.NewGenerator(m)
		for {
			if ctx.Err() != nil {
				res.Cancelled = true
				c.logger.Info("Dispatch cancelled", "generated", res.Generated, "sent", res.Sent)
				return res, nil
			}
			payload, ok := gen.Next()
			if !ok {
				break
			}
			res.Generated++
			c.metrics.RecordGenerated(m.Identifier)

			f := frame.Frame{Identifier: m.Identifier, Payload: payload}
			if c.cfg.DryRun {
				c.logger.Debug("Dry run frame", "frame", f.String())
				continue
			}

			if err := c.send(ctx, f); err != nil {
				if err == ctx.Err() {
					res.Cancelled = true
					c.logger.Info("Dispatch cancelled while retrying", "frame", f.String(),
						"generated", res.Generated, "sent", res.Sent)
					return res, nil
				}
				return res, err
			}
			res.Sent++

			if err := c.pause(ctx); err != nil {
				res.Cancelled = true
				c.logger.Info("Dispatch cancelled", "generated", res.Generated, "sent", res.Sent)
				return res, nil
			}
		}
	}

	c.logger.Info("Dispatch complete", "generated", res.Generated, "sent", res.Sent, "dry_run", c.cfg.DryRun)
	return res, nil
}

// send hands one frame to the transport, retrying transient failures. If
// ctx is cancelled while waiting to retry, ctx's error is returned unwrapped.
func (c *Controller) send(ctx context.Context, f frame.Frame) error {
	c.logger.Debug("Sending CAN frame", "interface", c.cfg.Interface, "frame", f.String())

	// The frame in flight is not interrupted by cancellation
	sendCtx := context.WithoutCancel(ctx)

	cfg := c.cfg.Retry.ToRetryConfig()
	cfg.Retryable = errors.IsTransient

	attempt := 0
	err := retry.Do(ctx, cfg, func() error {
		attempt++
		err := c.transport.Send(sendCtx, c.cfg.Interface, f)
		if err != nil {
			c.metrics.RecordTransportError(c.transport.Name(), errors.Classify(err).String())
			if attempt < cfg.MaxAttempts && errors.IsTransient(err) {
				c.logger.Warn("Transient send failure, retrying",
					"frame", f.String(), "attempt", attempt, "error", err)
			}
		}
		return err
	})
	if err != nil {
		// Cancellation during backoff is reported by the caller, not as a failure
		if ctxErr := ctx.Err(); ctxErr != nil && stderrors.Is(err, ctxErr) {
			return ctxErr
		}
		c.logger.Error("Failed to send CAN frame", "frame", f.String(), "attempts", attempt, "error", err)
		return errors.WrapFatal(err, "dispatch", "send", "send frame "+f.String())
	}

	c.metrics.RecordSent(f.Identifier, c.transport.Name())
	return nil
}

func (c *Controller) pause(ctx context.Context) error {
	if c.cfg.Delay <= 0 {
		return nil
	}
	start := time.Now()
	err := c.wait(ctx, c.cfg.Delay)
	c.metrics.ObserveDelay(time.Since(start))
	return err
}
