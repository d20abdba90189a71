package dispatch

import (
	"context"
	"strings"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/frame"
	"github.com/rybolov/Can-Hax/transport"
)

const (
	// ZeroizeIdentifier is the identifier every zeroize frame is sent on.
	ZeroizeIdentifier = "000"
	// ZeroizeRepeats is how many times the zero frame is sent (16^3, one per
	// possible identifier).
	ZeroizeRepeats = 4096
)

// ZeroizeFrame returns the all-zero frame with a full 24-digit payload.
func ZeroizeFrame() frame.Frame {
	return frame.Frame{
		Identifier: ZeroizeIdentifier,
		Payload:    strings.Repeat("0", frame.MaxPayloadDigits),
	}
}

// Zeroize sends ZeroizeFrame ZeroizeRepeats times without any inter-frame
// delay. Dry runs count the frames but send nothing.
func (c *Controller) Zeroize(ctx context.Context) (Result, error) {
	res := Result{RunID: c.runID}
	if !c.cfg.DryRun && c.transport == nil {
		return res, transport.Unavailable("dispatch", "Zeroize", errors.ErrNoConnection)
	}
	f := ZeroizeFrame()

	c.logger.Info("Zeroizing bus", "interface", c.cfg.Interface, "frame", f.String(),
		"repeats", ZeroizeRepeats, "dry_run", c.cfg.DryRun)

	for i := 0; i < ZeroizeRepeats; i++ {
		if ctx.Err() != nil {
			res.Cancelled = true
			c.logger.Info("Zeroize cancelled", "generated", res.Generated, "sent", res.Sent)
			return res, nil
		}
		res.Generated++
		c.metrics.RecordGenerated(f.Identifier)
		if c.cfg.DryRun {
			continue
		}
		if err := c.send(ctx, f); err != nil {
			if err == ctx.Err() {
				res.Cancelled = true
				c.logger.Info("Zeroize cancelled while retrying", "generated", res.Generated, "sent", res.Sent)
				return res, nil
			}
			return res, err
		}
		res.Sent++
	}

	c.logger.Info("Zeroize complete", "generated", res.Generated, "sent", res.Sent)
	return res, nil
}
