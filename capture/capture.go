// Package capture reads candump-style capture logs into parsed frames,
// skipping malformed lines and aborting once too many have been seen.
package capture

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/frame"
)

// maxLineBytes bounds a single log line; candump lines are well under 100 bytes.
const maxLineBytes = 64 * 1024

// Capture is the ordered content of one capture log.
type Capture struct {
	Frames []frame.Frame
	// Last is the timestamp of the last line that carried a readable one.
	Last    frame.Timestamp
	HasLast bool
	Lines   int
	Skipped int
}

// Reader turns capture log text into a Capture.
type Reader struct {
	threshold int
	logger    *slog.Logger
	onError   func(error)
}

// Option configures a Reader.
type Option func(*Reader)

// WithThreshold sets how many malformed lines abort the read.
func WithThreshold(n int) Option {
	return func(r *Reader) { r.threshold = n }
}

// WithLogger sets the reader's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithErrorHook is called for every skipped line, e.g. to count metrics.
func WithErrorHook(fn func(error)) Option {
	return func(r *Reader) { r.onError = fn }
}

// NewReader creates a Reader with the default error threshold.
func NewReader(opts ...Option) *Reader {
	r := &Reader{threshold: errors.DefaultThreshold, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFile opens path and reads it. A missing or unreadable file is an input error.
func (r *Reader) ReadFile(ctx context.Context, path string) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapFatal(errors.ErrInputMissing, "Reader", "ReadFile", "open "+path+": "+err.Error())
	}
	defer f.Close()

	return r.Read(ctx, f)
}

// Read consumes src line by line. Malformed lines are logged and skipped;
// when the threshold is reached Read stops and returns ThresholdExceeded.
// Blank lines are ignored without counting.
func (r *Reader) Read(ctx context.Context, src io.Reader) (*Capture, error) {
	acc := errors.NewAccumulator("Reader", r.threshold)
	c := &Capture{}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		c.Lines++
		if c.Lines <= 3 {
			r.logger.Debug("Capture line", "line", lineNo, "text", line)
		}

		rec, err := frame.ParseLine(lineNo, line)
		if pe, ok := err.(*frame.ParseError); (ok && pe.HasTimestamp) || err == nil {
			c.Last = rec.Timestamp
			c.HasLast = true
		}
		if err != nil {
			c.Skipped++
			r.logger.Warn("Error parsing payload", "line", lineNo, "error", err)
			if r.onError != nil {
				r.onError(err)
			}
			if fatal := acc.Add(err); fatal != nil {
				r.logger.Error("Too many malformed lines, is this a candump log?",
					"errors", acc.Count())
				return nil, fatal
			}
			continue
		}
		c.Frames = append(c.Frames, rec.Frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapFatal(err, "Reader", "Read", "scan capture log")
	}

	if !c.HasLast {
		return nil, errors.WrapFatal(errors.ErrInputMissing, "Reader", "Read", "capture log is empty")
	}
	return c, nil
}
