package fingerprint

import (
	"log/slog"
	"time"

	"github.com/rybolov/Can-Hax/capture"
	"github.com/rybolov/Can-Hax/errors"
)

// DateLayout is the persisted capture date format, YYYY.MM.DD.
const DateLayout = "2006.01.02"

// Builder reduces a parsed capture into a Document.
type Builder struct {
	description string
	location    *time.Location
	logger      *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithDescription sets the document description.
func WithDescription(desc string) BuilderOption {
	return func(b *Builder) { b.description = desc }
}

// WithLocation sets the zone used to render the capture date.
func WithLocation(loc *time.Location) BuilderOption {
	return func(b *Builder) {
		if loc != nil {
			b.location = loc
		}
	}
}

// WithLogger sets the builder's logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a Builder. The capture date is rendered in local time
// unless WithLocation is given.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{location: time.Local, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs both passes over the capture. An empty capture is an input error.
func (b *Builder) Build(c *capture.Capture) (*Document, error) {
	if c == nil || !c.HasLast {
		return nil, errors.WrapFatal(errors.ErrInputMissing, "Builder", "Build", "read capture date from empty log")
	}

	templates := make(map[string]Template)

	// Pass 1: size every template to the longest payload seen.
	for _, f := range c.Frames {
		if t, ok := templates[f.Identifier]; !ok || len(t) < len(f.Payload) {
			templates[f.Identifier] = NewTemplate(len(f.Payload))
		}
	}

	// Pass 2: classify each digit position.
	for _, f := range c.Frames {
		templates[f.Identifier].observe(f.Payload)
	}

	date := c.Last.Time().In(b.location).Format(DateLayout)
	b.logger.Info("Fingerprint built",
		"identifiers", len(templates),
		"frames", len(c.Frames),
		"capture_date", date)

	return &Document{
		Description: b.description,
		CaptureDate: date,
		Version:     FormatVersion,
		Templates:   templates,
	}, nil
}
