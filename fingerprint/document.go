package fingerprint

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/frame"
)

// FormatVersion is the only document version this package writes.
const FormatVersion = "2"

// Document binds identifier templates to capture metadata. A loaded
// Document is treated as read-only.
type Document struct {
	Description string
	CaptureDate string
	Version     string
	Templates   map[string]Template
}

// documentFile is the persisted JSON shape. Unknown fields are ignored.
type documentFile struct {
	Description  *string           `json:"description"`
	Date         string            `json:"date"`
	Version      string            `json:"version"`
	Fingerprints map[string]string `json:"fingerprints"`
}

// Identifiers returns the document's identifiers in sorted order.
func (d *Document) Identifiers() []string {
	ids := make([]string, 0, len(d.Templates))
	for id := range d.Templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarshalJSON writes the persisted form. An empty description is null.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := documentFile{
		Date:         d.CaptureDate,
		Version:      d.Version,
		Fingerprints: make(map[string]string, len(d.Templates)),
	}
	if d.Description != "" {
		desc := d.Description
		out.Description = &desc
	}
	for id, t := range d.Templates {
		out.Fingerprints[id] = t.String()
	}
	return json.Marshal(out)
}

// Encode writes the document as indented JSON.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(d); err != nil {
		return errors.WrapFatal(err, "Document", "Encode", "json encoding")
	}
	return nil
}

// ValidationError describes one bad document entry.
type ValidationError struct {
	Identifier string
	Template   string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("fingerprint %q: %s does not pass validation: %s", e.Identifier, e.Field, e.Reason)
}

// Unwrap classifies every validation error as invalid data.
func (e *ValidationError) Unwrap() error {
	return errors.ErrInvalidData
}

// LoadResult is a decoded document plus the entries rejected on the way.
type LoadResult struct {
	Document *Document
	Rejected []*ValidationError
}

// Decode reads and validates a document. Each bad identifier and each bad
// template counts once against the threshold; reaching it is fatal. Below
// the threshold, rejected entries are dropped from the returned Document.
func Decode(r io.Reader, threshold int, logger *slog.Logger) (*LoadResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var raw documentFile
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.WrapFatal(err, "Document", "Decode", "json decoding")
	}

	if raw.Version != FormatVersion {
		logger.Warn("Unexpected fingerprint version", "version", raw.Version, "expected", FormatVersion)
	}

	doc := &Document{
		CaptureDate: raw.Date,
		Version:     raw.Version,
		Templates:   make(map[string]Template, len(raw.Fingerprints)),
	}
	if raw.Description != nil {
		doc.Description = *raw.Description
	}

	ids := make([]string, 0, len(raw.Fingerprints))
	for id := range raw.Fingerprints {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	acc := errors.NewAccumulator("Document", threshold)
	result := &LoadResult{Document: doc}

	reject := func(verr *ValidationError) error {
		logger.Warn("Fingerprint entry rejected", "error", verr)
		result.Rejected = append(result.Rejected, verr)
		return acc.Add(verr)
	}

	for _, id := range ids {
		tmpl := raw.Fingerprints[id]
		ok := true

		if !frame.ValidIdentifier(id) {
			ok = false
			if err := reject(&ValidationError{Identifier: id, Template: tmpl, Field: "CAN ID", Reason: "must be 3 hex digits"}); err != nil {
				return nil, err
			}
		}

		t, err := ParseTemplate(tmpl)
		if err != nil {
			ok = false
			if err := reject(&ValidationError{Identifier: id, Template: tmpl, Field: "CAN payload", Reason: err.Error()}); err != nil {
				return nil, err
			}
		}

		if ok {
			doc.Templates[id] = t
		}
	}

	logger.Info("Fingerprint loaded",
		"identifiers", len(doc.Templates),
		"rejected", len(result.Rejected),
		"date", doc.CaptureDate)

	return result, nil
}
