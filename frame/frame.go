// Package frame parses and validates CAN frames in the candump text forms
// used by Can-Hax: bare wire strings ("123#00AB") and full log lines
// ("(1436509052.249713) vcan0 123#00AB").
package frame

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rybolov/Can-Hax/errors"
)

// Payload length bounds in hex digits.
const (
	MinPayloadDigits = 4
	MaxPayloadDigits = 24
	IdentifierDigits = 3
)

var (
	wireRe       = regexp.MustCompile(`^[A-Fa-f0-9]{3}#[A-Fa-f0-9]{4,24}$`)
	identifierRe = regexp.MustCompile(`^[A-Fa-f0-9]{3}$`)
	payloadRe    = regexp.MustCompile(`^[A-Fa-f0-9]{4,24}$`)
)

// Frame is one addressed bus message. Identifier and Payload keep the case
// they were written in.
type Frame struct {
	Identifier string
	Payload    string
}

// New validates identifier and payload and returns the frame.
func New(identifier, payload string) (Frame, error) {
	return ParseWire(identifier + "#" + payload)
}

// String renders the frame in wire form, "<identifier>#<payload>".
func (f Frame) String() string {
	return f.Identifier + "#" + f.Payload
}

// ValidIdentifier reports whether s is exactly three hex digits.
func ValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// ValidPayload reports whether s is 4 to 24 hex digits. Odd lengths are valid.
func ValidPayload(s string) bool {
	return payloadRe.MatchString(s)
}

// ParseWire parses a bare "<id>#<payload>" token.
func ParseWire(s string) (Frame, error) {
	if !wireRe.MatchString(s) {
		return Frame{}, &ParseError{Token: s, Reason: "token is not <3 hex>#<4-24 hex>"}
	}
	id, payload, _ := strings.Cut(s, "#")
	return Frame{Identifier: id, Payload: payload}, nil
}

// Timestamp is the "(seconds.micros)" prefix of a capture line.
type Timestamp struct {
	Seconds int64
	Micros  int64
}

// Time returns the timestamp truncated to whole seconds.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, 0)
}

// ParseTimestamp parses "(1436509052.249713)". The fractional part is optional.
func ParseTimestamp(tok string) (Timestamp, error) {
	if len(tok) < 3 || tok[0] != '(' || tok[len(tok)-1] != ')' {
		return Timestamp{}, fmt.Errorf("timestamp %q not parenthesised", tok)
	}
	secs, micros, hasFrac := strings.Cut(tok[1:len(tok)-1], ".")

	var ts Timestamp
	var err error
	if ts.Seconds, err = strconv.ParseInt(secs, 10, 64); err != nil {
		return Timestamp{}, fmt.Errorf("timestamp seconds %q: %w", secs, err)
	}
	if hasFrac && micros != "" {
		if ts.Micros, err = strconv.ParseInt(micros, 10, 64); err != nil {
			return Timestamp{}, fmt.Errorf("timestamp micros %q: %w", micros, err)
		}
	}
	return ts, nil
}

// Record is one parsed capture log line.
type Record struct {
	Line      int
	Timestamp Timestamp
	Bus       string
	Frame     Frame
}

// ParseLine parses a capture log line. The line number is only used for
// error reporting. When the frame token is malformed but the timestamp is
// readable, the returned Record still carries the timestamp so callers can
// track the last capture time; the frame is zero and the error is non-nil.
func ParseLine(lineNo int, line string) (Record, error) {
	rec := Record{Line: lineNo}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return rec, &ParseError{Line: lineNo, Token: line, Reason: "expected 3 fields"}
	}

	ts, err := ParseTimestamp(fields[0])
	if err != nil {
		return rec, &ParseError{Line: lineNo, Token: fields[0], Reason: err.Error()}
	}
	rec.Timestamp = ts
	rec.Bus = fields[1]

	f, err := ParseWire(fields[2])
	if err != nil {
		pe := err.(*ParseError)
		pe.Line = lineNo
		pe.HasTimestamp = true
		return rec, pe
	}
	rec.Frame = f
	return rec, nil
}

// ParseError describes one malformed log line or wire token.
type ParseError struct {
	Line   int
	Token  string
	Reason string
	// HasTimestamp is set when the line's timestamp was readable.
	HasTimestamp bool
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: cannot parse %q: %s", e.Line, e.Token, e.Reason)
	}
	return fmt.Sprintf("cannot parse %q: %s", e.Token, e.Reason)
}

// Unwrap classifies every parse error as invalid input.
func (e *ParseError) Unwrap() error {
	return errors.ErrParsingFailed
}
