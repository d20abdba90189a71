package fingerprint

import (
	"fmt"
	"regexp"
	"strings"
)

// Symbol classifies one payload digit position.
type Symbol byte

// Symbols are ordered: a position only ever moves Unused -> Decimal -> Hex.
const (
	Unused  Symbol = '0'
	Decimal Symbol = 'N'
	Hex     Symbol = 'H'
)

// Weight is the symbol's contribution to a complexity score.
func (s Symbol) Weight() int {
	switch s {
	case Hex:
		return 2
	case Decimal:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the three template symbols.
func (s Symbol) Valid() bool {
	return s == Unused || s == Decimal || s == Hex
}

var templateRe = regexp.MustCompile(`^[0NH]{4,24}$`)

// Template is the per-position summary of one identifier's payloads.
type Template []Symbol

// NewTemplate returns an all-Unused template of the given length.
func NewTemplate(length int) Template {
	t := make(Template, length)
	for i := range t {
		t[i] = Unused
	}
	return t
}

// ParseTemplate parses the persisted form, e.g. "00NHHH".
func ParseTemplate(s string) (Template, error) {
	if !templateRe.MatchString(s) {
		return nil, fmt.Errorf("template %q is not 4-24 characters of 0, N or H", s)
	}
	return Template(s), nil
}

// String renders the template in its persisted form.
func (t Template) String() string {
	var b strings.Builder
	b.Grow(len(t))
	for _, s := range t {
		b.WriteByte(byte(s))
	}
	return b.String()
}

// Score is the sum of symbol weights (Hex 2, Decimal 1, Unused 0).
func (t Template) Score() int {
	score := 0
	for _, s := range t {
		score += s.Weight()
	}
	return score
}

// observe widens positions according to one payload.
func (t Template) observe(payload string) {
	for p := 0; p < len(payload) && p < len(t); p++ {
		c := payload[p]
		switch {
		case c == '0':
		case c < '0' || c > '9':
			t[p] = Hex
		case t[p] != Hex:
			t[p] = Decimal
		}
	}
}
