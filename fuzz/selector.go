package fuzz

import (
	"fmt"
	"math"
	"strings"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/fingerprint"
)

// Matrix is the per-position value sets for one identifier.
type Matrix struct {
	Identifier string
	Template   fingerprint.Template
	Score      int
	Mode       Mode // effective mode after adaptive resolution
	Sets       []ValueSet
}

// Cardinality is the number of payloads the matrix expands to. It saturates
// at math.MaxUint64.
func (m Matrix) Cardinality() uint64 {
	total := uint64(1)
	for _, s := range m.Sets {
		n := uint64(len(s))
		if n == 0 {
			return 0
		}
		if total > math.MaxUint64/n {
			return math.MaxUint64
		}
		total *= n
	}
	return total
}

// TotalCardinality sums the cardinality of every matrix in plan, saturating
// at math.MaxUint64.
func TotalCardinality(plan []Matrix) uint64 {
	var total uint64
	for _, m := range plan {
		n := m.Cardinality()
		if total > math.MaxUint64-n {
			return math.MaxUint64
		}
		total += n
	}
	return total
}

// String renders the sets the way a verbose run prints them, e.g. "[0][0][0F][0F]".
func (m Matrix) String() string {
	var b strings.Builder
	for _, s := range m.Sets {
		b.WriteByte('[')
		b.WriteString(string(s))
		b.WriteByte(']')
	}
	return b.String()
}

// Selector builds matrices from templates under one policy.
type Selector struct {
	mode       Mode
	identifier string
}

// NewSelector creates a selector. A non-empty identifier restricts Plan to
// that single identifier (matched case-insensitively).
func NewSelector(mode Mode, identifier string) *Selector {
	return &Selector{mode: mode, identifier: identifier}
}

// Matrix builds the matrix for one template.
func (s *Selector) Matrix(id string, t fingerprint.Template) (Matrix, error) {
	score := t.Score()
	m := Matrix{
		Identifier: id,
		Template:   t,
		Score:      score,
		Mode:       s.mode.Effective(score),
		Sets:       make([]ValueSet, len(t)),
	}
	for i, sym := range t {
		if !sym.Valid() {
			return Matrix{}, errors.WrapInvalid(
				fmt.Errorf("unable to complete matrix, got symbol %q at %d", sym, i),
				"Selector", "Matrix", "symbol lookup")
		}
		m.Sets[i] = ValueSetFor(sym, s.mode, score)
	}
	return m, nil
}

// Plan returns the matrices to dispatch for doc, in identifier order. With an
// identifier filter that does not occur in doc, Plan fails with an input error.
func (s *Selector) Plan(doc *fingerprint.Document) ([]Matrix, error) {
	ids := doc.Identifiers()

	if s.identifier != "" {
		ids = filterIdentifier(ids, s.identifier)
		if len(ids) == 0 {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: identifier %s not in fingerprint", errors.ErrInputMissing, s.identifier),
				"Selector", "Plan", "identifier filter")
		}
	}

	plan := make([]Matrix, 0, len(ids))
	for _, id := range ids {
		m, err := s.Matrix(id, doc.Templates[id])
		if err != nil {
			return nil, err
		}
		plan = append(plan, m)
	}
	return plan, nil
}

func filterIdentifier(ids []string, want string) []string {
	for _, id := range ids {
		if id == want {
			return []string{id}
		}
	}
	for _, id := range ids {
		if strings.EqualFold(id, want) {
			return []string{id}
		}
	}
	return nil
}
