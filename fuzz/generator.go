package fuzz

import "iter"

// Generator enumerates a matrix's cartesian product in odometer order: the
// last position cycles fastest, the first slowest. It holds only an index
// vector, never the product. A Generator is not safe for concurrent use and
// cannot be rewound; build a new one to start over.
type Generator struct {
	sets  []ValueSet
	idx   []int
	buf   []byte
	count uint64
	done  bool
}

// NewGenerator creates a generator over m. A matrix with an empty value set
// yields nothing.
func NewGenerator(m Matrix) *Generator {
	g := &Generator{
		sets: m.Sets,
		idx:  make([]int, len(m.Sets)),
		buf:  make([]byte, len(m.Sets)),
	}
	for _, s := range m.Sets {
		if len(s) == 0 {
			g.done = true
		}
	}
	if len(m.Sets) == 0 {
		g.done = true
	}
	return g
}

// Next returns the next payload, or false once the product is exhausted.
// Every returned string is an independent value.
func (g *Generator) Next() (string, bool) {
	if g.done {
		return "", false
	}

	for i, s := range g.sets {
		g.buf[i] = s[g.idx[i]]
	}
	payload := string(g.buf)
	g.count++

	// Advance with carry from the rightmost position.
	i := len(g.idx) - 1
	for ; i >= 0; i-- {
		g.idx[i]++
		if g.idx[i] < len(g.sets[i]) {
			break
		}
		g.idx[i] = 0
	}
	if i < 0 {
		g.done = true
	}

	return payload, true
}

// Count returns how many payloads have been yielded so far.
func (g *Generator) Count() uint64 {
	return g.count
}

// Seq exposes the remaining payloads as an iterator sharing this cursor.
func (g *Generator) Seq() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			p, ok := g.Next()
			if !ok || !yield(p) {
				return
			}
		}
	}
}
