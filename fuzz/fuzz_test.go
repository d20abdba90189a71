package fuzz

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/fingerprint"
)

func mustTemplate(t *testing.T, s string) fingerprint.Template {
	t.Helper()
	tmpl, err := fingerprint.ParseTemplate(s)
	require.NoError(t, err)
	return tmpl
}

func TestResolveMode(t *testing.T) {
	assert.Equal(t, ModeFull, ResolveMode(false, false, false))
	assert.Equal(t, ModeQuick, ResolveMode(true, false, false))
	assert.Equal(t, ModeSuperQuick, ResolveMode(true, true, false))
	assert.Equal(t, ModeAdaptive, ResolveMode(true, true, true))
	assert.Equal(t, ModeAdaptive, ResolveMode(false, true, true))
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeFull, ModeQuick, ModeSuperQuick, ModeAdaptive} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("turbo")
	assert.Error(t, err)
}

func TestValueSetFor(t *testing.T) {
	tests := []struct {
		mode    Mode
		score   int
		decimal string
		hex     string
	}{
		{ModeFull, 40, "0123456789", "0123456789ABCDEF"},
		{ModeQuick, 0, "0159", "019ABF"},
		{ModeSuperQuick, 0, "09", "0F"},
		{ModeAdaptive, 11, "09", "0F"},
		{ModeAdaptive, 10, "09", "0F"},
		{ModeAdaptive, 9, "0159", "019ABF"},
		{ModeAdaptive, 6, "0159", "019ABF"},
		{ModeAdaptive, 5, "0123456789", "0123456789ABCDEF"},
		{ModeAdaptive, 0, "0123456789", "0123456789ABCDEF"},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			assert.Equal(t, tt.decimal, string(ValueSetFor(fingerprint.Decimal, tt.mode, tt.score)))
			assert.Equal(t, tt.hex, string(ValueSetFor(fingerprint.Hex, tt.mode, tt.score)))
			assert.Equal(t, "0", string(ValueSetFor(fingerprint.Unused, tt.mode, tt.score)))
		})
	}
}

func TestSelector_AdaptiveBoundaries(t *testing.T) {
	sel := NewSelector(ModeAdaptive, "")

	// 4 hex + 3 decimal = 11
	m, err := sel.Matrix("123", mustTemplate(t, "0HHHHNNN"))
	require.NoError(t, err)
	assert.Equal(t, 11, m.Score)
	assert.Equal(t, ModeSuperQuick, m.Mode)
	assert.Equal(t, "[0][0F][0F][0F][0F][09][09][09]", m.String())

	// 3 hex + 3 decimal = 9, strictly not above 9
	m, err = sel.Matrix("123", mustTemplate(t, "0HHHNNN0"))
	require.NoError(t, err)
	assert.Equal(t, 9, m.Score)
	assert.Equal(t, ModeQuick, m.Mode)

	m, err = sel.Matrix("123", mustTemplate(t, "00HHN0"))
	require.NoError(t, err)
	assert.Equal(t, 5, m.Score)
	assert.Equal(t, ModeFull, m.Mode)
	assert.Equal(t, uint64(16*16*10), m.Cardinality())
}

func TestSelector_Plan(t *testing.T) {
	doc := &fingerprint.Document{Templates: map[string]fingerprint.Template{
		"7DF": mustTemplate(t, "00NN"),
		"123": mustTemplate(t, "00HH"),
	}}

	plan, err := NewSelector(ModeFull, "").Plan(doc)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "123", plan[0].Identifier)
	assert.Equal(t, "7DF", plan[1].Identifier)

	plan, err = NewSelector(ModeFull, "7df").Plan(doc)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "7DF", plan[0].Identifier)

	_, err = NewSelector(ModeFull, "456").Plan(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInputMissing)
}

func TestSelector_RejectsUnknownSymbol(t *testing.T) {
	_, err := NewSelector(ModeFull, "").Matrix("123", fingerprint.Template("00X0"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestGenerator_OdometerOrder(t *testing.T) {
	m, err := NewSelector(ModeFull, "").Matrix("123", mustTemplate(t, "00HH"))
	require.NoError(t, err)
	require.Equal(t, uint64(256), m.Cardinality())

	g := NewGenerator(m)
	var got []string
	for p := range g.Seq() {
		got = append(got, p)
	}

	require.Len(t, got, 256)
	assert.Equal(t, "0000", got[0])
	assert.Equal(t, "0001", got[1], "last position cycles fastest")
	assert.Equal(t, "000F", got[15])
	assert.Equal(t, "0010", got[16])
	assert.Equal(t, "00FF", got[255])
	assert.Equal(t, uint64(256), g.Count())

	seen := make(map[string]bool, len(got))
	for _, p := range got {
		assert.False(t, seen[p], "duplicate payload %s", p)
		seen[p] = true
	}

	_, ok := g.Next()
	assert.False(t, ok, "exhausted generator stays exhausted")
}

func TestGenerator_MixedSets(t *testing.T) {
	m := Matrix{Sets: []ValueSet{ValueSet("ab"), ValueSet("0"), ValueSet("xyz")}}
	g := NewGenerator(m)

	var got []string
	for {
		p, ok := g.Next()
		if !ok {
			break
		}
		got = append(got, p)
	}
	assert.Equal(t, []string{"a0x", "a0y", "a0z", "b0x", "b0y", "b0z"}, got)
}

func TestGenerator_YieldsIndependentStrings(t *testing.T) {
	m := Matrix{Sets: []ValueSet{ValueSet("01"), ValueSet("01")}}
	g := NewGenerator(m)

	first, _ := g.Next()
	second, _ := g.Next()
	assert.Equal(t, "00", first, "earlier payload is not overwritten by later yields")
	assert.Equal(t, "01", second)
}

func TestGenerator_Empty(t *testing.T) {
	_, ok := NewGenerator(Matrix{}).Next()
	assert.False(t, ok)

	_, ok = NewGenerator(Matrix{Sets: []ValueSet{ValueSet("01"), {}}}).Next()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), Matrix{Sets: []ValueSet{{}}}.Cardinality())
}

func TestTotalCardinality(t *testing.T) {
	small := Matrix{Sets: []ValueSet{ValueSet("01"), ValueSet("0F")}}
	assert.Equal(t, uint64(8), TotalCardinality([]Matrix{small, small}))
	assert.Equal(t, uint64(0), TotalCardinality(nil))

	wide := Matrix{Sets: make([]ValueSet, 24)}
	for i := range wide.Sets {
		wide.Sets[i] = ValueSet("0123456789ABCDEF")
	}
	require.Equal(t, uint64(math.MaxUint64), wide.Cardinality())
	assert.Equal(t, uint64(math.MaxUint64), TotalCardinality([]Matrix{small, wide}))
	assert.Equal(t, uint64(math.MaxUint64), TotalCardinality([]Matrix{wide, small}), "sum does not wrap")
}

func TestGenerator_SeqStopsEarly(t *testing.T) {
	m := Matrix{Sets: []ValueSet{ValueSet("0123456789")}}
	g := NewGenerator(m)
	for p := range g.Seq() {
		if p == "2" {
			break
		}
	}
	next, ok := g.Next()
	require.True(t, ok)
	assert.Equal(t, "3", next, "Seq shares the generator cursor")
}

func FuzzGeneratorCardinality(f *testing.F) {
	f.Add("00HH", uint8(0))
	f.Add("NNNN", uint8(1))
	f.Add("HHHHHH", uint8(2))
	f.Add("0H0N0H", uint8(3))

	f.Fuzz(func(t *testing.T, tmpl string, mode uint8) {
		tp, err := fingerprint.ParseTemplate(tmpl)
		if err != nil {
			return
		}
		m, err := NewSelector(Mode(mode%4), "").Matrix("123", tp)
		if err != nil {
			t.Fatal(err)
		}
		if m.Cardinality() > 1<<16 {
			return
		}

		g := NewGenerator(m)
		seen := make(map[string]struct{})
		prev := ""
		for p := range g.Seq() {
			if len(p) != len(tp) {
				t.Fatalf("payload %q has wrong length", p)
			}
			if _, dup := seen[p]; dup {
				t.Fatalf("duplicate payload %q", p)
			}
			if prev != "" && p <= prev {
				t.Fatalf("payload %q not after %q", p, prev)
			}
			seen[p] = struct{}{}
			prev = p
		}
		if uint64(len(seen)) != m.Cardinality() {
			t.Fatalf("yielded %d payloads, want %d", len(seen), m.Cardinality())
		}
	})
}
