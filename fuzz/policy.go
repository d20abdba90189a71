// Package fuzz expands fingerprint templates into candidate payloads. A
// Policy picks a value set per template position, a Selector turns a
// document into per-identifier matrices, and a Generator walks a matrix's
// cartesian product in odometer order without materialising it.
package fuzz

import (
	"fmt"
	"strings"

	"github.com/rybolov/Can-Hax/fingerprint"
)

// Mode selects how many values are tried per position.
type Mode int

const (
	// ModeFull tries every decimal or hex digit.
	ModeFull Mode = iota
	// ModeQuick tries boundary and midpoint digits.
	ModeQuick
	// ModeSuperQuick tries only the extremes.
	ModeSuperQuick
	// ModeAdaptive picks one of the above from the template's complexity score.
	ModeAdaptive
)

// String returns the mode's flag name.
func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeQuick:
		return "quick"
	case ModeSuperQuick:
		return "superquick"
	case ModeAdaptive:
		return "adaptive"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name as printed by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return ModeFull, nil
	case "quick":
		return ModeQuick, nil
	case "superquick", "super-quick":
		return ModeSuperQuick, nil
	case "adaptive":
		return ModeAdaptive, nil
	default:
		return ModeFull, fmt.Errorf("unknown fuzz mode %q", s)
	}
}

// ResolveMode layers the CLI flags: adaptive beats superquick, which beats quick.
func ResolveMode(quick, superQuick, adaptive bool) Mode {
	switch {
	case adaptive:
		return ModeAdaptive
	case superQuick:
		return ModeSuperQuick
	case quick:
		return ModeQuick
	default:
		return ModeFull
	}
}

// Adaptive score boundaries; both comparisons are strict greater-than.
const (
	adaptiveSuperQuickAbove = 9
	adaptiveQuickAbove      = 5
)

// ValueSet is the ordered list of hex digits tried at one position.
type ValueSet []byte

var (
	unusedSet = ValueSet("0")

	fullDecimal = ValueSet("0123456789")
	fullHex     = ValueSet("0123456789ABCDEF")

	quickDecimal = ValueSet("0159")
	quickHex     = ValueSet("019ABF")

	superQuickDecimal = ValueSet("09")
	superQuickHex     = ValueSet("0F")
)

// Effective resolves adaptive mode against a score. Other modes are returned as is.
func (m Mode) Effective(score int) Mode {
	if m != ModeAdaptive {
		return m
	}
	switch {
	case score > adaptiveSuperQuickAbove:
		return ModeSuperQuick
	case score > adaptiveQuickAbove:
		return ModeQuick
	default:
		return ModeFull
	}
}

// ValueSetFor returns the candidate digits for sym under mode m, given the
// template's score. The returned slice must not be modified.
func ValueSetFor(sym fingerprint.Symbol, m Mode, score int) ValueSet {
	if sym == fingerprint.Unused {
		return unusedSet
	}

	hex := sym == fingerprint.Hex
	switch m.Effective(score) {
	case ModeSuperQuick:
		if hex {
			return superQuickHex
		}
		return superQuickDecimal
	case ModeQuick:
		if hex {
			return quickHex
		}
		return quickDecimal
	default:
		if hex {
			return fullHex
		}
		return fullDecimal
	}
}
