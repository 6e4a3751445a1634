// Package postcode canonicalizes free-text UK postal codes and derives the
// short area prefix used for regional grouping.
package postcode

import (
	"strings"
)

// Normalize trims, uppercases and strips all internal whitespace from a raw
// postal code, returning the canonical cache key. ok is false for empty or
// all-whitespace input; callers drop such rows. Normalize never fails on
// malformed input.
func Normalize(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if r == ' ' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	clean := b.String()
	if clean == "" {
		return "", false
	}
	return clean, true
}

// Display reinserts the single space before the 3-character inward code so a
// canonical key reads like a postal code again ("BR13AB" -> "BR1 3AB"). Keys
// too short to carry an inward code are returned unchanged.
func Display(canonical string) string {
	if len(canonical) <= 3 {
		return canonical
	}
	return canonical[:len(canonical)-3] + " " + canonical[len(canonical)-3:]
}

// Area returns the longest leading run of letters before the first digit:
// "BR13AB" -> "BR", "EC1A1BB" -> "EC", "W1A0AX" -> "W". Malformed input
// degrades to "".
func Area(canonical string) string {
	for i, r := range canonical {
		if r < 'A' || r > 'Z' {
			return canonical[:i]
		}
	}
	return canonical
}

// Outward returns the outward half of a canonical key ("DA113AB" -> "DA11").
// The inward code is always the trailing digit plus two letters; keys too
// short to carry one yield the whole key.
func Outward(canonical string) string {
	if len(canonical) <= 3 {
		return canonical
	}
	return canonical[:len(canonical)-3]
}
