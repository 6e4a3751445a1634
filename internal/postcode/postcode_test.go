package postcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalizesCaseAndWhitespace(t *testing.T) {
	variants := []string{"BR1 3AB", "br1 3ab", "  BR1 3AB  ", "Br1\t3aB", "BR13AB"}

	first, ok := Normalize(variants[0])
	require.True(t, ok)
	require.Equal(t, "BR13AB", first)

	for _, v := range variants[1:] {
		got, ok := Normalize(v)
		require.True(t, ok, "input %q", v)
		assert.Equal(t, first, got, "input %q", v)
	}
}

func TestNormalizeRejectsEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t \t"} {
		_, ok := Normalize(raw)
		assert.False(t, ok, "input %q", raw)
	}
}

func TestArea(t *testing.T) {
	tests := []struct {
		canonical string
		want      string
	}{
		{"BR13AB", "BR"},
		{"EC1A1BB", "EC"},
		{"W1A0AX", "W"},
		{"G21QQ", "G"},
		{"123", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Area(tt.canonical), "input %q", tt.canonical)
	}
}

func TestDisplayRoundTrip(t *testing.T) {
	canonical, ok := Normalize("br1 3ab")
	require.True(t, ok)
	assert.Equal(t, "BR1 3AB", Display(canonical))

	// Short keys pass through untouched.
	assert.Equal(t, "BR", Display("BR"))
}

func TestOutward(t *testing.T) {
	assert.Equal(t, "BR1", Outward("BR13AB"))
	assert.Equal(t, "DA11", Outward("DA113AB"))
	assert.Equal(t, "EC1A", Outward("EC1A1BB"))
}

func TestRegion(t *testing.T) {
	assert.Equal(t, "South East", Region("BR"))
	assert.Equal(t, "London", Region("SE"))
	assert.Equal(t, "Scotland", Region("EH"))
	assert.Equal(t, "Unknown", Region("ZZ"))
	// Areas listed in more than one group resolve deterministically.
	assert.Equal(t, "East Midlands", Region("S"))
	assert.Equal(t, "East Midlands", Region("SK"))
}

func TestCatchment(t *testing.T) {
	east, ok := Normalize("DA11 7HQ")
	require.True(t, ok)
	assert.Equal(t, "East", Catchment(east))

	west, ok := Normalize("DA1 1AA")
	require.True(t, ok)
	assert.Equal(t, "West", Catchment(west))

	outside, ok := Normalize("BR1 3AB")
	require.True(t, ok)
	assert.Equal(t, "", Catchment(outside))
}
