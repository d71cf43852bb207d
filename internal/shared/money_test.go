package shared

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBRL(t *testing.T) {
	out := FormatBRL(1234.56)
	assert.True(t, strings.HasPrefix(out, "R$"), out)
	assert.Contains(t, out, ",56")
	// Round-trips through the pt-BR parser.
	assert.InDelta(t, 1234.56, ParseBRL(out), 0.001)

	assert.InDelta(t, 0.0, ParseBRL(FormatBRL(0)), 0.001)
	assert.InDelta(t, 1000000.00, ParseBRL(FormatBRL(1000000)), 0.001)
}

func TestParseBRL(t *testing.T) {
	cases := map[string]float64{
		"1.234,56":    1234.56,
		"R$ 1.234,56": 1234.56,
		"R$1.234,56":  1234.56,
		"  59,90  ":   59.90,
		"100":         100,
		"0,05":        0.05,
		"":            0,
		"abc":         0,
		"R$":          0,
	}
	for in, want := range cases {
		assert.InDelta(t, want, ParseBRL(in), 0.0001, in)
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.234))
	assert.Equal(t, 1.24, Round2(1.236))
	assert.Equal(t, -1.23, Round2(-1.234))
	assert.Equal(t, 0.1, Round2(0.1))
	assert.Equal(t, 154.70, Round2(59.90*2+34.90))
}