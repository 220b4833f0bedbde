package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSequence(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"brace string", "{a,b,c}", []string{"a", "b", "c"}},
		{"string slice", []string{"x"}, []string{"x"}},
		{"empty string", "", []string{}},
		{"empty braces", "{}", []string{}},
		{"empty segments dropped", "{a,,b,}", []string{"a", "b"}},
		{"no braces", "a,b", []string{}},
		{"only opening brace", "{a,b", []string{}},
		{"lone brace", "{", []string{}},
		{"interface slice", []any{"a", 1, "b", nil}, []string{"a", "b"}},
		{"nil", nil, []string{}},
		{"nil string slice", []string(nil), []string{}},
		{"number", 12, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToSequence(tt.in))
		})
	}
}

func TestToSequence_SliceReturnedAsIs(t *testing.T) {
	in := []string{"a", "", "b"}
	assert.Equal(t, in, ToSequence(in))
}

func TestToSequence_RoundTrip(t *testing.T) {
	cases := [][]string{
		{},
		{"a"},
		{"organized", "persistent", "asks good questions"},
		{"Ünïcode", "with space", "x"},
	}
	for _, s := range cases {
		assert.Equal(t, s, ToSequence(FormatBraceArray(s)))
	}
}

func TestFormatBraceArray(t *testing.T) {
	assert.Equal(t, "{a,b}", FormatBraceArray([]string{"a", "b"}))
	assert.Equal(t, "{}", FormatBraceArray(nil))
}
