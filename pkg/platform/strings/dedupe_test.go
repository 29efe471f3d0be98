package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "trims whitespace", input: []string{"  a  ", "b  "}, expected: []string{"a", "b"}},
		{name: "removes duplicates preserving order", input: []string{"b", "a", "b"}, expected: []string{"b", "a"}},
		{name: "drops blanks", input: []string{"", "  ", "x"}, expected: []string{"x"}},
		{name: "keeps case", input: []string{"Fuel", "FUEL"}, expected: []string{"Fuel", "FUEL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimUpper(t *testing.T) {
	got := DedupeAndTrimUpper([]string{" residential", "Fuel", "RESIDENTIAL", ""})
	assert.Equal(t, []string{"RESIDENTIAL", "FUEL"}, got)
}
