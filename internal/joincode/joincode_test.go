package joincode_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizroom/internal/joincode"
)

func TestGenerate(t *testing.T) {
	for range 1000 {
		c := joincode.Generate(6)
		require.Len(t, c, 6)
		for _, r := range c {
			require.Truef(t, strings.ContainsRune(joincode.Alphabet, r), "unexpected character %q in %q", r, c)
		}
	}
}

func TestGenerate_DefaultLength(t *testing.T) {
	assert.Len(t, joincode.Generate(0), joincode.DefaultLength)
	assert.Len(t, joincode.Generate(-3), joincode.DefaultLength)
	assert.Len(t, joincode.Generate(8), 8)
}

func TestGenerator_Deterministic(t *testing.T) {
	i := 0
	g := joincode.Generator{IntN: func(n int) int {
		i++
		return (i - 1) % n
	}}

	assert.Equal(t, "ABCDEF", g.Generate(6))
}

func TestAlphabet(t *testing.T) {
	for _, r := range "0O1I" {
		assert.NotContains(t, joincode.Alphabet, string(r))
	}
	assert.Equal(t, strings.ToUpper(joincode.Alphabet), joincode.Alphabet)
}

func TestNormalize(t *testing.T) {
	tests := map[string]struct {
		in   string
		want string
	}{
		"already normalized":     {in: "AB12CD", want: "AB12CD"},
		"lower case":             {in: "ab12cd", want: "AB12CD"},
		"surrounding whitespace": {in: " ab12cd ", want: "AB12CD"},
		"tabs and newlines":      {in: "\tXy3Zq9\n", want: "XY3ZQ9"},
		"empty stays empty":      {in: "   ", want: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := joincode.Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, joincode.Normalize(got), "normalize should be idempotent")
		})
	}

	assert.Equal(t, joincode.Normalize("AB12CD"), joincode.Normalize(" ab12cd "))
}

func TestValid(t *testing.T) {
	assert.True(t, joincode.Valid(" abcd23 ", 0))
	assert.True(t, joincode.Valid(joincode.Generate(6), 6))
	assert.False(t, joincode.Valid("ABCD2", 6), "too short")
	assert.False(t, joincode.Valid("ABCD10", 6), "ambiguous characters")
	assert.False(t, joincode.Valid("ABCDEFG", 6), "too long")
}

func TestValid_ConfiguredLength(t *testing.T) {
	tests := map[string]struct {
		length int
	}{
		"short": {length: 4},
		"long":  {length: 8},
		"max":   {length: 12},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			code := joincode.Generate(tt.length)
			assert.True(t, joincode.Valid(code, tt.length), code)
			assert.True(t, joincode.Valid(" "+strings.ToLower(code)+" ", tt.length), code)
			assert.False(t, joincode.Valid(code, tt.length+1), code)
			assert.False(t, joincode.Valid(code[1:], tt.length), code)
		})
	}
}
