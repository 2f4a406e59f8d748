// Package joincode generates and normalizes the short codes students type to join a quiz.
package joincode

import (
	"math/rand/v2"
	"strings"
)

// Alphabet excludes 0, O, 1 and I so codes can be read aloud and typed without ambiguity.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultLength = 6

// Generator draws join codes from Alphabet. The zero value uses the global math/rand source.
type Generator struct {
	// IntN returns a uniform int in [0, n). Tests may replace it for deterministic codes.
	IntN func(n int) int
}

// Generate returns a code of the given length, or DefaultLength when length <= 0.
// Codes are not unique; collisions are resolved by the store's unique constraint.
func (g Generator) Generate(length int) string {
	if length <= 0 {
		length = DefaultLength
	}

	intn := g.IntN
	if intn == nil {
		intn = rand.IntN
	}

	var b strings.Builder
	b.Grow(length)
	for range length {
		b.WriteByte(Alphabet[intn(len(Alphabet))])
	}

	return b.String()
}

// Generate returns a random code using the default generator.
func Generate(length int) string {
	return Generator{}.Generate(length)
}

// Normalize makes codes case and whitespace insensitive. It must be applied before any comparison or lookup.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code, once normalized, has the given length and only alphabet characters.
// A length <= 0 means DefaultLength.
func Valid(code string, length int) bool {
	if length <= 0 {
		length = DefaultLength
	}

	code = Normalize(code)
	if len(code) != length {
		return false
	}

	for _, r := range code {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}

	return true
}
