package textsim

import (
	"strings"
	"unicode"
)

// Trigrams returns the set of padded character trigrams of s.
//
// s is lower-cased and split into words on any rune that is not a letter or
// digit. Each word is padded with two leading blanks and one trailing blank
// before its 3-rune windows are collected.
func Trigrams(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	grams := make(map[string]struct{})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			grams[string(padded[i:i+3])] = struct{}{}
		}
	}
	return grams
}

// Similarity returns the trigram overlap ratio |A∩B| / |A∪B| of a and b.
// It is symmetric, lies in [0,1], is 1 for texts with identical trigram sets
// and 0 when they share none (or when either has no trigrams).
func Similarity(a, b string) float64 {
	ga := Trigrams(a)
	gb := Trigrams(b)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}

	shared := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			shared++
		}
	}
	union := len(ga) + len(gb) - shared
	return float64(shared) / float64(union)
}
