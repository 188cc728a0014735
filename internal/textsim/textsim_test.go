package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims and folds", "  Acme Corp \n", "acme corp"},
		{"already normal", "acme", "acme"},
		{"whitespace only", " \t\n ", ""},
		{"empty", "", ""},
		{"non-ascii", "ÉCOLE Normale", "école normale"},
		{"inner whitespace kept", "Acme   Corp", "acme   corp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestTrigrams_PadsEachWord(t *testing.T) {
	got := Trigrams("Ac")
	assert.Len(t, got, 3)
	assert.Contains(t, got, "  a")
	assert.Contains(t, got, " ac")
	assert.Contains(t, got, "ac ")
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "acme", "acme", 1.0},
		{"disjoint", "acme", "zzz", 0.0},
		{"punctuation separates words", "acme corp", "acme-corp", 1.0},
		{"case insensitive", "ACME", "acme", 1.0},
		{"partial overlap", "acme corp", "acme corporation", 0.5},
		{"short prefix", "ac", "acme-corp", 2.0 / 11.0},
		{"empty", "", "acme", 0.0},
		{"both empty", "", "", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilarity_IsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"acme corp", "acme corporation"},
		{"jon smith", "john smyth"},
		{"ac", "acme-corp"},
	}
	for _, p := range pairs {
		assert.InDelta(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]), 1e-12, "%q vs %q", p[0], p[1])
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"diagonal", []float32{1, 1}, []float32{1, 0}, 0.7071067811865476},
		{"scaled", []float32{2, 4}, []float32{1, 2}, 1.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
		{"empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-6)
		})
	}
}
