package textsim

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Cosine returns the cosine similarity of a and b, i.e. 1 - cosine distance.
// It returns 0 when the lengths differ, either vector is empty, or either
// has zero magnitude.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	normA := math.Sqrt(float64(vek32.Dot(a, a)))
	normB := math.Sqrt(float64(vek32.Dot(b, b)))
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := float64(vek32.Dot(a, b)) / (normA * normB)

	// Float error can push identical vectors a hair past 1.
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}
