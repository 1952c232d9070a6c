package core

import (
	"fmt"
	"math"
)

// NormalizeVector scales v to unit length and returns a new slice.
// A zero vector normalizes to a zero vector of the same length.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

// DotProduct returns the inner product of two equal-length vectors.
// For unit vectors this is their cosine similarity.
func DotProduct(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dimension %d vs %d", ErrEmbeddingMismatch, len(a), len(b))
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// UniformDimension returns the shared length of vectors.
// Empty vectors and mixed lengths are reported as ErrEmbeddingMismatch.
func UniformDimension(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrEmbeddingMismatch, i, len(v), dim)
		}
	}
	return dim, nil
}
