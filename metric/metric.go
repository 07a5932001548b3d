// Package metric provides the vector math shared by the index and the
// analysis operations: cosine similarity, magnitudes, normalization and
// centroid computation.
package metric

import (
	"errors"
	"math"
)

// ErrSizeMismatch is returned when two vectors of different lengths are compared.
var ErrSizeMismatch = errors.New("vector sizes do not match")

// Dot calculates the dot product of two float32 slices.
// Assumes vectors are the same length (caller's responsibility).
func Dot(v1, v2 []float32) float32 {
	var sum float32
	for i := range v1 {
		sum += v1[i] * v2[i]
	}
	return sum
}

// Magnitude calculates the magnitude (length) of a float32 slice.
func Magnitude(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// CosineSimilarity calculates the cosine similarity between two float32 slices.
// A zero-magnitude vector has similarity 0 to everything, never NaN.
func CosineSimilarity(v1, v2 []float32) (float32, error) {
	if len(v1) != len(v2) {
		return 0, ErrSizeMismatch
	}

	dotProduct := Dot(v1, v2)
	magnitudeA := Magnitude(v1)
	magnitudeB := Magnitude(v2)

	// Avoid division by zero
	if magnitudeA == 0 || magnitudeB == 0 {
		return 0, nil
	}

	return dotProduct / (magnitudeA * magnitudeB), nil
}

// Score converts cosine similarity into a [0,1] search score by flooring
// negative similarities at 0.
func Score(v1, v2 []float32) (float32, error) {
	sim, err := CosineSimilarity(v1, v2)
	if err != nil {
		return 0, err
	}
	if sim < 0 {
		return 0, nil
	}
	if sim > 1 {
		// Guard against floating-point drift on identical vectors.
		return 1, nil
	}
	return sim, nil
}

// SquaredL2 calculates the squared L2 distance between two float32 slices.
func SquaredL2(v1, v2 []float32) (float32, error) {
	if len(v1) != len(v2) {
		return 0, ErrSizeMismatch
	}

	var sum float32
	for i := range v1 {
		d := v1[i] - v2[i]
		sum += d * d
	}
	return sum, nil
}

// NormalizeCopy returns an L2-normalized copy of v.
// ok is false when v has zero magnitude; the returned slice is nil in that case.
func NormalizeCopy(v []float32) ([]float32, bool) {
	mag := Magnitude(v)
	if mag == 0 {
		return nil, false
	}
	out := make([]float32, len(v))
	inv := 1 / mag
	for i, x := range v {
		out[i] = x * inv
	}
	return out, true
}

// Centroid computes the element-wise mean of the given vectors.
// All vectors must share the same length. Returns nil for an empty input.
func Centroid(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, nil
	}

	dim := len(vectors[0])
	sum := make([]float32, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, ErrSizeMismatch
		}
		for i, x := range v {
			sum[i] += x
		}
	}

	inv := 1 / float32(len(vectors))
	for i := range sum {
		sum[i] *= inv
	}
	return sum, nil
}
