package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("Symmetric", func(t *testing.T) {
		a := []float32{0.3, -1.2, 4.5, 0.01}
		b := []float32{2.2, 0.4, -0.7, 1.9}

		ab, err := CosineSimilarity(a, b)
		require.NoError(t, err)
		ba, err := CosineSimilarity(b, a)
		require.NoError(t, err)

		assert.InDelta(t, ab, ba, 1e-6)
	})

	t.Run("SelfSimilarity", func(t *testing.T) {
		v := []float32{1.5, 2.5, -3.5}

		sim, err := CosineSimilarity(v, v)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-6)
	})

	t.Run("ZeroVector", func(t *testing.T) {
		v := []float32{1, 2, 3}
		zero := []float32{0, 0, 0}

		sim, err := CosineSimilarity(v, zero)
		require.NoError(t, err)
		assert.Equal(t, float32(0), sim)
		assert.False(t, math.IsNaN(float64(sim)))
	})

	t.Run("Orthogonal", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, sim, 1e-6)
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})
}

func TestScore(t *testing.T) {
	t.Run("FloorsNegativeSimilarity", func(t *testing.T) {
		score, err := Score([]float32{1, 0}, []float32{-1, 0})
		require.NoError(t, err)
		assert.Equal(t, float32(0), score)
	})

	t.Run("ClampsToOne", func(t *testing.T) {
		score, err := Score([]float32{0.1, 0.2, 0.3}, []float32{0.1, 0.2, 0.3})
		require.NoError(t, err)
		assert.LessOrEqual(t, score, float32(1))
		assert.InDelta(t, 1.0, score, 1e-6)
	})
}

func TestCentroid(t *testing.T) {
	t.Run("Mean", func(t *testing.T) {
		c, err := Centroid([][]float32{
			{1, 0, 3},
			{3, 2, 1},
		})
		require.NoError(t, err)
		assert.Equal(t, []float32{2, 1, 2}, c)
	})

	t.Run("Empty", func(t *testing.T) {
		c, err := Centroid(nil)
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		_, err := Centroid([][]float32{{1, 2}, {1, 2, 3}})
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})
}

func TestNormalizeCopy(t *testing.T) {
	t.Run("UnitLength", func(t *testing.T) {
		n, ok := NormalizeCopy([]float32{3, 4})
		require.True(t, ok)
		assert.InDelta(t, 1.0, Magnitude(n), 1e-6)
	})

	t.Run("ZeroVector", func(t *testing.T) {
		n, ok := NormalizeCopy([]float32{0, 0})
		assert.False(t, ok)
		assert.Nil(t, n)
	})
}
