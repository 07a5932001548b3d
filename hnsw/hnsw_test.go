package hnsw

import (
	"bytes"
	"encoding/gob"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(t *testing.T, dim int) *HNSW {
	t.Helper()
	h, err := New(func(o *Options) {
		o.Dimension = dim
	})
	require.NoError(t, err)
	return h
}

func TestHNSW(t *testing.T) {
	t.Run("InsertAndSearch", func(t *testing.T) {
		h := newTestGraph(t, 3)

		require.NoError(t, h.Insert(0, []float32{1, 0, 0}))
		require.NoError(t, h.Insert(1, []float32{0, 1, 0}))
		require.NoError(t, h.Insert(2, []float32{0.9, 0.1, 0}))

		results, err := h.KNNSearch([]float32{1, 0, 0}, 2, 0, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, uint32(0), results[0].ID)
		assert.Equal(t, uint32(2), results[1].ID)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		h := newTestGraph(t, 2)

		require.NoError(t, h.Insert(7, []float32{1, 0}))
		assert.Error(t, h.Insert(7, []float32{0, 1}))
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		h := newTestGraph(t, 3)

		assert.Error(t, h.Insert(0, []float32{1, 0}))

		require.NoError(t, h.Insert(0, []float32{1, 0, 0}))
		_, err := h.KNNSearch([]float32{1, 0}, 1, 0, nil)
		assert.Error(t, err)
	})

	t.Run("EmptyGraph", func(t *testing.T) {
		h := newTestGraph(t, 2)

		results, err := h.KNNSearch([]float32{1, 0}, 5, 0, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Filter", func(t *testing.T) {
		h := newTestGraph(t, 2)

		require.NoError(t, h.Insert(0, []float32{1, 0}))
		require.NoError(t, h.Insert(1, []float32{0.99, 0.01}))
		require.NoError(t, h.Insert(2, []float32{0, 1}))

		results, err := h.KNNSearch([]float32{1, 0}, 3, 0, func(id uint32) bool {
			return id != 0
		})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, r := range results {
			assert.NotEqual(t, uint32(0), r.ID)
		}
		assert.Equal(t, uint32(1), results[0].ID)
	})

	t.Run("RecallOnLargerSet", func(t *testing.T) {
		const (
			dim = 8
			n   = 500
		)
		h := newTestGraph(t, dim)
		rng := rand.New(rand.NewSource(42))

		vectors := make([][]float32, n)
		for i := range vectors {
			v := make([]float32, dim)
			for j := range v {
				v[j] = rng.Float32()
			}
			vectors[i] = v
			require.NoError(t, h.Insert(uint32(i), v))
		}

		// Exact nearest neighbor by brute force.
		query := vectors[123]
		best := uint32(0)
		bestDist := squaredL2(query, vectors[0])
		for i := 1; i < n; i++ {
			if d := squaredL2(query, vectors[i]); d < bestDist {
				best = uint32(i)
				bestDist = d
			}
		}

		results, err := h.KNNSearch(query, 1, 0, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, best, results[0].ID)
	})
}

func TestHNSWGob(t *testing.T) {
	h := newTestGraph(t, 3)
	require.NoError(t, h.Insert(0, []float32{1, 0, 0}))
	require.NoError(t, h.Insert(1, []float32{0, 1, 0}))
	require.NoError(t, h.Insert(2, []float32{0, 0, 1}))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(h))

	loaded := &HNSW{}
	require.NoError(t, gob.NewDecoder(&buf).Decode(loaded))
	assert.Equal(t, 3, loaded.Len())

	results, err := loaded.KNNSearch([]float32{0, 1, 0}, 1, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(1), results[0].ID)
}
