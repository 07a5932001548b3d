package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestWAL(t *testing.T, dir string) *WAL {
	t.Helper()
	w, err := Open(func(o *Options) {
		o.Path = dir
	})
	require.NoError(t, err)
	return w
}

func TestWAL(t *testing.T) {
	t.Run("AppendAndReplay", func(t *testing.T) {
		dir := t.TempDir()
		w := openTestWAL(t, dir)

		entries := []Entry{
			{Op: OpProvision, Dimension: 4},
			{
				Op:        OpInsert,
				ID:        1,
				DatasetID: "ds-1",
				ImageID:   "img-1",
				ClassName: "wood",
				Vector:    []float32{1, 0, 0, 0},
				Metadata:  map[string]any{"width": 640, "format": "jpeg"},
			},
			{Op: OpDelete, DatasetID: "ds-1", ImageID: "img-1"},
		}
		for _, e := range entries {
			require.NoError(t, w.Append(e))
		}
		require.NoError(t, w.Close())

		w = openTestWAL(t, dir)
		defer w.Close()

		var replayed []Entry
		require.NoError(t, w.Replay(func(e Entry) error {
			replayed = append(replayed, e)
			return nil
		}))

		require.Len(t, replayed, 3)
		assert.Equal(t, OpProvision, replayed[0].Op)
		assert.Equal(t, 4, replayed[0].Dimension)
		assert.Equal(t, "img-1", replayed[1].ImageID)
		assert.Equal(t, []float32{1, 0, 0, 0}, replayed[1].Vector)
		assert.Equal(t, 640, replayed[1].Metadata["width"])
		assert.Equal(t, OpDelete, replayed[2].Op)
	})

	t.Run("AppendAfterReplay", func(t *testing.T) {
		dir := t.TempDir()
		w := openTestWAL(t, dir)
		require.NoError(t, w.Append(Entry{Op: OpProvision, Dimension: 2}))
		require.NoError(t, w.Close())

		w = openTestWAL(t, dir)
		count := 0
		require.NoError(t, w.Replay(func(Entry) error { count++; return nil }))
		require.Equal(t, 1, count)

		require.NoError(t, w.Append(Entry{Op: OpInsert, ID: 1, ImageID: "a", Vector: []float32{1, 0}}))
		require.NoError(t, w.Close())

		w = openTestWAL(t, dir)
		defer w.Close()
		count = 0
		require.NoError(t, w.Replay(func(Entry) error { count++; return nil }))
		assert.Equal(t, 2, count)
	})

	t.Run("TruncatedTailIsIgnored", func(t *testing.T) {
		dir := t.TempDir()
		w := openTestWAL(t, dir)
		require.NoError(t, w.Append(Entry{Op: OpProvision, Dimension: 2}))
		require.NoError(t, w.Append(Entry{Op: OpInsert, ID: 1, ImageID: "a", Vector: []float32{1, 0}}))
		require.NoError(t, w.Close())

		// Chop a few bytes off the last frame to simulate a crash mid-write.
		path := filepath.Join(dir, fileName)
		st, err := os.Stat(path)
		require.NoError(t, err)
		require.NoError(t, os.Truncate(path, st.Size()-3))

		w = openTestWAL(t, dir)
		defer w.Close()
		var ops []Op
		require.NoError(t, w.Replay(func(e Entry) error {
			ops = append(ops, e.Op)
			return nil
		}))
		assert.Equal(t, []Op{OpProvision}, ops)
	})

	t.Run("Truncate", func(t *testing.T) {
		dir := t.TempDir()
		w := openTestWAL(t, dir)
		defer w.Close()

		require.NoError(t, w.Append(Entry{Op: OpProvision, Dimension: 2}))
		require.NoError(t, w.Truncate())

		count := 0
		require.NoError(t, w.Replay(func(Entry) error { count++; return nil }))
		assert.Zero(t, count)
	})
}
