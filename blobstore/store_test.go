package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	ctx := context.Background()

	stores := map[string]func(t *testing.T) Store{
		"Memory": func(t *testing.T) Store { return NewMemoryStore() },
		"Local":  func(t *testing.T) Store { return NewLocalStore(t.TempDir()) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("PutGetRoundTrip", func(t *testing.T) {
				s := newStore(t)

				require.NoError(t, s.Put(ctx, "snapshots/1.snap", []byte("one")))
				data, err := s.Get(ctx, "snapshots/1.snap")
				require.NoError(t, err)
				assert.Equal(t, []byte("one"), data)
			})

			t.Run("PutOverwrites", func(t *testing.T) {
				s := newStore(t)

				require.NoError(t, s.Put(ctx, CurrentName, []byte("a")))
				require.NoError(t, s.Put(ctx, CurrentName, []byte("b")))
				data, err := s.Get(ctx, CurrentName)
				require.NoError(t, err)
				assert.Equal(t, []byte("b"), data)
			})

			t.Run("GetMissing", func(t *testing.T) {
				s := newStore(t)

				_, err := s.Get(ctx, "nope")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("DeleteMissingIsNoop", func(t *testing.T) {
				s := newStore(t)

				assert.NoError(t, s.Delete(ctx, "nope"))
			})

			t.Run("ListByPrefix", func(t *testing.T) {
				s := newStore(t)

				require.NoError(t, s.Put(ctx, "snapshots/2.snap", []byte("b")))
				require.NoError(t, s.Put(ctx, "snapshots/1.snap", []byte("a")))
				require.NoError(t, s.Put(ctx, CurrentName, []byte("snapshots/2.snap")))

				names, err := s.List(ctx, "snapshots/")
				require.NoError(t, err)
				assert.Equal(t, []string{"snapshots/1.snap", "snapshots/2.snap"}, names)
			})
		})
	}
}
