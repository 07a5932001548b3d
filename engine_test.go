package imagesift

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioform/imagesift/blobstore"
	"github.com/visioform/imagesift/catalog"
	"github.com/visioform/imagesift/embedder"
)

// testVectors maps image ids to fixed 4-dim embeddings. Images without an
// entry make the generator fail, exercising per-image failure isolation.
var testVectors = map[string][]float32{
	"cat-1":    {1, 0, 0, 0},
	"cat-2":    {1, 0.1, 0, 0}, // near-duplicate of cat-1 (~0.995)
	"cat-odd":  {0, 0, 0, 1},   // far from the cats centroid
	"dog-1":    {0, 1, 0, 0},
	"dog-2":    {0, 1, 0.5, 0}, // similar but not duplicate (~0.894)
	"cat-twin": {1, 0.1, 0, 0}, // duplicate of cat-2, filed under dogs

	"a-1": {1, 0, 0, 0},
	"a-2": {0.9, 0.1, 0, 0},
	"b-1": {0, 0, 1, 0},
	"b-2": {0, 0.1, 0.9, 0},
}

func newTestGenerator() embedder.Generator {
	return embedder.GeneratorFunc{
		Dim: 4,
		Fn: func(ctx context.Context, imageRef string) ([]float32, error) {
			v, ok := testVectors[imageRef]
			if !ok {
				return nil, fmt.Errorf("no embedding for %q", imageRef)
			}
			return v, nil
		},
	}
}

// newPetsCatalog builds the "pets" dataset: three cats (one odd) and two
// dogs plus a duplicate of a cat misfiled under dogs.
func newPetsCatalog() *catalog.MemoryCatalog {
	cat := catalog.NewMemoryCatalog()
	cat.AddClass("pets", catalog.Class{ID: "c1", Name: "cats"})
	cat.AddClass("pets", catalog.Class{ID: "c2", Name: "dogs"})
	for _, id := range []string{"cat-1", "cat-2", "cat-odd"} {
		cat.AddImage("pets", "c1", catalog.Image{ID: id, Width: 640, Height: 480, Format: "jpeg", Size: 1024})
	}
	for _, id := range []string{"dog-1", "dog-2", "cat-twin"} {
		cat.AddImage("pets", "c2", catalog.Image{ID: id, Width: 640, Height: 480, Format: "jpeg", Size: 2048})
	}
	return cat
}

func newTestEngine(t *testing.T, optFns ...Option) *Engine {
	t.Helper()
	eng, err := New(newPetsCatalog(), newTestGenerator(), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// ingestPets runs a full ingestion of the pets dataset. Single-flight
// embedding keeps insertion order equal to catalog order, so tests can rely
// on insertion-order tie-breaks.
func ingestPets(t *testing.T, eng *Engine) {
	t.Helper()
	created, err := eng.GenerateEmbeddings(context.Background(), "pets", func(o *IngestOptions) {
		o.Concurrency = 1
	})
	require.NoError(t, err)
	require.Equal(t, 6, created)
}

func TestEnsureIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("Idempotent", func(t *testing.T) {
		eng := newTestEngine(t)
		require.NoError(t, eng.EnsureIndex(ctx))
		require.NoError(t, eng.EnsureIndex(ctx))
		assert.Equal(t, 4, eng.Index().Dimension())
	})

	t.Run("ConcurrentFirstInit", func(t *testing.T) {
		eng := newTestEngine(t)

		var wg sync.WaitGroup
		errs := make([]error, 16)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = eng.EnsureIndex(ctx)
			}()
		}
		wg.Wait()

		for _, err := range errs {
			assert.NoError(t, err)
		}
	})
}

func TestGenerateEmbeddings(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesAll", func(t *testing.T) {
		eng := newTestEngine(t)

		created, err := eng.GenerateEmbeddings(ctx, "pets")
		require.NoError(t, err)
		assert.Equal(t, 6, created)
		assert.Equal(t, 6, eng.Index().Len())
	})

	t.Run("IdempotentRerun", func(t *testing.T) {
		eng := newTestEngine(t)
		ingestPets(t, eng)

		created, err := eng.GenerateEmbeddings(ctx, "pets")
		require.NoError(t, err)
		assert.Zero(t, created)
		assert.Equal(t, 6, eng.Index().Len())
	})

	t.Run("ForceRegenerates", func(t *testing.T) {
		eng := newTestEngine(t)
		ingestPets(t, eng)

		created, err := eng.GenerateEmbeddings(ctx, "pets", func(o *IngestOptions) {
			o.Force = true
		})
		require.NoError(t, err)
		assert.Equal(t, 6, created)
		// Replaced, not duplicated.
		assert.Equal(t, 6, eng.Index().Len())
	})

	t.Run("PerImageFailureIsolated", func(t *testing.T) {
		cat := newPetsCatalog()
		cat.AddImage("pets", "c1", catalog.Image{ID: "broken"})

		metrics := &BasicMetricsCollector{}
		eng, err := New(cat, newTestGenerator(), WithMetricsCollector(metrics))
		require.NoError(t, err)
		defer eng.Close()

		created, err := eng.GenerateEmbeddings(ctx, "pets")
		require.NoError(t, err)
		assert.Equal(t, 6, created)
		assert.Equal(t, int64(1), metrics.GetStats().IngestFailed)

		// The failed image stays eligible: fixing the generator makes the
		// next run pick it up.
		fixed := embedder.GeneratorFunc{
			Dim: 4,
			Fn: func(ctx context.Context, imageRef string) ([]float32, error) {
				if imageRef == "broken" {
					return []float32{0, 0, 1, 1}, nil
				}
				v, ok := testVectors[imageRef]
				if !ok {
					return nil, fmt.Errorf("no embedding for %q", imageRef)
				}
				return v, nil
			},
		}
		eng.embedder = fixed
		created, err = eng.GenerateEmbeddings(ctx, "pets")
		require.NoError(t, err)
		assert.Equal(t, 1, created)
	})

	t.Run("UnknownDataset", func(t *testing.T) {
		eng := newTestEngine(t)

		_, err := eng.GenerateEmbeddings(ctx, "nope")
		assert.Error(t, err)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		eng := newTestEngine(t)
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := eng.GenerateEmbeddings(canceled, "pets")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRemoveImage(t *testing.T) {
	ctx := context.Background()

	t.Run("HidesFromAllReads", func(t *testing.T) {
		eng := newTestEngine(t)
		ingestPets(t, eng)

		removed, err := eng.RemoveImage(ctx, "pets", "cat-2")
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Equal(t, 5, eng.Index().Len())

		matches, err := eng.FindSimilar(ctx, []float32{1, 0, 0, 0}, func(o *SimilarOptions) {
			o.Threshold = 0.9
		})
		require.NoError(t, err)
		for _, m := range matches {
			assert.NotEqual(t, "cat-2", m.ImageID)
		}
	})

	t.Run("UnknownImage", func(t *testing.T) {
		eng := newTestEngine(t)
		ingestPets(t, eng)

		removed, err := eng.RemoveImage(ctx, "pets", "nope")
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		eng := newTestEngine(t)
		ingestPets(t, eng)

		store := blobstore.NewMemoryStore()
		name, err := eng.Backup(ctx, store)
		require.NoError(t, err)
		assert.Contains(t, name, "snapshots/")

		restored := newTestEngine(t)
		require.NoError(t, restored.Restore(ctx, store))
		assert.Equal(t, 6, restored.Index().Len())

		matches, err := restored.FindSimilar(ctx, []float32{1, 0, 0, 0}, func(o *SimilarOptions) {
			o.Threshold = 0.9
		})
		require.NoError(t, err)
		require.NotEmpty(t, matches)
		assert.Equal(t, "cat-1", matches[0].ImageID)
	})

	t.Run("RestoreWithoutBackup", func(t *testing.T) {
		eng := newTestEngine(t)

		err := eng.Restore(ctx, blobstore.NewMemoryStore())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("CurrentFollowsLatest", func(t *testing.T) {
		eng := newTestEngine(t)
		ingestPets(t, eng)
		store := blobstore.NewMemoryStore()

		_, err := eng.Backup(ctx, store)
		require.NoError(t, err)

		_, err = eng.RemoveImage(ctx, "pets", "cat-odd")
		require.NoError(t, err)
		_, err = eng.Backup(ctx, store)
		require.NoError(t, err)

		restored := newTestEngine(t)
		require.NoError(t, restored.Restore(ctx, store))
		assert.Equal(t, 5, restored.Index().Len())
	})
}

func TestSnapshotFile(t *testing.T) {
	eng := newTestEngine(t)
	ingestPets(t, eng)

	path := filepath.Join(t.TempDir(), "index.snap")
	require.NoError(t, eng.SaveToFile(path))

	restored := newTestEngine(t)
	require.NoError(t, restored.LoadFromFile(path))
	assert.Equal(t, 6, restored.Index().Len())
}

func TestWALRecovery(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	eng, err := New(newPetsCatalog(), newTestGenerator(), WithWAL(dir))
	require.NoError(t, err)
	ingestPets(t, eng)
	_, err = eng.RemoveImage(ctx, "pets", "cat-odd")
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	reopened, err := New(newPetsCatalog(), newTestGenerator(), WithWAL(dir))
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 5, reopened.Index().Len())
	matches, err := reopened.FindSimilar(ctx, []float32{1, 0, 0, 0}, func(o *SimilarOptions) {
		o.Threshold = 0.9
	})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "cat-1", matches[0].ImageID)
}

func TestErrorTranslation(t *testing.T) {
	ctx := context.Background()

	t.Run("DimensionMismatch", func(t *testing.T) {
		eng := newTestEngine(t)
		ingestPets(t, eng)

		_, err := eng.FindSimilar(ctx, []float32{1, 0})
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 4, dm.Expected)
		assert.Equal(t, 2, dm.Actual)
	})

	t.Run("NotReady", func(t *testing.T) {
		eng := newTestEngine(t)

		_, err := eng.FindSimilar(ctx, []float32{1, 0, 0, 0})
		assert.ErrorIs(t, err, ErrIndexNotReady)
	})

	t.Run("EmptyQueryVector", func(t *testing.T) {
		eng := newTestEngine(t)
		ingestPets(t, eng)

		_, err := eng.FindSimilar(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyQueryVector)
	})
}

func TestMetricsCollection(t *testing.T) {
	ctx := context.Background()

	metrics := &BasicMetricsCollector{}
	eng, err := New(newPetsCatalog(), newTestGenerator(), WithMetricsCollector(metrics))
	require.NoError(t, err)
	defer eng.Close()

	ingestPets(t, eng)
	_, err = eng.FindSimilar(ctx, []float32{1, 0, 0, 0})
	require.NoError(t, err)
	_, err = eng.FindDuplicates(ctx, "pets")
	require.NoError(t, err)
	_, err = eng.RemoveImage(ctx, "pets", "cat-1")
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.IngestRuns)
	assert.Equal(t, int64(6), stats.IngestCreated)
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.Equal(t, int64(1), stats.AnalysisCount)
	assert.Equal(t, int64(1), stats.DeleteCount)
}

// errCatalog fails class resolution, exercising storage-layer propagation.
type errCatalog struct{}

func (errCatalog) GetClasses(ctx context.Context, datasetID string) ([]catalog.Class, error) {
	return nil, errors.New("backend down")
}

func (errCatalog) GetClassImages(ctx context.Context, datasetID, classID string) ([]catalog.Image, error) {
	return nil, errors.New("backend down")
}

func TestCatalogFailurePropagates(t *testing.T) {
	eng, err := New(errCatalog{}, newTestGenerator())
	require.NoError(t, err)
	defer eng.Close()

	_, err = eng.GenerateEmbeddings(context.Background(), "pets")
	assert.ErrorContains(t, err, "backend down")
}
