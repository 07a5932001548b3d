package imagesift

import (
	"context"
	"os"
	"time"

	"github.com/visioform/imagesift/catalog"
	"github.com/visioform/imagesift/embedder"
	"github.com/visioform/imagesift/index"
)

// Engine coordinates the embedding generator, the dataset catalog and the
// vector index. All dependencies are injected; the engine owns only the
// index it creates.
//
// An Engine is safe for concurrent use and is meant to be shared
// process-wide.
type Engine struct {
	index    *index.Index
	catalog  catalog.Catalog
	embedder embedder.Generator

	dimension int
	logger    *Logger
	metrics   MetricsCollector
}

// New creates an Engine around the given catalog and embedding generator.
// The index is provisioned lazily on first use; call EnsureIndex to
// provision it eagerly.
func New(cat catalog.Catalog, gen embedder.Generator, optFns ...Option) (*Engine, error) {
	opts := applyOptions(optFns)

	dimension := opts.dimension
	if dimension <= 0 && gen != nil {
		dimension = gen.Dimension()
	}
	if dimension <= 0 {
		dimension = index.DefaultDimension
	}

	ix, err := index.New(opts.indexOptions...)
	if err != nil {
		return nil, storageError("open index", err)
	}

	return &Engine{
		index:     ix,
		catalog:   cat,
		embedder:  gen,
		dimension: dimension,
		logger:    opts.logger,
		metrics:   opts.metricsCollector,
	}, nil
}

// EnsureIndex idempotently provisions the vector index for the engine's
// embedding dimension. Concurrent callers are collapsed: one provisions,
// the rest observe the existing index and succeed silently. A previously
// provisioned index with a different dimension is an error.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.index.Ensure(e.dimension); err != nil {
		return translateError(err)
	}
	return nil
}

// Index exposes the underlying vector index for advanced use (snapshots,
// direct filtered reads).
func (e *Engine) Index() *index.Index {
	return e.index
}

// RemoveImage tombstones every embedding stored for the image. Removing an
// unknown image is not an error; the returned bool reports whether anything
// was removed.
func (e *Engine) RemoveImage(ctx context.Context, datasetID, imageID string) (bool, error) {
	start := time.Now()

	removed, err := e.index.Delete(ctx, datasetID, imageID)
	err = translateError(err)

	e.metrics.RecordDelete(time.Since(start), err)
	e.logger.LogDelete(ctx, datasetID, imageID, err)
	return removed, err
}

// SaveToFile writes a zstd-compressed snapshot of the index to path.
func (e *Engine) SaveToFile(path string) error {
	return storageError("save snapshot", e.index.SaveToFile(path))
}

// LoadFromFile replaces the engine's index contents with a snapshot
// previously written by SaveToFile.
func (e *Engine) LoadFromFile(path string) error {
	return storageError("load snapshot", e.index.LoadFromFile(path))
}

// Checkpoint snapshots the index to path and truncates the write-ahead log.
func (e *Engine) Checkpoint(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return storageError("checkpoint", err)
	}
	if err := e.index.Checkpoint(f); err != nil {
		_ = f.Close()
		return storageError("checkpoint", err)
	}
	return storageError("checkpoint", f.Close())
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	return e.index.Close()
}
