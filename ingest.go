package imagesift

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/visioform/imagesift/catalog"
	"github.com/visioform/imagesift/index"
)

const (
	// DefaultBatchSize is the number of images embedded per batch.
	DefaultBatchSize = 50

	// DefaultIngestConcurrency bounds the embedding calls in flight within
	// one batch.
	DefaultIngestConcurrency = 8
)

// IngestOptions controls dataset ingestion.
type IngestOptions struct {
	// Force regenerates embeddings that already exist. By default images
	// with a stored embedding are skipped.
	Force bool

	// BatchSize is the number of images processed per batch. Batches run
	// sequentially; cancellation is honored between them. Default 50.
	BatchSize int

	// Concurrency bounds the embedding calls in flight within one batch.
	// Default 8.
	Concurrency int
}

// DefaultIngestOptions contains the default options for GenerateEmbeddings.
var DefaultIngestOptions = IngestOptions{
	BatchSize:   DefaultBatchSize,
	Concurrency: DefaultIngestConcurrency,
}

// ingestItem is one image queued for embedding, paired with its class.
type ingestItem struct {
	class catalog.Class
	image catalog.Image
}

// GenerateEmbeddings walks the dataset's classes and images, generates an
// embedding per image and stores it. The run is idempotent: images that
// already have an embedding are skipped unless Force is set, so an
// interrupted run resumes where it left off. A failure to embed or store a
// single image is logged and skipped, never fatal; the image stays eligible
// for the next run. Returns the number of embeddings newly created.
func (e *Engine) GenerateEmbeddings(ctx context.Context, datasetID string, optFns ...func(o *IngestOptions)) (int, error) {
	start := time.Now()
	created, failed, err := e.generateEmbeddings(ctx, datasetID, optFns...)

	e.metrics.RecordIngest(created, failed, time.Since(start))
	if err == nil {
		e.logger.LogIngest(ctx, datasetID, created, failed)
	}
	return created, err
}

func (e *Engine) generateEmbeddings(ctx context.Context, datasetID string, optFns ...func(o *IngestOptions)) (created, failed int, err error) {
	opts := DefaultIngestOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultIngestConcurrency
	}

	if err := e.EnsureIndex(ctx); err != nil {
		return 0, 0, err
	}

	classes, err := e.catalog.GetClasses(ctx, datasetID)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve classes of dataset %q: %w", datasetID, err)
	}

	var items []ingestItem
	for _, class := range classes {
		images, err := e.catalog.GetClassImages(ctx, datasetID, class.ID)
		if err != nil {
			return 0, 0, fmt.Errorf("resolve images of class %q: %w", class.ID, err)
		}
		for _, img := range images {
			items = append(items, ingestItem{class: class, image: img})
		}
	}

	var createdCount, failedCount atomic.Int64

	for offset := 0; offset < len(items); offset += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return int(createdCount.Load()), int(failedCount.Load()), err
		}

		batch := items[offset:min(offset+opts.BatchSize, len(items))]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for _, it := range batch {
			g.Go(func() error {
				ok, err := e.ingestOne(gctx, datasetID, it, opts.Force)
				if err != nil {
					// Per-image failures are isolated: log, count, move on.
					failedCount.Add(1)
					e.logger.LogImageFailure(gctx, datasetID, it.class.Name, it.image.ID, err)
					return nil
				}
				if ok {
					createdCount.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return int(createdCount.Load()), int(failedCount.Load()), err
		}
	}
	return int(createdCount.Load()), int(failedCount.Load()), nil
}

// ingestOne embeds and stores a single image. It reports whether a new
// embedding was created.
func (e *Engine) ingestOne(ctx context.Context, datasetID string, it ingestItem, force bool) (bool, error) {
	if !force {
		exists, err := e.index.Has(ctx, datasetID, it.image.ID, it.class.Name)
		if err != nil {
			return false, translateError(err)
		}
		if exists {
			return false, nil
		}
	}

	vector, err := e.embedder.Generate(ctx, it.image.ID)
	if err != nil {
		return false, &ErrGenerationFailure{DatasetID: datasetID, ImageID: it.image.ID, cause: err}
	}

	if force {
		// Regeneration replaces: tombstone the old embedding first.
		if _, err := e.index.Delete(ctx, datasetID, it.image.ID); err != nil {
			return false, translateError(err)
		}
	}

	_, err = e.index.Insert(ctx, index.Record{
		DatasetID: datasetID,
		ImageID:   it.image.ID,
		ClassName: it.class.Name,
		Vector:    vector,
		Metadata: index.Metadata{
			"width":  it.image.Width,
			"height": it.image.Height,
			"format": it.image.Format,
			"size":   it.image.Size,
		},
	})
	if err != nil {
		return false, translateError(err)
	}
	return true, nil
}
