package imagesift

import (
	"context"
	"time"

	"github.com/visioform/imagesift/index"
)

const (
	// DefaultDuplicateThreshold is the similarity at or above which two
	// images count as near-duplicates.
	DefaultDuplicateThreshold = 0.95

	// DefaultDuplicateLimit bounds the number of reported pairs.
	DefaultDuplicateLimit = 1000
)

// DuplicatePair is one reported near-duplicate pair. Pairs are symmetric
// and reported once, with the earlier-inserted image as the source.
type DuplicatePair struct {
	SourceDatasetID string
	SourceImageID   string
	SourceClassName string
	TargetDatasetID string
	TargetImageID   string
	TargetClassName string
	Similarity      float32
}

// DuplicateOptions controls duplicate detection.
type DuplicateOptions struct {
	// Threshold is the minimum similarity for a pair to be reported.
	// Default 0.95.
	Threshold float32

	// Limit bounds the number of reported pairs. Default 1000.
	Limit int

	// AcrossClasses widens the comparison beyond the source image's class.
	AcrossClasses bool

	// AcrossDatasets widens the comparison beyond the source dataset.
	AcrossDatasets bool
}

// DefaultDuplicateOptions contains the default options for FindDuplicates.
var DefaultDuplicateOptions = DuplicateOptions{
	Threshold: DefaultDuplicateThreshold,
	Limit:     DefaultDuplicateLimit,
}

// FindDuplicates reports near-duplicate image pairs within the dataset.
// By default the comparison stays within the source image's dataset and
// class. An image that was already reported as a target is not revisited as
// a source, so each symmetric pair appears exactly once.
func (e *Engine) FindDuplicates(ctx context.Context, datasetID string, optFns ...func(o *DuplicateOptions)) ([]DuplicatePair, error) {
	start := time.Now()
	pairs, err := e.findDuplicates(ctx, datasetID, optFns...)

	e.metrics.RecordAnalysis("duplicates", time.Since(start), err)
	return pairs, err
}

func (e *Engine) findDuplicates(ctx context.Context, datasetID string, optFns ...func(o *DuplicateOptions)) ([]DuplicatePair, error) {
	opts := DefaultDuplicateOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultDuplicateLimit
	}

	sources, err := e.index.Get(ctx, index.Eq(index.FieldDataset, datasetID))
	if err != nil {
		return nil, translateError(err)
	}

	var pairs []DuplicatePair
	reported := make(map[string]struct{})

	for _, src := range sources {
		if len(pairs) >= opts.Limit {
			break
		}
		if _, seen := reported[src.ImageID]; seen {
			continue
		}

		filter := index.NotEq(index.FieldImage, src.ImageID)
		if !opts.AcrossDatasets {
			filter = filter.And(index.Eq(index.FieldDataset, src.DatasetID))
		}
		if !opts.AcrossClasses {
			filter = filter.And(index.Eq(index.FieldClass, src.ClassName))
		}

		hits, err := e.index.Query(ctx, src.Vector, func(o *index.QueryOptions) {
			o.Threshold = opts.Threshold
			o.Limit = opts.Limit - len(pairs)
			o.Filter = filter
		})
		if err != nil {
			return nil, translateError(err)
		}

		for _, h := range hits {
			if _, seen := reported[h.ImageID]; seen {
				continue
			}
			pairs = append(pairs, DuplicatePair{
				SourceDatasetID: src.DatasetID,
				SourceImageID:   src.ImageID,
				SourceClassName: src.ClassName,
				TargetDatasetID: h.DatasetID,
				TargetImageID:   h.ImageID,
				TargetClassName: h.ClassName,
				Similarity:      h.Score,
			})
			reported[h.ImageID] = struct{}{}
			if len(pairs) >= opts.Limit {
				break
			}
		}
		reported[src.ImageID] = struct{}{}
	}
	return pairs, nil
}
