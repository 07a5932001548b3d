package imagesift

import (
	"context"
	"time"

	"github.com/visioform/imagesift/index"
)

const (
	// DefaultSimilarityThreshold is the minimum similarity a match must
	// reach when none is configured.
	DefaultSimilarityThreshold = 0.7

	// DefaultSimilarLimit is the maximum number of matches returned when no
	// limit is configured.
	DefaultSimilarLimit = 10
)

// Match is one similarity search result. Similarity is a cosine score in
// [0, 1]; higher is more similar.
type Match struct {
	DatasetID  string
	ImageID    string
	ClassName  string
	Similarity float32
	Metadata   index.Metadata
}

// SimilarOptions controls a similarity search.
type SimilarOptions struct {
	// Threshold excludes matches scoring below it. Default 0.7.
	Threshold float32

	// Limit truncates the result list. Default 10.
	Limit int

	// Filter narrows the candidate set, e.g.
	// index.Eq(index.FieldDataset, "dataset-1").
	Filter *index.Filter
}

// DefaultSimilarOptions contains the default options for FindSimilar.
var DefaultSimilarOptions = SimilarOptions{
	Threshold: DefaultSimilarityThreshold,
	Limit:     DefaultSimilarLimit,
}

// FindSimilar returns the stored images most similar to the query vector,
// ordered by descending similarity with ties broken by insertion order.
// An empty result is not an error.
func (e *Engine) FindSimilar(ctx context.Context, vector []float32, optFns ...func(o *SimilarOptions)) ([]Match, error) {
	start := time.Now()
	matches, err := e.findSimilar(ctx, vector, optFns...)

	e.metrics.RecordSearch(len(matches), time.Since(start), err)
	e.logger.LogSearch(ctx, len(matches), err)
	return matches, err
}

func (e *Engine) findSimilar(ctx context.Context, vector []float32, optFns ...func(o *SimilarOptions)) ([]Match, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyQueryVector
	}

	opts := DefaultSimilarOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSimilarLimit
	}

	hits, err := e.index.Query(ctx, vector, func(o *index.QueryOptions) {
		o.Threshold = opts.Threshold
		o.Limit = opts.Limit
		o.Filter = opts.Filter
	})
	if err != nil {
		return nil, translateError(err)
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, Match{
			DatasetID:  h.DatasetID,
			ImageID:    h.ImageID,
			ClassName:  h.ClassName,
			Similarity: h.Score,
			Metadata:   h.Metadata,
		})
	}
	return matches, nil
}
