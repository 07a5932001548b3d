package imagesift

import (
	"context"
	"sort"
	"time"

	"github.com/visioform/imagesift/index"
	"github.com/visioform/imagesift/metric"
)

// DefaultOutlierThreshold is the centroid similarity below which an image
// counts as an outlier.
const DefaultOutlierThreshold = 0.6

// Outlier is one image flagged as far from its class centroid.
type Outlier struct {
	DatasetID  string
	ImageID    string
	ClassName  string
	Similarity float32 // similarity to the class centroid, in [0, 1]
	Metadata   index.Metadata
}

// OutlierOptions controls outlier detection.
type OutlierOptions struct {
	// Threshold is the centroid similarity below which an image is flagged.
	// Default 0.6.
	Threshold float32
}

// DefaultOutlierOptions contains the default options for FindOutliers.
var DefaultOutlierOptions = OutlierOptions{
	Threshold: DefaultOutlierThreshold,
}

// FindOutliers flags images whose similarity to their class centroid falls
// below the threshold. The centroid is the element-wise mean of the class's
// embeddings. An empty class yields an empty result, not an error. Results
// are ordered by ascending similarity (worst outliers first), ties broken
// by insertion order.
func (e *Engine) FindOutliers(ctx context.Context, datasetID, className string, optFns ...func(o *OutlierOptions)) ([]Outlier, error) {
	start := time.Now()
	outliers, err := e.findOutliers(ctx, datasetID, className, optFns...)

	e.metrics.RecordAnalysis("outliers", time.Since(start), err)
	return outliers, err
}

func (e *Engine) findOutliers(ctx context.Context, datasetID, className string, optFns ...func(o *OutlierOptions)) ([]Outlier, error) {
	opts := DefaultOutlierOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	filter := index.Eq(index.FieldDataset, datasetID).
		And(index.Eq(index.FieldClass, className))
	records, err := e.index.Get(ctx, filter)
	if err != nil {
		return nil, translateError(err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(records))
	for i := range records {
		vectors[i] = records[i].Vector
	}
	centroid, err := metric.Centroid(vectors)
	if err != nil {
		return nil, err
	}

	var outliers []Outlier
	for _, rec := range records {
		score, err := metric.Score(rec.Vector, centroid)
		if err != nil {
			return nil, err
		}
		if score >= opts.Threshold {
			continue
		}
		outliers = append(outliers, Outlier{
			DatasetID:  rec.DatasetID,
			ImageID:    rec.ImageID,
			ClassName:  rec.ClassName,
			Similarity: score,
			Metadata:   rec.Metadata,
		})
	}

	sort.SliceStable(outliers, func(i, j int) bool {
		return outliers[i].Similarity < outliers[j].Similarity
	})
	return outliers, nil
}
