package imagesift

import (
	"context"
	"math/rand"
	"time"

	"github.com/visioform/imagesift/index"
	"github.com/visioform/imagesift/metric"
)

const (
	// DefaultClusterCount is the number of clusters produced when none is
	// configured.
	DefaultClusterCount = 5

	// DefaultClusterMaxIterations bounds the k-means refinement loop.
	DefaultClusterMaxIterations = 50
)

// ClusterMember is one image assigned to a cluster.
type ClusterMember struct {
	DatasetID string
	ImageID   string
	ClassName string
}

// Cluster is one k-means cluster. Centroid is the normalized mean of the
// members' embeddings; a cluster is empty only when the requested cluster
// count exceeds the number of embeddings.
type Cluster struct {
	ID       int
	Centroid []float32
	Members  []ClusterMember
}

// ClusterOptions controls k-means clustering.
type ClusterOptions struct {
	// Clusters is the number of clusters to produce. Default 5.
	Clusters int

	// MaxIterations bounds the refinement loop. Default 50.
	MaxIterations int

	// Seed fixes the centroid seeding for reproducible runs.
	Seed int64
}

// DefaultClusterOptions contains the default options for ClusterImages.
var DefaultClusterOptions = ClusterOptions{
	Clusters:      DefaultClusterCount,
	MaxIterations: DefaultClusterMaxIterations,
	Seed:          1,
}

// ClusterImages partitions the dataset's embeddings into k clusters with
// k-means over cosine distance. Centroids are seeded with farthest-point
// initialization from a deterministic RNG, so equal inputs and seeds yield
// equal clusterings. Every embedding lands in exactly one cluster. The run
// is cancelable between iterations.
func (e *Engine) ClusterImages(ctx context.Context, datasetID string, optFns ...func(o *ClusterOptions)) ([]Cluster, error) {
	start := time.Now()
	clusters, err := e.clusterImages(ctx, datasetID, optFns...)

	e.metrics.RecordAnalysis("clusters", time.Since(start), err)
	return clusters, err
}

func (e *Engine) clusterImages(ctx context.Context, datasetID string, optFns ...func(o *ClusterOptions)) ([]Cluster, error) {
	opts := DefaultClusterOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Clusters <= 0 {
		return nil, ErrInvalidClusterCount
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultClusterMaxIterations
	}

	records, err := e.index.Get(ctx, index.Eq(index.FieldDataset, datasetID))
	if err != nil {
		return nil, translateError(err)
	}

	clusters := make([]Cluster, opts.Clusters)
	for i := range clusters {
		clusters[i].ID = i
	}
	if len(records) == 0 {
		return clusters, nil
	}

	// Cosine k-means runs on normalized copies; zero vectors stay zero and
	// score 0 against every centroid, landing in the first cluster.
	points := make([][]float32, len(records))
	for i, rec := range records {
		if n, ok := metric.NormalizeCopy(rec.Vector); ok {
			points[i] = n
		} else {
			points[i] = make([]float32, len(rec.Vector))
		}
	}

	centroids := seedCentroids(points, opts.Clusters, opts.Seed)
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed := false
		for i, p := range points {
			best, bestSim := 0, float32(-2)
			for c, centroid := range centroids {
				sim := metric.Dot(p, centroid)
				if sim > bestSim {
					best, bestSim = c, sim
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		for c := range centroids {
			members := make([][]float32, 0)
			for i, a := range assign {
				if a == c {
					members = append(members, points[i])
				}
			}
			if len(members) == 0 {
				continue // keep the previous centroid
			}
			mean, err := metric.Centroid(members)
			if err != nil {
				return nil, err
			}
			if n, ok := metric.NormalizeCopy(mean); ok {
				centroids[c] = n
			} else {
				centroids[c] = mean
			}
		}
	}

	for i, rec := range records {
		c := assign[i]
		clusters[c].Members = append(clusters[c].Members, ClusterMember{
			DatasetID: rec.DatasetID,
			ImageID:   rec.ImageID,
			ClassName: rec.ClassName,
		})
	}
	for c := range clusters {
		clusters[c].Centroid = centroids[c]
	}
	return clusters, nil
}

// seedCentroids picks k starting centroids: the first at random from the
// seeded RNG, each following one the point farthest (by cosine distance)
// from every centroid chosen so far.
func seedCentroids(points [][]float32, k int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	dim := len(points[0])

	centroids := make([][]float32, 0, k)
	first := rng.Intn(len(points))
	centroids = append(centroids, points[first])

	for len(centroids) < k {
		bestIdx, bestDist := -1, float32(-1)
		for i, p := range points {
			// Distance to the nearest chosen centroid.
			nearest := float32(2)
			for _, c := range centroids {
				d := 1 - metric.Dot(p, c)
				if d < nearest {
					nearest = d
				}
			}
			if nearest > bestDist {
				bestIdx, bestDist = i, nearest
			}
		}
		if bestIdx < 0 || bestDist <= 0 {
			// Fewer distinct points than clusters; pad with zero centroids
			// so the remaining clusters stay empty.
			centroids = append(centroids, make([]float32, dim))
			continue
		}
		centroids = append(centroids, points[bestIdx])
	}
	return centroids
}
