// Package index implements the vector index: durable, queryable storage of
// embedding records with nearest-neighbor retrieval.
//
// Records are kept in insertion order in memory, tombstoned on deletion and
// optionally logged to a write-ahead log for crash recovery. Equality
// filters compile to Roaring Bitmap intersections over per-field posting
// lists; similarity queries route through an HNSW graph when the candidate
// set is large and fall back to an exact scan otherwise, so filtered and
// small-index queries stay fully deterministic.
package index

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/singleflight"

	"github.com/visioform/imagesift/hnsw"
	"github.com/visioform/imagesift/metric"
	"github.com/visioform/imagesift/wal"
)

const (
	// DefaultDimension is the embedding dimension used when none is configured.
	DefaultDimension = 384

	// DefaultExactScanLimit is the candidate count at or below which queries
	// scan exactly instead of using the ANN graph.
	DefaultExactScanLimit = 1024

	// DefaultQueryLimit bounds query results when no limit is given.
	DefaultQueryLimit = 10
)

// Options contains configuration options for the index.
type Options struct {
	// M is the HNSW connectivity. Zero means hnsw.DefaultM.
	M int

	// EF is the HNSW candidate list size. Zero means hnsw.DefaultEF.
	EF int

	// GraphSeed fixes the HNSW level generator for reproducible graphs.
	GraphSeed int64

	// ExactScanLimit is the candidate count at or below which queries use an
	// exact scan instead of the ANN graph.
	ExactScanLimit int

	// WALPath enables write-ahead logging in the given directory. Existing
	// log entries are replayed on open.
	WALPath string

	// SyncWrites forces an fsync per logged mutation.
	SyncWrites bool
}

// DefaultOptions contains the default configuration options for the index.
var DefaultOptions = Options{
	M:              hnsw.DefaultM,
	EF:             hnsw.DefaultEF,
	GraphSeed:      1,
	ExactScanLimit: DefaultExactScanLimit,
}

// Index stores embedding records and answers filtered similarity queries.
// It is safe for concurrent use; writes are append-mostly (inserts plus
// tombstones) and reads never observe partially written records.
type Index struct {
	mu       sync.RWMutex
	ready    bool
	dim      int
	records  []Record
	live     *roaring.Bitmap
	postings map[Field]map[string]*roaring.Bitmap
	graph    *hnsw.HNSW

	log    *wal.WAL
	ensure singleflight.Group
	opts   Options
}

// New creates a new index. If a WAL path is configured, previously logged
// mutations are replayed before New returns.
func New(optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.M == 0 {
		opts.M = hnsw.DefaultM
	}
	if opts.EF == 0 {
		opts.EF = hnsw.DefaultEF
	}
	if opts.ExactScanLimit <= 0 {
		opts.ExactScanLimit = DefaultExactScanLimit
	}

	ix := &Index{
		live: roaring.New(),
		postings: map[Field]map[string]*roaring.Bitmap{
			FieldDataset: {},
			FieldClass:   {},
			FieldImage:   {},
		},
		opts: opts,
	}

	if opts.WALPath != "" {
		log, err := wal.Open(func(o *wal.Options) {
			o.Path = opts.WALPath
			o.SyncOnWrite = opts.SyncWrites
		})
		if err != nil {
			return nil, err
		}
		ix.log = log
		if err := log.Replay(ix.applyLogged); err != nil {
			_ = log.Close()
			return nil, fmt.Errorf("index: replay wal: %w", err)
		}
	}
	return ix, nil
}

// applyLogged applies one replayed WAL entry to the in-memory state.
func (ix *Index) applyLogged(e wal.Entry) error {
	switch e.Op {
	case wal.OpProvision:
		return ix.ensureLocked(e.Dimension, false)
	case wal.OpInsert:
		_, err := ix.insertLocked(Record{
			DatasetID: e.DatasetID,
			ImageID:   e.ImageID,
			ClassName: e.ClassName,
			Vector:    e.Vector,
			Metadata:  e.Metadata,
		}, false)
		return err
	case wal.OpDelete:
		_, err := ix.deleteLocked(e.DatasetID, e.ImageID, false)
		return err
	default:
		return fmt.Errorf("index: unknown wal op %d", e.Op)
	}
}

// Ensure idempotently provisions the index for vectors of the given
// dimension. It is safe to call repeatedly and under concurrent first-time
// initialization: one caller provisions, the rest observe the existing
// index and succeed silently. A conflicting dimension is a hard error.
func (ix *Index) Ensure(dimension int) error {
	_, err, _ := ix.ensure.Do("ensure", func() (any, error) {
		ix.mu.Lock()
		defer ix.mu.Unlock()
		return nil, ix.ensureLocked(dimension, true)
	})
	return err
}

func (ix *Index) ensureLocked(dimension int, logged bool) error {
	if dimension <= 0 {
		return &ErrInvalidDimension{Dimension: dimension}
	}
	if ix.ready {
		if ix.dim != dimension {
			return &ErrDimensionMismatch{Expected: ix.dim, Actual: dimension}
		}
		return nil // already provisioned
	}

	graph, err := hnsw.New(func(o *hnsw.Options) {
		o.Dimension = dimension
		o.M = ix.opts.M
		o.EF = ix.opts.EF
		o.RandomSeed = ix.opts.GraphSeed
	})
	if err != nil {
		return err
	}

	if logged && ix.log != nil {
		if err := ix.log.Append(wal.Entry{Op: wal.OpProvision, Dimension: dimension}); err != nil {
			return err
		}
	}

	ix.graph = graph
	ix.dim = dimension
	ix.ready = true
	return nil
}

// Dimension returns the provisioned vector dimension, or 0 before Ensure.
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Len returns the number of live (non-deleted) records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return int(ix.live.GetCardinality())
}

// Insert persists one record and returns its assigned id.
func (ix *Index) Insert(ctx context.Context, r Record) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.insertLocked(r, true)
}

func (ix *Index) insertLocked(r Record, logged bool) (uint64, error) {
	if !ix.ready {
		return 0, ErrNotReady
	}
	if len(r.Vector) != ix.dim {
		return 0, &ErrDimensionMismatch{Expected: ix.dim, Actual: len(r.Vector)}
	}

	row := uint32(len(ix.records))
	r.ID = uint64(row) + 1
	r.Vector = slices.Clone(r.Vector)
	r.Deleted = false

	if logged && ix.log != nil {
		err := ix.log.Append(wal.Entry{
			Op:        wal.OpInsert,
			ID:        r.ID,
			DatasetID: r.DatasetID,
			ImageID:   r.ImageID,
			ClassName: r.ClassName,
			Vector:    r.Vector,
			Metadata:  r.Metadata,
		})
		if err != nil {
			return 0, err
		}
	}

	ix.records = append(ix.records, r)
	ix.live.Add(row)
	ix.addPosting(FieldDataset, r.DatasetID, row)
	ix.addPosting(FieldClass, r.ClassName, row)
	ix.addPosting(FieldImage, r.ImageID, row)

	// Zero-magnitude vectors stay out of the graph; they score 0 against
	// every query and are still reachable through exact scans.
	if normalized, ok := metric.NormalizeCopy(r.Vector); ok {
		if err := ix.graph.Insert(row, normalized); err != nil {
			return 0, err
		}
	}
	return r.ID, nil
}

func (ix *Index) addPosting(field Field, value string, row uint32) {
	bm, ok := ix.postings[field][value]
	if !ok {
		bm = roaring.New()
		ix.postings[field][value] = bm
	}
	bm.Add(row)
}

// Delete tombstones every record of the given image. The records become
// invisible to Get and Query. It reports whether any record was affected;
// deleting an unknown image is not an error.
func (ix *Index) Delete(ctx context.Context, datasetID, imageID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.deleteLocked(datasetID, imageID, true)
}

func (ix *Index) deleteLocked(datasetID, imageID string, logged bool) (bool, error) {
	if !ix.ready {
		return false, ErrNotReady
	}

	rows := ix.candidatesLocked(Eq(FieldDataset, datasetID).And(Eq(FieldImage, imageID)))
	if rows.IsEmpty() {
		return false, nil
	}

	if logged && ix.log != nil {
		err := ix.log.Append(wal.Entry{Op: wal.OpDelete, DatasetID: datasetID, ImageID: imageID})
		if err != nil {
			return false, err
		}
	}

	it := rows.Iterator()
	for it.HasNext() {
		row := it.Next()
		ix.records[row].Deleted = true
		ix.live.Remove(row)
	}
	return true, nil
}

// candidatesLocked compiles a filter into the bitmap of live matching rows.
func (ix *Index) candidatesLocked(f *Filter) *roaring.Bitmap {
	out := ix.live.Clone()
	if f == nil {
		return out
	}
	for _, c := range f.Conditions {
		set := roaring.New()
		switch c.Operator {
		case OpEqual, OpIn:
			for _, v := range c.Values {
				if bm, ok := ix.postings[c.Field][v]; ok {
					set.Or(bm)
				}
			}
		case OpNotEqual:
			set = ix.live.Clone()
			for _, v := range c.Values {
				if bm, ok := ix.postings[c.Field][v]; ok {
					set.AndNot(bm)
				}
			}
		}
		out.And(set)
		if out.IsEmpty() {
			return out
		}
	}
	return out
}

// Get returns the live records matching the filter, in insertion order.
func (ix *Index) Get(ctx context.Context, f *Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.ready {
		return nil, ErrNotReady
	}

	rows := ix.candidatesLocked(f)
	out := make([]Record, 0, rows.GetCardinality())
	it := rows.Iterator()
	for it.HasNext() {
		out = append(out, ix.records[it.Next()])
	}
	return out, nil
}

// Has reports whether a live record exists for the exact
// (datasetID, imageID, className) triple.
func (ix *Index) Has(ctx context.Context, datasetID, imageID, className string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.ready {
		return false, ErrNotReady
	}

	f := Eq(FieldDataset, datasetID).
		And(Eq(FieldImage, imageID)).
		And(Eq(FieldClass, className))
	return !ix.candidatesLocked(f).IsEmpty(), nil
}

// QueryOptions controls a similarity query.
type QueryOptions struct {
	// Threshold excludes results whose score is below it.
	Threshold float32

	// Limit truncates the result list. Zero means DefaultQueryLimit.
	Limit int

	// Filter narrows the candidate set before scoring.
	Filter *Filter
}

// Query returns the records most similar to the query vector, ordered by
// descending score with ties broken by insertion order.
func (ix *Index) Query(ctx context.Context, vector []float32, optFns ...func(o *QueryOptions)) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := QueryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultQueryLimit
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.ready {
		return nil, ErrNotReady
	}
	if len(vector) != ix.dim {
		return nil, &ErrDimensionMismatch{Expected: ix.dim, Actual: len(vector)}
	}

	candidates := ix.candidatesLocked(opts.Filter)
	if candidates.IsEmpty() {
		return nil, nil
	}

	normalized, ok := metric.NormalizeCopy(vector)
	useGraph := ok &&
		opts.Filter == nil &&
		candidates.GetCardinality() > uint64(ix.opts.ExactScanLimit)

	if useGraph {
		return ix.queryGraphLocked(normalized, candidates, opts)
	}
	return ix.queryExactLocked(vector, candidates, opts)
}

// queryExactLocked scores every candidate. Iteration follows row order, so
// equal scores keep insertion order after the stable sort.
func (ix *Index) queryExactLocked(vector []float32, candidates *roaring.Bitmap, opts QueryOptions) ([]Hit, error) {
	hits := make([]Hit, 0, min(int(candidates.GetCardinality()), opts.Limit*2))
	it := candidates.Iterator()
	for it.HasNext() {
		row := it.Next()
		score, err := metric.Score(vector, ix.records[row].Vector)
		if err != nil {
			return nil, err
		}
		if score < opts.Threshold {
			continue
		}
		hits = append(hits, Hit{Record: ix.records[row], Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

// queryGraphLocked routes through the ANN graph, rescoring results against
// the stored (unnormalized) vectors so scores match the exact path.
func (ix *Index) queryGraphLocked(normalized []float32, candidates *roaring.Bitmap, opts QueryOptions) ([]Hit, error) {
	results, err := ix.graph.KNNSearch(normalized, opts.Limit, 0, candidates.Contains)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		// Cosine similarity of unit vectors: 1 - d/2 for squared L2 distance d.
		score := 1 - res.Distance/2
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		if score < opts.Threshold {
			continue
		}
		hits = append(hits, Hit{Record: ix.records[res.ID], Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	return hits, nil
}

// Close releases the WAL, if any.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.log == nil {
		return nil
	}
	err := ix.log.Close()
	ix.log = nil
	return err
}
