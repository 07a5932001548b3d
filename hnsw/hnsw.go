// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// The graph operates on L2-normalized vectors and ranks by squared L2
// distance, which orders candidates identically to cosine similarity.
package hnsw

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

const (
	// DefaultM is the default number of bidirectional links per node.
	DefaultM = 8

	// DefaultEF is the default size of the dynamic candidate list.
	DefaultEF = 200

	// minimumM is the minimum valid value for M.
	minimumM = 2

	// mmax0Multiplier is the multiplier for maximum connections at layer 0.
	mmax0Multiplier = 2
)

// Options represents the options for configuring HNSW.
type Options struct {
	// Dimension is the fixed vector dimensionality for this graph.
	Dimension int

	// M is the number of bidirectional links created per node.
	M int

	// EF is the size of the dynamic candidate list during construction.
	EF int

	// RandomSeed fixes the level generator for reproducible graphs.
	RandomSeed int64
}

// DefaultOptions contains the default configuration options for HNSW.
var DefaultOptions = Options{
	M:          DefaultM,
	EF:         DefaultEF,
	RandomSeed: 1,
}

// SearchResult represents a search result.
type SearchResult struct {
	// ID is the identifier of the search result.
	ID uint32

	// Distance is the squared L2 distance between the query and the result.
	Distance float32
}

type node struct {
	Vector    []float32
	Neighbors [][]uint32 // Neighbors[level] holds the links at that level
}

// HNSW represents the Hierarchical Navigable Small World graph.
type HNSW struct {
	mu         sync.RWMutex
	nodes      map[uint32]*node
	entryPoint uint32
	maxLevel   int
	hasEntry   bool

	levelMultiplier float64
	rng             *rand.Rand
	opts            Options
}

// New creates a new HNSW instance.
func New(optFns ...func(o *Options)) (*HNSW, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("hnsw: dimension must be positive, got %d", opts.Dimension)
	}
	if opts.M < minimumM {
		return nil, fmt.Errorf("hnsw: M must be at least %d, got %d", minimumM, opts.M)
	}
	if opts.EF < 1 {
		return nil, fmt.Errorf("hnsw: EF must be positive, got %d", opts.EF)
	}

	return &HNSW{
		nodes:           make(map[uint32]*node),
		levelMultiplier: 1 / math.Log(float64(opts.M)),
		rng:             rand.New(rand.NewSource(opts.RandomSeed)),
		opts:            opts,
	}, nil
}

// Len returns the number of nodes in the graph.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// randomLevel draws a level from the standard exponential distribution.
func (h *HNSW) randomLevel() int {
	r := h.rng.Float64()
	for r == 0 {
		r = h.rng.Float64()
	}
	return int(math.Floor(-math.Log(r) * h.levelMultiplier))
}

// Insert adds a vector to the graph under the given identifier.
// The identifier must be unique; the vector must match the configured dimension.
func (h *HNSW) Insert(id uint32, vector []float32) error {
	if len(vector) != h.opts.Dimension {
		return fmt.Errorf("hnsw: vector dimension %d does not match index dimension %d", len(vector), h.opts.Dimension)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.nodes[id]; exists {
		return fmt.Errorf("hnsw: node %d already exists", id)
	}

	level := h.randomLevel()
	n := &node{
		Vector:    vector,
		Neighbors: make([][]uint32, level+1),
	}
	h.nodes[id] = n

	if !h.hasEntry {
		h.entryPoint = id
		h.maxLevel = level
		h.hasEntry = true
		return nil
	}

	ep := h.entryPoint
	// Greedy descent through the layers above the new node's level.
	for l := h.maxLevel; l > level; l-- {
		ep = h.greedyClosest(vector, ep, l)
	}

	for l := min(level, h.maxLevel); l >= 0; l-- {
		candidates := h.searchLayer(vector, ep, h.opts.EF, l, nil)
		neighbors := h.selectNeighbors(candidates, h.opts.M)
		n.Neighbors[l] = neighbors

		maxConn := h.opts.M
		if l == 0 {
			maxConn = h.opts.M * mmax0Multiplier
		}
		for _, nb := range neighbors {
			h.link(nb, id, l, maxConn)
		}
		if len(candidates) > 0 {
			ep = candidates[0].id
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entryPoint = id
	}
	return nil
}

// link adds target to the neighbor list of id at the given level,
// pruning back to maxConn by distance when the list overflows.
func (h *HNSW) link(id, target uint32, level, maxConn int) {
	n := h.nodes[id]
	if level >= len(n.Neighbors) {
		return
	}
	n.Neighbors[level] = append(n.Neighbors[level], target)
	if len(n.Neighbors[level]) <= maxConn {
		return
	}

	// Keep the maxConn closest neighbors.
	q := newMaxQueue()
	for _, nb := range n.Neighbors[level] {
		heap.Push(q, item{id: nb, dist: squaredL2(n.Vector, h.nodes[nb].Vector)})
		if q.Len() > maxConn {
			heap.Pop(q)
		}
	}
	pruned := make([]uint32, 0, q.Len())
	for q.Len() > 0 {
		pruned = append(pruned, heap.Pop(q).(item).id)
	}
	n.Neighbors[level] = pruned
}

// greedyClosest walks a single layer greedily toward the query.
func (h *HNSW) greedyClosest(query []float32, ep uint32, level int) uint32 {
	curr := ep
	currDist := squaredL2(query, h.nodes[curr].Vector)
	for {
		improved := false
		n := h.nodes[curr]
		if level < len(n.Neighbors) {
			for _, nb := range n.Neighbors[level] {
				d := squaredL2(query, h.nodes[nb].Vector)
				if d < currDist {
					curr = nb
					currDist = d
					improved = true
				}
			}
		}
		if !improved {
			return curr
		}
	}
}

// searchLayer performs a best-first search of one layer and returns up to ef
// candidates ordered closest-first. When filter is non-nil, filtered-out nodes
// are still traversed but excluded from the result set.
func (h *HNSW) searchLayer(query []float32, ep uint32, ef, level int, filter func(id uint32) bool) []item {
	visited := map[uint32]struct{}{ep: {}}
	epDist := squaredL2(query, h.nodes[ep].Vector)

	candidates := newMinQueue(item{id: ep, dist: epDist})
	results := newMaxQueue()
	if filter == nil || filter(ep) {
		heap.Push(results, item{id: ep, dist: epDist})
	}

	for candidates.Len() > 0 {
		curr := heap.Pop(candidates).(item)
		if results.Len() >= ef && curr.dist > (*results)[0].dist {
			break
		}

		n := h.nodes[curr.id]
		if level >= len(n.Neighbors) {
			continue
		}
		for _, nb := range n.Neighbors[level] {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}

			d := squaredL2(query, h.nodes[nb].Vector)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(candidates, item{id: nb, dist: d})
				if filter == nil || filter(nb) {
					heap.Push(results, item{id: nb, dist: d})
					if results.Len() > ef {
						heap.Pop(results)
					}
				}
			}
		}
	}

	out := make([]item, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(item)
	}
	return out
}

// selectNeighbors keeps the m closest candidates.
func (h *HNSW) selectNeighbors(candidates []item, m int) []uint32 {
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	out := make([]uint32, len(candidates))
	for i, c := range candidates {
		out[i] = c.id
	}
	return out
}

// KNNSearch performs a K-nearest neighbor search.
// ef overrides the candidate list size when positive; filter restricts the
// result set without stopping graph traversal.
func (h *HNSW) KNNSearch(query []float32, k int, ef int, filter func(id uint32) bool) ([]SearchResult, error) {
	if len(query) != h.opts.Dimension {
		return nil, fmt.Errorf("hnsw: query dimension %d does not match index dimension %d", len(query), h.opts.Dimension)
	}
	if k < 1 {
		return nil, fmt.Errorf("hnsw: k must be positive, got %d", k)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.hasEntry {
		return nil, nil
	}
	if ef <= 0 {
		ef = h.opts.EF
	}
	if ef < k {
		ef = k
	}

	ep := h.entryPoint
	for l := h.maxLevel; l > 0; l-- {
		ep = h.greedyClosest(query, ep, l)
	}

	candidates := h.searchLayer(query, ep, ef, 0, filter)
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = SearchResult{ID: c.id, Distance: c.dist}
	}
	return results, nil
}
