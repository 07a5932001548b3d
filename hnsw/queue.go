package hnsw

import "container/heap"

// item is a graph node paired with its distance to the current query.
type item struct {
	id   uint32
	dist float32
}

// minQueue is a min-heap of items ordered by distance (closest first).
type minQueue []item

func (q minQueue) Len() int            { return len(q) }
func (q minQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q minQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *minQueue) Push(x interface{}) { *q = append(*q, x.(item)) }
func (q *minQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// maxQueue is a max-heap of items ordered by distance (farthest first).
// It bounds the dynamic candidate list during layer search.
type maxQueue []item

func (q maxQueue) Len() int            { return len(q) }
func (q maxQueue) Less(i, j int) bool  { return q[i].dist > q[j].dist }
func (q maxQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *maxQueue) Push(x interface{}) { *q = append(*q, x.(item)) }
func (q *maxQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

func newMinQueue(items ...item) *minQueue {
	q := minQueue(items)
	heap.Init(&q)
	return &q
}

func newMaxQueue(items ...item) *maxQueue {
	q := maxQueue(items)
	heap.Init(&q)
	return &q
}
