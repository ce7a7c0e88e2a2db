// Package queue implements the best-first loop's main candidate queue: a
// binary heap of (vid, distance) pairs, usable as either a min-heap
// (ascending distance, for popping the closest unexplored candidate) or a
// max-heap (for bounding a top-k result buffer).
package queue

import "github.com/hybridann/hybridann/core"

// CandidateItem is one (vector id, distance) pair held in a Queue.
type CandidateItem struct {
	VID  core.VID
	Dist float32
}

// Queue is a binary heap of CandidateItems, ordered by ascending distance
// (min-heap) or descending distance (max-heap) depending on how it was
// constructed.
type Queue struct {
	isMaxHeap bool
	items     []CandidateItem
}

// TopItem returns the heap's root element without removing it.
func (q *Queue) TopItem() (CandidateItem, bool) {
	if len(q.items) == 0 {
		return CandidateItem{}, false
	}
	return q.items[0], true
}

// PushItem inserts an item, restoring the heap invariant.
func (q *Queue) PushItem(item CandidateItem) {
	q.items = append(q.items, item)
	q.siftUp(len(q.items) - 1)
}

// PopItem removes and returns the heap's root element, restoring the heap
// invariant.
func (q *Queue) PopItem() (CandidateItem, bool) {
	n := len(q.items)
	if n == 0 {
		return CandidateItem{}, false
	}
	root := q.items[0]
	last := q.items[n-1]
	q.items[n-1] = CandidateItem{}
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return root, true
}

func (q *Queue) less(i, j int) bool {
	if q.isMaxHeap {
		return q.items[i].Dist > q.items[j].Dist
	}
	return q.items[i].Dist < q.items[j].Dist
}

func (q *Queue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *Queue) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}

// MinItem returns the item with the smallest Dist currently in the queue.
// For min-heaps this is the root; for max-heaps this scans the backing
// slice.
func (q *Queue) MinItem() (CandidateItem, bool) {
	if len(q.items) == 0 {
		return CandidateItem{}, false
	}
	if !q.isMaxHeap {
		return q.items[0], true
	}
	min := q.items[0]
	for i := 1; i < len(q.items); i++ {
		if q.items[i].Dist < min.Dist {
			min = q.items[i]
		}
	}
	return min, true
}

// NewMin constructs an empty min-heap (ascending distance) with the given
// starting capacity.
func NewMin(capacity int) *Queue {
	return &Queue{
		isMaxHeap: false,
		items:     make([]CandidateItem, 0, capacity),
	}
}

// NewMax constructs an empty max-heap (descending distance) with the given
// starting capacity.
func NewMax(capacity int) *Queue {
	return &Queue{
		isMaxHeap: true,
		items:     make([]CandidateItem, 0, capacity),
	}
}

// Len returns the number of items currently in the queue.
func (q *Queue) Len() int { return len(q.items) }

// Reset empties the queue for reuse without releasing its backing array.
func (q *Queue) Reset() { q.items = q.items[:0] }
