// Package workspace implements the per-query scratch: a min-heap of (vid,
// dist) candidates (NGQueue), an open-addressed visited set, a secondary
// priority queue the KD-forest descent uses for farther-subtree pivots,
// and the counters the best-first loop's re-seeding heuristic reads. A
// fixed-size Pool rents and returns workspaces around each query.
package workspace

import (
	"github.com/hybridann/hybridann/core"
	"github.com/hybridann/hybridann/internal/queue"
)

// Workspace is one thread's search scratch, rented from a Pool for the
// duration of a single query and returned afterward.
type Workspace struct {
	// NGQueue is the best-first loop's main candidate queue, a min-heap
	// ordered by ascending distance.
	NGQueue *queue.Queue

	// TreePivots is the KD-forest descent's secondary priority queue of
	// not-yet-explored farther subtrees, keyed by estimated boundary
	// distance. It persists across multiple SearchTrees calls within one
	// query so a re-seed resumes from existing pivots instead of
	// restarting every tree descent.
	TreePivots *pivotQueue

	visited *visitedSet

	Result *Result

	// CheckedLeaves, TreeCheckedLeaves and NoBetterPropagationRuns back
	// the best-first loop's re-seeding heuristic.
	CheckedLeaves           int
	TreeCheckedLeaves       int
	NoBetterPropagationRuns int
	MaxCheck                int
}

const defaultHashExp = 12

// New allocates a workspace with an initial visited-set size of
// 2^hashExp slots and starting queue capacities.
func New(hashExp, queueCapacity int) *Workspace {
	if hashExp <= 0 {
		hashExp = defaultHashExp
	}
	return &Workspace{
		NGQueue:    queue.NewMin(queueCapacity),
		TreePivots: newPivotQueue(queueCapacity),
		visited:    newVisitedSet(hashExp),
		Result:     NewResult(1),
	}
}

// HashTableExponent returns the size actually allocated for the visited
// set, which may exceed the constructor's hashExp after growth.
func (w *Workspace) HashTableExponent() int { return w.visited.hashTableExponent() }

// Reset empties the queues and visited set in O(1) amortized time (via
// the visited set's dirty list) and seeds the top-k Result buffer with
// capacity k.
func (w *Workspace) Reset(maxCheck, k int) {
	w.NGQueue.Reset()
	w.TreePivots.Reset()

	w.visited.reset(w.visited.hashTableExponent())
	w.Result.Reset(k)
	w.CheckedLeaves = 0
	w.TreeCheckedLeaves = 0
	w.NoBetterPropagationRuns = 0
	w.MaxCheck = maxCheck
}

// CheckAndSet marks vid visited in this workspace and reports whether it
// had already been visited during the current query.
func (w *Workspace) CheckAndSet(vid core.VID) bool {
	return w.visited.checkAndSet(vid)
}

// PushCandidate pushes (vid, dist) onto the main NGQueue.
func (w *Workspace) PushCandidate(vid core.VID, dist float32) {
	w.NGQueue.PushItem(queue.CandidateItem{VID: vid, Dist: dist})
}

// PopCandidate pops the closest candidate from the main NGQueue.
func (w *Workspace) PopCandidate() (core.VID, float32, bool) {
	item, ok := w.NGQueue.PopItem()
	if !ok {
		return 0, 0, false
	}
	return item.VID, item.Dist, true
}

// PushTreePivot pushes a not-yet-explored subtree root (within tree
// treeIdx) onto the secondary priority queue, keyed by its estimated
// boundary distance.
func (w *Workspace) PushTreePivot(treeIdx, childPtr int32, boundDist float32) {
	w.TreePivots.Push(PivotItem{TreeIdx: treeIdx, ChildPtr: childPtr, Dist: boundDist})
}

// PopTreePivot pops the nearest not-yet-explored subtree pivot.
func (w *Workspace) PopTreePivot() (PivotItem, bool) {
	return w.TreePivots.Pop()
}
