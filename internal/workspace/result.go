package workspace

import (
	"math"
	"sort"

	"github.com/hybridann/hybridann/core"
)

// Candidate is one (vid, distance) pair in a finalized result set.
type Candidate struct {
	VID  core.VID
	Dist float32
}

// Result is the bounded min-distance top-k buffer: AddPoint reports
// whether the point entered the top-k, worstDist is the current k-th
// smallest (or +Inf while under-full), and SortResult finalizes ascending
// order.
type Result struct {
	k      int
	items  []Candidate
	sorted bool
}

// NewResult allocates a Result with capacity k.
func NewResult(k int) *Result {
	return &Result{k: k, items: make([]Candidate, 0, k)}
}

// Reset empties the buffer and resizes its capacity to k.
func (r *Result) Reset(k int) {
	r.k = k
	if cap(r.items) < k {
		r.items = make([]Candidate, 0, k)
	} else {
		r.items = r.items[:0]
	}
	r.sorted = false
}

// WorstDist returns the current k-th smallest distance, or +Inf while the
// buffer holds fewer than k points.
func (r *Result) WorstDist() float32 {
	if len(r.items) < r.k {
		return float32InfPos
	}
	worst := r.items[0].Dist
	for _, it := range r.items[1:] {
		if it.Dist > worst {
			worst = it.Dist
		}
	}
	return worst
}

// AddPoint offers (vid, dist) to the top-k buffer. Returns true iff the
// point entered the buffer (either the buffer was under-full, or dist beat
// the current worst and replaced it). Duplicate vids are not deduplicated
// here -- the caller's visited set already prevents the same vid from
// being offered twice within one query.
func (r *Result) AddPoint(vid core.VID, dist float32) bool {
	r.sorted = false
	if len(r.items) < r.k {
		r.items = append(r.items, Candidate{VID: vid, Dist: dist})
		return true
	}

	worstIdx, worstDist := 0, r.items[0].Dist
	for i := 1; i < len(r.items); i++ {
		if r.items[i].Dist > worstDist {
			worstIdx, worstDist = i, r.items[i].Dist
		}
	}
	if dist >= worstDist {
		return false
	}
	r.items[worstIdx] = Candidate{VID: vid, Dist: dist}
	return true
}

// SortResult finalizes ascending-by-distance order.
func (r *Result) SortResult() {
	if r.sorted {
		return
	}
	sort.Slice(r.items, func(i, j int) bool { return r.items[i].Dist < r.items[j].Dist })
	r.sorted = true
}

// Items returns the finalized candidates. Call SortResult first.
func (r *Result) Items() []Candidate { return r.items }

// Len returns the number of points currently buffered.
func (r *Result) Len() int { return len(r.items) }

var float32InfPos = float32(math.Inf(1))
