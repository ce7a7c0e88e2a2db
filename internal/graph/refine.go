package graph

import (
	"encoding/binary"
	"io"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hybridann/hybridann/core"
)

// Candidate is a (vid, distance) pair returned by a search, ascending by
// distance. It mirrors internal/workspace.Candidate's shape without
// importing that package, keeping graph free of any dependency on the
// search machinery that sits above it (engine injects search behavior
// instead, breaking what would otherwise be a graph<->engine import
// cycle).
type Candidate struct {
	VID  core.VID
	Dist float32
}

// SearchFunc runs a CEF-wide best-first search seeded from vid's own
// vector and returns up to cef candidates ascending by distance,
// including vid's current neighbors (since the graph search naturally
// revisits existing edges). Supplied by the engine.
type SearchFunc func(vid core.VID, cef int) []Candidate

// DistFunc returns the symmetric distance between two ids' rows in the
// sample store. Supplied by the engine so graph never imports distance
// or store directly.
type DistFunc func(a, b core.VID) float32

// RefineNode re-derives vid's neighbor list from a CEF-wide search and,
// if reciprocate is set, offers vid as a candidate neighbor to each
// selected neighbor's own row.
func (g *Graph) RefineNode(vid core.VID, updateNeighbors, reciprocate bool, cef int, search SearchFunc, dist DistFunc) {
	candidates := search(vid, cef)
	selected := selectNeighbors(vid, candidates, g.k)

	if updateNeighbors {
		lock := g.lockFor(vid)
		lock.Lock()
		row := g.Row(vid)
		for i, c := range selected {
			row[i] = c.VID
		}
		for i := len(selected); i < len(row); i++ {
			row[i] = core.InvalidVID
		}
		lock.Unlock()
	}

	if !reciprocate {
		return
	}
	for _, c := range selected {
		g.insertReciprocal(c.VID, vid, c.Dist, dist)
	}
}

// selectNeighbors dedupes candidates, drops vid itself, and keeps the
// first min(k, len) entries (candidates are already ascending by
// distance).
func selectNeighbors(vid core.VID, candidates []Candidate, k int) []Candidate {
	seen := make(map[core.VID]bool, len(candidates))
	out := make([]Candidate, 0, k)
	for _, c := range candidates {
		if c.VID == vid || seen[c.VID] {
			continue
		}
		seen[c.VID] = true
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out
}

// insertReciprocal offers newVID as a neighbor of m, inserting it in
// ascending-distance order (recomputing each existing neighbor's distance
// to m via dist) and dropping m's current farthest neighbor if the row is
// already full, under m's sharded row lock.
func (g *Graph) insertReciprocal(m, newVID core.VID, newDist float32, dist DistFunc) {
	lock := g.lockFor(m)
	lock.Lock()
	defer lock.Unlock()

	row := g.Row(m)
	if row == nil {
		return
	}

	type scored struct {
		vid core.VID
		d   float32
	}
	existing := make([]scored, 0, len(row))
	for _, n := range row {
		if n == core.InvalidVID {
			continue
		}
		if n == newVID {
			return // already a neighbor
		}
		existing = append(existing, scored{vid: n, d: dist(m, n)})
	}

	if len(existing) < len(row) {
		existing = append(existing, scored{vid: newVID, d: newDist})
	} else if newDist < existing[len(existing)-1].d {
		existing[len(existing)-1] = scored{vid: newVID, d: newDist}
	} else {
		return
	}

	sort.Slice(existing, func(i, j int) bool { return existing[i].d < existing[j].d })
	for i, s := range existing {
		row[i] = s.vid
	}
	for i := len(existing); i < len(row); i++ {
		row[i] = core.InvalidVID
	}
}

// BuildGraph initializes every row in ids by running RefineNode with
// reciprocation, in parallel across numThreads workers.
func (g *Graph) BuildGraph(ids []core.VID, cef int, numThreads int, search SearchFunc, dist DistFunc) error {
	if numThreads < 1 {
		numThreads = 1
	}
	gr := new(errgroup.Group)
	gr.SetLimit(numThreads)
	for _, id := range ids {
		id := id
		gr.Go(func() error {
			g.RefineNode(id, true, true, cef, search, dist)
			return nil
		})
	}
	return gr.Wait()
}

// Refine rebuilds adjacency for a compacted id space into out: new row j
// is old row indices[j], with neighbors remapped through reverseIndices
// (old id -> new id, or core.InvalidVID if the old id did not survive).
// Dropped neighbors simply vacate their slot; since only removal happens
// and the source row was already ascending by distance, the surviving
// prefix stays correctly ordered without an explicit re-sort.
func (g *Graph) Refine(indices []core.VID, reverseIndices []core.VID, out *Graph) error {
	out.k = g.k
	out.blockSize = g.blockSize
	out.capacity = g.capacity
	if len(indices) > out.capacity {
		out.capacity = len(indices)
	}
	out.r.Store(0)
	empty := make([]*rowBlock, 0)
	out.blocks.Store(&empty)

	if err := out.AddBatch(len(indices)); err != nil {
		return err
	}
	for j, oldID := range indices {
		oldRow := g.Row(oldID)
		newRow := out.Row(core.VID(j))
		w := 0
		for _, n := range oldRow {
			if n == core.InvalidVID {
				break
			}
			if mapped := reverseIndices[n]; mapped != core.InvalidVID {
				newRow[w] = mapped
				w++
			}
		}
		for ; w < len(newRow); w++ {
			newRow[w] = core.InvalidVID
		}
	}
	return nil
}

// RefineStream performs the same compaction as Refine but writes the
// graph blob (header then rows) directly to w without materializing an
// intermediate *Graph, for the streaming form of refine.
func (g *Graph) RefineStream(indices []core.VID, reverseIndices []core.VID, w io.Writer) (int64, error) {
	hdr := header{R: uint64(len(indices)), K: uint32(g.k)}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return 0, err
	}
	written := int64(binary.Size(hdr))

	row := make([]int32, g.k)
	for _, oldID := range indices {
		oldRow := g.Row(oldID)
		for i := range row {
			row[i] = int32(core.InvalidVID)
		}
		wpos := 0
		for _, n := range oldRow {
			if n == core.InvalidVID {
				break
			}
			if mapped := reverseIndices[n]; mapped != core.InvalidVID {
				row[wpos] = int32(mapped)
				wpos++
			}
		}
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return written, err
		}
		written += int64(4 * g.k)
	}
	return written, nil
}
