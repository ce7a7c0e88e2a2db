// Package graph implements the neighborhood graph (C4): a fixed-degree
// directed adjacency matrix over vector ids, grown and refined the same
// lock-free way as the sample store. It is grounded on
// internal/store.Store's block-partitioned, atomic.Pointer-based growth
// (internal/store/store.go), widened from one T element per row slot to
// one core.VID neighbor per row slot, and on the teacher's per-key
// sharded-lock pattern for edge reciprocation during refine.
package graph

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hybridann/hybridann/core"
)

// rowBlock holds blockSize rows of K neighbor slots each, row-major so
// Row(i) is a contiguous slice into block.items.
type rowBlock struct {
	items []core.VID
}

// lockShards is the number of per-row mutexes sharded across all vids,
// indexed by vid mod lockShards.
const lockShards = 256

// Graph is the fixed-degree adjacency matrix. Row i holds up to K
// core.VIDs ranked by ascending distance to i, sentinel core.InvalidVID
// terminating a short row.
type Graph struct {
	k         int
	blockSize int
	capacity  int

	blocks atomic.Pointer[[]*rowBlock]
	r      atomic.Uint32

	growMu   sync.Mutex
	rowLocks [lockShards]sync.Mutex
}

// New constructs an empty graph with K neighbors per row.
func New(k, blockSize, capacity int) *Graph {
	g := &Graph{k: k, blockSize: blockSize, capacity: capacity}
	empty := make([]*rowBlock, 0)
	g.blocks.Store(&empty)
	return g
}

// K returns the fixed out-degree.
func (g *Graph) K() int { return g.k }

// BlockSize returns the row count per block.
func (g *Graph) BlockSize() int { return g.blockSize }

// Capacity returns the maximum number of rows this graph can hold.
func (g *Graph) Capacity() int { return g.capacity }

// R returns the current logical row count.
func (g *Graph) R() int { return int(g.r.Load()) }

// SetR truncates the logical row count, used to roll back a partially
// completed AddBatch across the sample store, graph, and deleted set.
func (g *Graph) SetR(r int) { g.r.Store(uint32(r)) }

// Row returns the K-slot neighbor slice for vid, or nil if vid falls
// outside allocated block storage.
func (g *Graph) Row(vid core.VID) []core.VID {
	i := uint32(vid)
	blockIdx := int(i) / g.blockSize
	offset := int(i) % g.blockSize

	blocks := g.blocks.Load()
	if blocks == nil || blockIdx >= len(*blocks) {
		return nil
	}
	b := (*blocks)[blockIdx]
	if b == nil {
		return nil
	}
	start := offset * g.k
	return b.items[start : start+g.k]
}

// lockFor returns the sharded mutex guarding row vid during reciprocated
// edge insertion.
func (g *Graph) lockFor(vid core.VID) *sync.Mutex {
	return &g.rowLocks[uint32(vid)%lockShards]
}

// AddBatch extends the graph by n rows, each initialized to all
// core.InvalidVID (sentinel).
func (g *Graph) AddBatch(n int) error {
	if n == 0 {
		return nil
	}
	if g.R()+n > g.capacity {
		return ErrMemoryOverflow
	}
	begin := g.R()
	for i := 0; i < n; i++ {
		vid := core.VID(begin + i)
		g.ensureBlock(int(vid) / g.blockSize)
		row := g.Row(vid)
		for j := range row {
			row[j] = core.InvalidVID
		}
	}
	g.r.Add(uint32(n))
	return nil
}

// ensureBlock guarantees blockIdx is allocated, growing the block list
// under growMu using copy-on-write so concurrent readers of an older
// snapshot never observe a torn block list.
func (g *Graph) ensureBlock(blockIdx int) {
	blocks := g.blocks.Load()
	if blockIdx < len(*blocks) && (*blocks)[blockIdx] != nil {
		return
	}

	g.growMu.Lock()
	defer g.growMu.Unlock()

	blocks = g.blocks.Load()
	if blockIdx < len(*blocks) && (*blocks)[blockIdx] != nil {
		return
	}

	next := make([]*rowBlock, blockIdx+1)
	copy(next, *blocks)
	for i := range next {
		if next[i] == nil {
			next[i] = &rowBlock{items: make([]core.VID, g.blockSize*g.k)}
		}
	}
	g.blocks.Store(&next)
}

// ErrMemoryOverflow mirrors internal/store.ErrMemoryOverflow: AddBatch
// refuses to exceed capacity rather than growing unbounded.
var ErrMemoryOverflow = fmt.Errorf("graph: capacity exceeded")
