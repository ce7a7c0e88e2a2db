// Package kdtree implements the KD-forest: a small set of randomized
// KD-trees over the sample store that seed a query's best-first graph
// search with globally-spread candidates. Grounded on
// original_source/AnnService/src/Core/KDT/KDTIndex.cpp's BuildTrees /
// InitSearchTrees / SearchTrees, adapted to Go generics and to the
// workspace package's pivot queue instead of a raw encoded-integer stack.
package kdtree

import (
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hybridann/hybridann/core"
	"github.com/hybridann/hybridann/distance"
	"github.com/hybridann/hybridann/internal/workspace"
	"github.com/hybridann/hybridann/util"
)

// RowSource is the slice of the sample store the forest needs: random
// access to a row by vid and the row dimension.
type RowSource[T core.Element] interface {
	Row(vid core.VID) []T
	Dimension() int
}

// Node is one KD-tree split: (split dimension, split value, left, right).
// A negative child encodes a leaf; core.LeafVID recovers the vector id.
type Node struct {
	SplitDim   int32
	SplitValue float32
	Left       int32
	Right      int32
}

// Tree is one randomized KD-tree. nodes[0] is not necessarily the root --
// root holds the actual entry point, since a single-element tree's root
// is itself a leaf-encoded pointer with no node allocated.
type Tree struct {
	nodes []Node
	root  int32
}

// Forest is the KD-forest: numTrees independent randomized trees sharing
// a pool of candidate split dimensions.
type Forest[T core.Element] struct {
	Trees          []*Tree
	NumTrees       int
	TopDimensions  int
	SamplesPerNode int
	rng            *util.RNG
}

// NewForest constructs an empty forest. Call Build before searching.
func NewForest[T core.Element](numTrees, topDimensions, samplesPerNode int, seed int64) *Forest[T] {
	return &Forest[T]{
		NumTrees:       numTrees,
		TopDimensions:  topDimensions,
		SamplesPerNode: samplesPerNode,
		rng:            util.NewRNG(seed),
	}
}

// Build grows NumTrees independent randomized trees over ids, built in
// parallel, data-parallel across numThreads workers.
func (f *Forest[T]) Build(rows RowSource[T], ids []core.VID, numThreads int) error {
	if len(ids) == 0 {
		f.Trees = nil
		return nil
	}
	if numThreads < 1 {
		numThreads = 1
	}

	trees := make([]*Tree, f.NumTrees)
	g := new(errgroup.Group)
	g.SetLimit(numThreads)

	for i := 0; i < f.NumTrees; i++ {
		i := i
		seed := f.rng.Seed() + int64(i)*2654435761
		g.Go(func() error {
			trees[i] = buildTree(rows, ids, util.NewRNG(seed), f.TopDimensions, f.SamplesPerNode)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.Trees = trees
	return nil
}

func buildTree[T core.Element](rows RowSource[T], ids []core.VID, rng *util.RNG, topDimensions, samplesPerNode int) *Tree {
	t := &Tree{}
	idsCopy := make([]core.VID, len(ids))
	copy(idsCopy, ids)
	t.root = buildSubtree(t, rows, idsCopy, rng, topDimensions, samplesPerNode)
	return t
}

// buildSubtree recursively partitions ids, stopping at one element per
// leaf, and returns the node-or-leaf pointer for this subtree's root. It
// is a free function rather than a *Tree method because Go methods
// cannot carry their own type parameters, and Tree itself is not generic
// over the element type (only its construction is).
func buildSubtree[T core.Element](t *Tree, rows RowSource[T], ids []core.VID, rng *util.RNG, topDimensions, samplesPerNode int) int32 {
	if len(ids) <= 1 {
		return core.EncodeLeaf(ids[0])
	}

	dim := rows.Dimension()
	splitDim, splitValue := chooseSplit(rows, ids, rng, dim, topDimensions, samplesPerNode)

	left, right := partition(rows, ids, splitDim, splitValue)
	if len(left) == 0 || len(right) == 0 {
		left, right = medianFallback(rows, ids, splitDim)
	}

	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, Node{SplitDim: int32(splitDim), SplitValue: splitValue})

	leftChild := buildSubtree(t, rows, left, rng, topDimensions, samplesPerNode)
	rightChild := buildSubtree(t, rows, right, rng, topDimensions, samplesPerNode)
	t.nodes[idx].Left = leftChild
	t.nodes[idx].Right = rightChild
	return idx
}

// chooseSplit samples up to samplesPerNode ids, picks one of the
// topDimensions highest-variance dimensions at random, and returns that
// dimension with its sample median as the split value.
func chooseSplit[T core.Element](rows RowSource[T], ids []core.VID, rng *util.RNG, dim, topDimensions, samplesPerNode int) (int, float32) {
	sample := sampleIDs(ids, samplesPerNode, rng)

	means := make([]float64, dim)
	for _, id := range sample {
		row := rows.Row(id)
		for d := 0; d < dim; d++ {
			means[d] += float64(row[d])
		}
	}
	n := float64(len(sample))
	for d := range means {
		means[d] /= n
	}

	variances := make([]float64, dim)
	for _, id := range sample {
		row := rows.Row(id)
		for d := 0; d < dim; d++ {
			diff := float64(row[d]) - means[d]
			variances[d] += diff * diff
		}
	}

	order := make([]int, dim)
	for d := range order {
		order[d] = d
	}
	sort.Slice(order, func(i, j int) bool { return variances[order[i]] > variances[order[j]] })

	top := topDimensions
	if top > len(order) {
		top = len(order)
	}
	if top < 1 {
		top = 1
	}
	splitDim := order[rng.Intn(top)]

	vals := make([]float64, len(sample))
	for i, id := range sample {
		vals[i] = float64(rows.Row(id)[splitDim])
	}
	sort.Float64s(vals)
	median := vals[len(vals)/2]

	return splitDim, float32(median)
}

func sampleIDs(ids []core.VID, samplesPerNode int, rng *util.RNG) []core.VID {
	if samplesPerNode <= 0 || samplesPerNode >= len(ids) {
		return ids
	}
	pick := make([]core.VID, samplesPerNode)
	copy(pick, ids[:samplesPerNode])
	for i := samplesPerNode; i < len(ids); i++ {
		j := rng.Intn(i + 1)
		if j < samplesPerNode {
			pick[j] = ids[i]
		}
	}
	return pick
}

func partition[T core.Element](rows RowSource[T], ids []core.VID, splitDim int, splitValue float32) (left, right []core.VID) {
	for _, id := range ids {
		if float32(rows.Row(id)[splitDim]) <= splitValue {
			left = append(left, id)
		} else {
			right = append(right, id)
		}
	}
	return left, right
}

// medianFallback splits ids exactly in half by sorting on splitDim,
// guaranteeing progress when every sampled value landed on one side of
// the chosen split (e.g. all-equal or skewed data).
func medianFallback[T core.Element](rows RowSource[T], ids []core.VID, splitDim int) (left, right []core.VID) {
	sorted := make([]core.VID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return rows.Row(sorted[i])[splitDim] < rows.Row(sorted[j])[splitDim]
	})
	mid := len(sorted) / 2
	return sorted[:mid], sorted[mid:]
}

// InitSearchTrees seeds ws's pivot queue with every tree's root, ready
// for SearchTrees to descend.
func (f *Forest[T]) InitSearchTrees(ws *workspace.Workspace) {
	for i, t := range f.Trees {
		ws.PushTreePivot(int32(i), t.root, 0)
	}
}

// SearchTrees iteratively descends the forest, pulling the nearest
// not-yet-explored pivot from ws's pivot queue each step, until
// ws.TreeCheckedLeaves reaches limit or the pivot queue is drained.
// Every visited leaf is marked in ws's visited set, scored against query,
// offered to ws.Result, and pushed onto ws.NGQueue for the graph-expansion
// phase of the best-first loop.
func SearchTrees[T core.Element](f *Forest[T], rows RowSource[T], kernel distance.Kernel[T], query []T, ws *workspace.Workspace, limit int) {
	dim := rows.Dimension()

	for ws.TreeCheckedLeaves < limit {
		pivot, ok := ws.PopTreePivot()
		if !ok {
			return
		}

		tree := f.Trees[pivot.TreeIdx]
		current := pivot.ChildPtr
		for !core.IsLeafChild(current) {
			node := tree.nodes[current]
			diff := float32(query[node.SplitDim]) - node.SplitValue

			closer, farther := node.Left, node.Right
			if diff > 0 {
				closer, farther = node.Right, node.Left
			}
			bound := float32(math.Abs(float64(diff)))
			ws.PushTreePivot(pivot.TreeIdx, farther, bound)
			current = closer
		}

		vid := core.LeafVID(current)
		if vid < 0 || ws.CheckAndSet(vid) {
			continue
		}

		row := rows.Row(vid)
		d := kernel(query, row, dim)
		ws.Result.AddPoint(vid, d)
		ws.PushCandidate(vid, d)
		ws.TreeCheckedLeaves++
		ws.CheckedLeaves++
	}
}
