package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hybridann/hybridann/core"
	"github.com/hybridann/hybridann/distance"
	"github.com/hybridann/hybridann/internal/kdtree"
)

// Add appends vectors (and optional payloads) to the index. The first Add
// on an empty engine delegates to Build. Returns the vid assigned to the
// first appended vector.
func (e *Engine[T]) Add(ctx context.Context, vectors [][]float32, payloads [][]byte) (core.VID, error) {
	start := time.Now()

	e.addMu.Lock()
	begin := e.store.R()
	if begin == 0 {
		e.addMu.Unlock()
		if err := e.Build(ctx, vectors, payloads); err != nil {
			e.metrics.RecordAdd(time.Since(start), 0, err)
			return 0, err
		}
		e.metrics.RecordAdd(time.Since(start), len(vectors), nil)
		return 0, nil
	}

	rows, err := flattenRows[T](vectors, e.dim)
	if err != nil {
		e.addMu.Unlock()
		e.logger.LogAdd(ctx, begin, len(vectors), err)
		e.metrics.RecordAdd(time.Since(start), 0, err)
		return 0, err
	}
	n := len(vectors)

	if err := e.store.AddBatch(rows, n); err != nil {
		e.store.SetR(begin)
		e.addMu.Unlock()
		werr := translateStoreErr(err)
		e.logger.LogAdd(ctx, begin, n, werr)
		e.metrics.RecordAdd(time.Since(start), 0, werr)
		return 0, werr
	}
	if err := e.graph.AddBatch(n); err != nil {
		e.store.SetR(begin)
		e.graph.SetR(begin)
		e.addMu.Unlock()
		werr := translateGraphErr(err)
		e.logger.LogAdd(ctx, begin, n, werr)
		e.metrics.RecordAdd(time.Since(start), 0, werr)
		return 0, werr
	}
	e.deleted.AddBatch(n)

	if e.metric == distance.MetricCosine && !e.normalized {
		normalizeRange(e.store, begin, begin+n, e.Parameters.NumberOfThreads)
	}

	if e.metadata != nil {
		if payloads == nil {
			payloads = make([][]byte, n)
		}
		if err := e.metadata.Add(payloads); err != nil {
			e.store.SetR(begin)
			e.graph.SetR(begin)
			e.deleted.SetR(begin)
			e.addMu.Unlock()
			werr := fmt.Errorf("%w: %w", ErrFail, err)
			e.logger.LogAdd(ctx, begin, n, werr)
			e.metrics.RecordAdd(time.Since(start), 0, werr)
			return 0, werr
		}
	}

	e.addMu.Unlock()

	if e.R()-int(e.treesSize.Load()) >= e.Parameters.AddCountForRebuildTrees {
		e.rebuild.enqueue(func() { e.rebuildTrees(ctx) })
	}

	searchFn := e.graphSearchFunc()
	distFn := e.graphDistFunc()
	for i := 0; i < n; i++ {
		vid := core.VID(begin + i)
		e.graph.RefineNode(vid, true, true, e.Parameters.AddCEF, searchFn, distFn)
	}

	e.logger.LogAdd(ctx, begin, n, nil)
	e.metrics.RecordAdd(time.Since(start), n, nil)
	return core.VID(begin), nil
}

// rebuildTrees is the background tree-rebuild job body: rebuilds the
// KD-forest over every currently non-deleted id, under treeLock
// exclusive.
func (e *Engine[T]) rebuildTrees(ctx context.Context) {
	start := time.Now()
	r := e.R()

	ids := make([]core.VID, 0, r)
	for i := 0; i < r; i++ {
		vid := core.VID(i)
		if !e.deleted.Contains(vid) {
			ids = append(ids, vid)
		}
	}

	newForest := kdtree.NewForest[T](e.Parameters.NumberOfTrees, e.Parameters.TopDimensionsInTreeNode, e.Parameters.SamplesPerNodeInTree, e.rng.Seed()+int64(r))
	err := newForest.Build(e.store, ids, e.Parameters.NumberOfThreads)

	e.treeMu.Lock()
	if err == nil {
		e.forest = newForest
		e.treesSize.Store(int64(r))
	}
	e.treeMu.Unlock()

	e.logger.LogRebuildTrees(ctx, r, err)
	e.metrics.RecordCompaction(time.Since(start), r, err)
}
