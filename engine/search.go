package engine

import (
	"context"
	"time"

	"github.com/hybridann/hybridann/core"
	"github.com/hybridann/hybridann/internal/kdtree"
	"github.com/hybridann/hybridann/internal/prefetch"
	"github.com/hybridann/hybridann/internal/workspace"
	"github.com/hybridann/hybridann/quantize"
)

// SearchOptions configures a Search call.
type SearchOptions struct {
	// K is the number of nearest neighbors requested.
	K int

	// SearchDeleted, when true, selects the raw search variant: tombstoned
	// ids may be returned. When false (the default), the deletion-aware
	// variant is used whenever the deleted set is non-empty: the engine
	// picks raw search when the deleted set is empty, or when the caller
	// sets SearchDeleted.
	SearchDeleted bool

	// WithMetadata attaches each result's payload via the metadata
	// sideband, when one is configured.
	WithMetadata bool
}

// SearchResult is one ranked hit.
type SearchResult struct {
	VID      core.VID
	Dist     float32
	Metadata []byte
}

// Search runs the best-first graph search against target and returns up to
// opts.K nearest neighbors ascending by distance.
func (e *Engine[T]) Search(ctx context.Context, target []float32, opts SearchOptions) ([]SearchResult, error) {
	if !e.Ready() {
		return nil, ErrNotReady
	}
	if len(target) != e.dim {
		err := &ErrDimensionMismatch{Expected: e.dim, Actual: len(target)}
		e.logger.LogSearch(ctx, opts.K, 0, err)
		return nil, err
	}
	if opts.K <= 0 {
		return nil, ErrLackOfInputs
	}

	start := time.Now()
	qv := quantize.NewQueryVector[T](target, e.quantizer)
	deletionAware := e.deleted.Count() > 0 && !opts.SearchDeleted

	candidates := e.search(qv.Quantized, opts.K, e.Parameters.MaxCheck, deletionAware)

	results := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = SearchResult{VID: c.VID, Dist: c.Dist}
		if opts.WithMetadata && e.metadata != nil && c.VID >= 0 {
			results[i].Metadata = e.metadata.GetMetadataCopy(c.VID)
		}
	}

	e.metrics.RecordSearch(time.Since(start), 0, len(results), nil)
	e.logger.LogSearch(ctx, opts.K, len(results), nil)
	return results, nil
}

// search runs the tree-seeded best-first loop to completion against a
// quantized query and returns up to k candidates, sorted ascending by
// distance. Callers that already hold treeMu (e.g. a re-entrant internal
// caller) must not call this -- it takes a shared read lock on the tree
// lock itself for the duration of the query.
func (e *Engine[T]) search(query []T, k, maxCheck int, deletionAware bool) []workspace.Candidate {
	e.treeMu.RLock()
	defer e.treeMu.RUnlock()

	ws := e.pool.Rent()
	defer e.pool.Return(ws)

	ws.Reset(maxCheck, k)
	e.forest.InitSearchTrees(ws)
	kdtree.SearchTrees(e.forest, e.store, e.kernel, query, ws, e.Parameters.NumberOfInitialDynamicPivots)

	e.bestFirstLoop(ws, query, deletionAware)

	ws.Result.SortResult()
	items := ws.Result.Items()
	out := make([]workspace.Candidate, len(items))
	copy(out, items)
	return out
}

// bestFirstLoop alternates popping the closest unexpanded candidate,
// offering it to the top-k result (skipping tombstoned ids in
// deletion-aware mode), and expanding its graph neighbors, re-seeding from
// the KD-forest when local propagation stalls.
func (e *Engine[T]) bestFirstLoop(ws *workspace.Workspace, query []T, deletionAware bool) {
	for {
		vid, dist, ok := ws.PopCandidate()
		if !ok {
			return
		}

		row := e.graph.Row(vid)
		prefetch.Row(row)

		if !(deletionAware && e.deleted.Contains(vid)) {
			added := ws.Result.AddPoint(vid, dist)
			if !added && ws.CheckedLeaves > ws.MaxCheck {
				return
			}
		}

		upperBound := dist
		if wd := ws.Result.WorstDist(); wd > upperBound {
			upperBound = wd
		}

		productive := false
		for _, n := range row {
			if n == core.InvalidVID {
				break
			}
			if ws.CheckAndSet(n) {
				continue
			}
			neighborRow := e.store.Row(n)
			prefetch.Row(neighborRow)
			d := e.kernel(query, neighborRow, e.dim)
			if d <= upperBound {
				productive = true
			}
			ws.CheckedLeaves++
			ws.PushCandidate(n, d)
		}

		if productive {
			ws.NoBetterPropagationRuns = 0
		} else {
			ws.NoBetterPropagationRuns++
		}

		if ws.NoBetterPropagationRuns > e.Parameters.ThresholdOfNumberOfContinuousNoBetterPropagation {
			if ws.TreeCheckedLeaves <= ws.CheckedLeaves/10 {
				limit := e.Parameters.NumberOfOtherDynamicPivots + ws.CheckedLeaves
				kdtree.SearchTrees(e.forest, e.store, e.kernel, query, ws, limit)
			} else if dist > ws.Result.WorstDist() {
				return
			}
		}
	}
}
