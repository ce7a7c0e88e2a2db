package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hybridann/hybridann/core"
	"github.com/hybridann/hybridann/distance"
	"github.com/hybridann/hybridann/internal/deletedset"
	"github.com/hybridann/hybridann/internal/graph"
	"github.com/hybridann/hybridann/internal/kdtree"
	"github.com/hybridann/hybridann/internal/store"
	"github.com/hybridann/hybridann/internal/workspace"
	"github.com/hybridann/hybridann/metadata"
	"github.com/hybridann/hybridann/quantize"
	"github.com/hybridann/hybridann/util"
)

// Engine is the index engine: the orchestrator binding the sample store,
// deleted set, KD-forest, neighborhood graph, and workspace pool into
// Build/Add/Delete/Search/Refine/Save/Load. It is generic over the sample
// element type, the same way internal/store's Store[T] is.
type Engine[T core.Element] struct {
	Parameters Parameters
	params     []paramEntry

	dim int

	store   *store.Store[T]
	deleted *deletedset.Set
	forest  *kdtree.Forest[T]
	graph   *graph.Graph
	pool    *workspace.Pool

	metadata  metadata.Store // nil when no metadata sideband was requested
	quantizer quantize.Quantizer[T]

	metric     distance.Metric
	kernel     distance.Kernel[T]
	baseSquare float32
	normalized bool // rows are already unit-norm; skip auto-normalization

	logger  *Logger
	metrics MetricsCollector

	ready atomic.Bool

	addMu    sync.Mutex   // addLock
	deleteMu sync.RWMutex // deleteLock
	treeMu   sync.RWMutex // treeLock

	treesSize atomic.Int64 // R at the time trees were last (re)built
	rebuild   *rebuildJob

	rng *util.RNG
}

// Option configures an Engine at construction time.
type Option[T core.Element] func(*Engine[T])

// WithLogger sets the engine's logger. The default is a no-op logger.
func WithLogger[T core.Element](l *Logger) Option[T] {
	return func(e *Engine[T]) { e.logger = l }
}

// WithMetrics sets the engine's metrics collector. The default is
// NoopMetricsCollector.
func WithMetrics[T core.Element](m MetricsCollector) Option[T] {
	return func(e *Engine[T]) { e.metrics = m }
}

// WithMetadata enables the metadata sideband, backed by store.
func WithMetadata[T core.Element](store metadata.Store) Option[T] {
	return func(e *Engine[T]) { e.metadata = store }
}

// WithQuantizer overrides the default Identity[T] quantizer.
func WithQuantizer[T core.Element](q quantize.Quantizer[T]) Option[T] {
	return func(e *Engine[T]) { e.quantizer = q }
}

// WithPreNormalized marks the corpus as already unit-norm under cosine,
// skipping Build/Add's auto-normalization pass.
func WithPreNormalized[T core.Element](v bool) Option[T] {
	return func(e *Engine[T]) { e.normalized = v }
}

// WithSeed fixes the RNG seed used by the KD-forest's randomized splits.
func WithSeed[T core.Element](seed int64) Option[T] {
	return func(e *Engine[T]) { e.rng = util.NewRNG(seed) }
}

// New constructs an unbuilt Engine for dim-dimensional vectors. Call
// Build (directly, or implicitly via the first Add) before Search.
func New[T core.Element](dim int, params Parameters, opts ...Option[T]) (*Engine[T], error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrFail, dim)
	}

	e := &Engine[T]{
		Parameters: params,
		dim:        dim,
		logger:     NoopLogger(),
		metrics:    NoopMetricsCollector{},
		quantizer:  quantize.Identity[T]{},
		rng:        util.NewRNG(1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.params = paramTable(&e.Parameters, func(name string) error {
		if name == "DistCalcMethod" {
			return e.resolveDistance()
		}
		return nil
	})
	if err := e.resolveDistance(); err != nil {
		return nil, err
	}

	e.store = store.New[T](dim, e.Parameters.DataBlockSize, e.Parameters.DataCapacity)
	e.graph = graph.New(e.Parameters.NeighborhoodSize, e.Parameters.DataBlockSize, e.Parameters.DataCapacity)
	e.deleted = deletedset.New(0)
	e.forest = kdtree.NewForest[T](e.Parameters.NumberOfTrees, e.Parameters.TopDimensionsInTreeNode, e.Parameters.SamplesPerNodeInTree, e.rng.Seed())
	e.pool = workspace.NewPool(e.Parameters.NumberOfThreads, e.Parameters.HashTableExponent, e.Parameters.CEF)
	e.rebuild = newRebuildJob()

	return e, nil
}

// Ready reports whether Build has completed at least once.
func (e *Engine[T]) Ready() bool { return e.ready.Load() }

// Dimension returns D.
func (e *Engine[T]) Dimension() int { return e.dim }

// R returns the current logical row count.
func (e *Engine[T]) R() int { return e.store.R() }

// DeletedCount returns a snapshot count of tombstoned ids.
func (e *Engine[T]) DeletedCount() int { return e.deleted.Count() }

// DeletedBitmap returns a compact Roaring bitmap snapshot of tombstoned
// vector ids, for reporting or export without walking the deleted set's
// segmented words directly.
func (e *Engine[T]) DeletedBitmap() *roaring.Bitmap { return e.deleted.Bitmap() }

// rowToFloat32 widens a native-T row to float32 for normalization math,
// regardless of which of the four element types T is.
func rowToFloat32[T core.Element](row []T) []float32 {
	out := make([]float32, len(row))
	for i, v := range row {
		out[i] = float32(v)
	}
	return out
}

// normalizeRowInPlace L2-normalizes row (interpreted as a float32 vector)
// and rescales back into T's native range via distance.Base[T](), so
// integer element types retain full precision the same way the original
// GetBase<T>() scale does.
func normalizeRowInPlace[T core.Element](row []T) {
	f := rowToFloat32(row)
	if !distance.NormalizeL2InPlace(f) {
		return
	}
	base := distance.Base[T]()
	for i, v := range f {
		row[i] = T(v * base)
	}
}

// flattenRows packs vectors (each of length dim) into one row-major
// slice of T, converting from float32 input.
func flattenRows[T core.Element](vectors [][]float32, dim int) ([]T, error) {
	out := make([]T, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
		for _, x := range v {
			out = append(out, T(x))
		}
		_ = i
	}
	return out, nil
}

// Build validates inputs, initializes the sample store, deleted set, and
// KD-forest/graph from vectors, and marks the engine ready.
func (e *Engine[T]) Build(ctx context.Context, vectors [][]float32, payloads [][]byte) error {
	if len(vectors) == 0 {
		return ErrEmptyData
	}

	rows, err := flattenRows[T](vectors, e.dim)
	if err != nil {
		e.logger.LogBuild(ctx, 0, e.dim, err)
		return err
	}

	n := len(vectors)
	if err := e.store.Initialize(n, e.dim, e.Parameters.DataBlockSize, e.Parameters.DataCapacity, rows); err != nil {
		e.logger.LogBuild(ctx, n, e.dim, err)
		return translateStoreErr(err)
	}

	if e.metric == distance.MetricCosine && !e.normalized {
		normalizeRange(e.store, 0, n, e.Parameters.NumberOfThreads)
	}

	e.deleted = deletedset.New(uint64(n))

	if err := e.graph.AddBatch(n); err != nil {
		e.logger.LogBuild(ctx, n, e.dim, err)
		return translateGraphErr(err)
	}

	ids := make([]core.VID, n)
	for i := range ids {
		ids[i] = core.VID(i)
	}
	if err := e.forest.Build(e.store, ids, e.Parameters.NumberOfThreads); err != nil {
		e.logger.LogBuild(ctx, n, e.dim, err)
		return fmt.Errorf("%w: %w", ErrFail, err)
	}
	e.treesSize.Store(int64(n))

	if err := e.graph.BuildGraph(ids, e.Parameters.CEF, e.Parameters.NumberOfThreads, e.graphSearchFunc(), e.graphDistFunc()); err != nil {
		e.logger.LogBuild(ctx, n, e.dim, err)
		return fmt.Errorf("%w: %w", ErrFail, err)
	}

	if e.metadata != nil {
		if payloads == nil {
			payloads = make([][]byte, n)
		}
		if err := e.metadata.Add(payloads); err != nil {
			e.logger.LogBuild(ctx, n, e.dim, err)
			return fmt.Errorf("%w: %w", ErrFail, err)
		}
	}

	e.ready.Store(true)
	e.logger.LogBuild(ctx, n, e.dim, nil)
	return nil
}

// normalizeRange normalizes store rows [begin, end) to unit norm in
// parallel across numThreads workers, grounded on the teacher's
// data-parallel loop convention and matching how kdtree.Build and
// graph.BuildGraph bound their own worker fan-out via errgroup.SetLimit.
func normalizeRange[T core.Element](s *store.Store[T], begin, end, numThreads int) {
	if numThreads < 1 {
		numThreads = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(numThreads)
	for i := begin; i < end; i++ {
		i := i
		g.Go(func() error {
			normalizeRowInPlace(s.Row(core.VID(i)))
			return nil
		})
	}
	_ = g.Wait()
}

// graphSearchFunc adapts the engine's best-first search into
// graph.SearchFunc, seeding from vid's own stored row and using
// MaxCheckForRefineGraph as the search's check budget.
func (e *Engine[T]) graphSearchFunc() graph.SearchFunc {
	return func(vid core.VID, cef int) []graph.Candidate {
		query := e.store.Row(vid)
		candidates := e.search(query, cef, e.Parameters.MaxCheckForRefineGraph, false)
		out := make([]graph.Candidate, len(candidates))
		for i, c := range candidates {
			out[i] = graph.Candidate{VID: c.VID, Dist: c.Dist}
		}
		return out
	}
}

// graphDistFunc adapts the engine's distance kernel into graph.DistFunc.
func (e *Engine[T]) graphDistFunc() graph.DistFunc {
	return func(a, b core.VID) float32 {
		return e.kernel(e.store.Row(a), e.store.Row(b), e.dim)
	}
}

func translateStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if err == store.ErrMemoryOverflow {
		return ErrMemoryOverflow
	}
	return fmt.Errorf("%w: %w", ErrFail, err)
}

func translateGraphErr(err error) error {
	if err == nil {
		return nil
	}
	if err == graph.ErrMemoryOverflow {
		return ErrMemoryOverflow
	}
	return fmt.Errorf("%w: %w", ErrFail, err)
}
