package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hybridann/hybridann/core"
	"github.com/hybridann/hybridann/internal/deletedset"
	"github.com/hybridann/hybridann/internal/graph"
	"github.com/hybridann/hybridann/internal/kdtree"
	"github.com/hybridann/hybridann/internal/store"
	"github.com/hybridann/hybridann/internal/workspace"
	"github.com/hybridann/hybridann/persistence"
	"github.com/hybridann/hybridann/util"
)

// computeCompaction performs a tail-swap compaction: it returns, for a
// store of r rows under deleted, the surviving old ids in new-id order
// (indices) and the old->new id map (reverseIndices, core.InvalidVID for
// ids that did not survive).
func computeCompaction(deleted *deletedset.Set, r int) (indices []core.VID, reverseIndices []core.VID) {
	indices = make([]core.VID, 0, r)
	reverseIndices = make([]core.VID, r)
	for i := range reverseIndices {
		reverseIndices[i] = core.InvalidVID
	}

	newR := r
	for i := 0; i < newR; i++ {
		if !deleted.Contains(core.VID(i)) {
			indices = append(indices, core.VID(i))
			reverseIndices[i] = core.VID(i)
			continue
		}
		for newR > i && deleted.Contains(core.VID(newR-1)) {
			newR--
		}
		if newR == i {
			break
		}
		indices = append(indices, core.VID(newR-1))
		reverseIndices[newR-1] = core.VID(i)
		newR--
	}
	return indices, reverseIndices
}

// Refine compacts the index in-memory, returning a fresh Engine over the
// surviving ids with an empty deleted set. It takes addLock and deleteLock
// exclusively; since it only reads from e (never mutates it), a concurrent
// Search against e is unaffected and needs no extra lock here.
func (e *Engine[T]) Refine(ctx context.Context) (*Engine[T], error) {
	start := time.Now()

	e.addMu.Lock()
	defer e.addMu.Unlock()
	e.deleteMu.Lock()
	defer e.deleteMu.Unlock()

	oldR := e.R()
	indices, reverseIndices := computeCompaction(e.deleted, oldR)
	newR := len(indices)
	if newR == 0 {
		e.metrics.RecordRefine(time.Since(start), oldR, 0, ErrEmptyIndex)
		return nil, ErrEmptyIndex
	}

	out, err := e.compactInto(indices, reverseIndices, newR)
	if err != nil {
		e.logger.LogRefine(ctx, oldR, newR, err)
		e.metrics.RecordRefine(time.Since(start), oldR, newR, err)
		return nil, err
	}

	e.logger.LogRefine(ctx, oldR, newR, nil)
	e.metrics.RecordRefine(time.Since(start), oldR, newR, nil)
	return out, nil
}

// compactInto builds a standalone Engine over the compacted id space
// described by indices/reverseIndices, sharing e's configuration
// (parameters, logger, metrics, quantizer, distance kernel) but none of
// its mutable state.
func (e *Engine[T]) compactInto(indices, reverseIndices []core.VID, newR int) (*Engine[T], error) {
	out := &Engine[T]{
		Parameters: e.Parameters,
		dim:        e.dim,
		logger:     e.logger,
		metrics:    e.metrics,
		quantizer:  e.quantizer,
		metric:     e.metric,
		kernel:     e.kernel,
		baseSquare: e.baseSquare,
		normalized: e.normalized,
		rng:        util.NewRNG(e.rng.Seed() + int64(newR) + 1),
	}
	out.params = paramTable(&out.Parameters, func(name string) error {
		if name == "DistCalcMethod" {
			return out.resolveDistance()
		}
		return nil
	})

	out.store = store.New[T](e.dim, e.Parameters.DataBlockSize, e.Parameters.DataCapacity)
	if err := e.store.Refine(indices, out.store); err != nil {
		return nil, translateStoreErr(err)
	}

	out.graph = graph.New(e.Parameters.NeighborhoodSize, e.Parameters.DataBlockSize, e.Parameters.DataCapacity)
	if err := e.graph.Refine(indices, reverseIndices, out.graph); err != nil {
		return nil, translateGraphErr(err)
	}

	out.deleted = deletedset.New(uint64(newR))

	ids := make([]core.VID, newR)
	for i := range ids {
		ids[i] = core.VID(i)
	}
	out.forest = kdtree.NewForest[T](e.Parameters.NumberOfTrees, e.Parameters.TopDimensionsInTreeNode, e.Parameters.SamplesPerNodeInTree, out.rng.Seed())
	if err := out.forest.Build(out.store, ids, e.Parameters.NumberOfThreads); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFail, err)
	}
	out.treesSize.Store(int64(newR))

	out.pool = workspace.NewPool(e.Parameters.NumberOfThreads, e.Parameters.HashTableExponent, e.Parameters.CEF)
	out.rebuild = newRebuildJob()

	if e.metadata != nil {
		refined, err := e.metadata.RefineMetadata(indices)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFail, err)
		}
		out.metadata = refined
	}

	out.ready.Store(true)
	return out, nil
}

// RefineStream compacts the index in place, writing the four blobs
// (samples, trees, graph, deleted -- plus metadata when present) directly
// under dir. The graph stage compacts straight from the old adjacency
// into the blob via (*graph.Graph).RefineStream, without ever holding a
// second full *Graph next to the old one; newGraph is then reconstructed
// from that same blob, the same wire format ReadFrom already reads back
// on Load. abort, if non-nil, is polled before the trees, graph, and
// metadata stages; a true result aborts with ErrExternalAbort and leaves
// dir's partial contents invalid. It takes addLock, deleteLock, and (only
// while swapping e's own fields) treeLock exclusively, since unlike the
// in-memory form this mutates e in place.
func (e *Engine[T]) RefineStream(ctx context.Context, dir string, abort func() bool) error {
	start := time.Now()

	lock, err := persistence.LockDir(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}
	defer lock.Unlock()

	e.addMu.Lock()
	defer e.addMu.Unlock()
	e.deleteMu.Lock()
	defer e.deleteMu.Unlock()

	oldR := e.R()
	indices, reverseIndices := computeCompaction(e.deleted, oldR)
	newR := len(indices)
	if newR == 0 {
		e.metrics.RecordRefine(time.Since(start), oldR, 0, ErrEmptyIndex)
		return ErrEmptyIndex
	}

	newStore := store.New[T](e.dim, e.Parameters.DataBlockSize, e.Parameters.DataCapacity)
	if err := e.store.Refine(indices, newStore); err != nil {
		return translateStoreErr(err)
	}
	if err := writeBlob(filepath.Join(dir, "samples.bin"), newStore.WriteTo); err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}

	if abort != nil && abort() {
		return ErrExternalAbort
	}

	ids := make([]core.VID, newR)
	for i := range ids {
		ids[i] = core.VID(i)
	}
	newForest := kdtree.NewForest[T](e.Parameters.NumberOfTrees, e.Parameters.TopDimensionsInTreeNode, e.Parameters.SamplesPerNodeInTree, e.rng.Seed()+int64(newR))
	if err := newForest.Build(newStore, ids, e.Parameters.NumberOfThreads); err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}
	if err := writeBlob(filepath.Join(dir, "trees.bin"), newForest.WriteTo); err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}

	if abort != nil && abort() {
		return ErrExternalAbort
	}

	graphPath := filepath.Join(dir, "graph.bin")
	if err := writeBlob(graphPath, func(w io.Writer) (int64, error) {
		return e.graph.RefineStream(indices, reverseIndices, w)
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}
	newGraph := graph.New(e.Parameters.NeighborhoodSize, e.Parameters.DataBlockSize, e.Parameters.DataCapacity)
	if err := readBlob(graphPath, newGraph.ReadFrom); err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}

	newDeleted := deletedset.New(uint64(newR))
	if err := writeBlob(filepath.Join(dir, "deleted.bin"), newDeleted.WriteTo); err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}

	if abort != nil && abort() {
		return ErrExternalAbort
	}

	if e.metadata != nil {
		refined, err := e.metadata.RefineMetadata(indices)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFail, err)
		}
		if writer, ok := refined.(writerTo); ok {
			if err := writeBlob(filepath.Join(dir, "metadata.bin"), writer.WriteTo); err != nil {
				return fmt.Errorf("%w: %w", ErrFail, err)
			}
		}
		e.treeMu.Lock()
		e.metadata = refined
		e.treeMu.Unlock()
	}

	e.treeMu.Lock()
	e.store = newStore
	e.graph = newGraph
	e.forest = newForest
	e.deleted = newDeleted
	e.treesSize.Store(int64(newR))
	e.treeMu.Unlock()

	e.logger.LogRefine(ctx, oldR, newR, nil)
	e.metrics.RecordRefine(time.Since(start), oldR, newR, nil)
	return nil
}

type writerTo interface {
	WriteTo(w io.Writer) (int64, error)
}

// writeBlob durably writes one stream via persistence.SaveToFile's
// atomic-temp-file-rename helper: the payload is CRC32C-checksummed, then
// zstd-compressed, with the checksum itself appended afterward in the
// clear so readBlob can split it off before decompressing the rest.
func writeBlob(path string, write func(io.Writer) (int64, error)) error {
	return persistence.SaveToFile(path, func(w io.Writer) error {
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		cw := persistence.NewChecksumWriter(zw)
		if _, err := write(cw); err != nil {
			zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, cw.Sum())
	})
}
