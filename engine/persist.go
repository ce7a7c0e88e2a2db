package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/hybridann/hybridann/core"
	"github.com/hybridann/hybridann/internal/deletedset"
	"github.com/hybridann/hybridann/internal/store"
	"github.com/hybridann/hybridann/metadata"
	"github.com/hybridann/hybridann/persistence"
)

// samplesBlob, treesBlob, graphBlob, and deletedBlob are the fixed
// filenames of the on-disk index directory's four blobs. metadataBlob is
// the optional fifth file carrying the metadata sideband, when enabled.
const (
	samplesBlob  = "samples.bin"
	treesBlob    = "trees.bin"
	graphBlob    = "graph.bin"
	deletedBlob  = "deleted.bin"
	metadataBlob = "metadata.bin"
)

// SaveIndexData writes the four (or five, with metadata) blobs of the
// index directory into dir, each via writeBlob's atomic-rename-plus-checksum
// helper. It takes addLock, deleteLock, and treeLock all exclusively for
// the duration, so the snapshot is internally consistent.
func (e *Engine[T]) SaveIndexData(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}

	lock, err := persistence.LockDir(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}
	defer lock.Unlock()

	e.addMu.Lock()
	defer e.addMu.Unlock()
	e.deleteMu.Lock()
	defer e.deleteMu.Unlock()
	e.treeMu.Lock()
	defer e.treeMu.Unlock()

	if err := writeBlob(filepath.Join(dir, samplesBlob), e.store.WriteTo); err != nil {
		werr := fmt.Errorf("%w: samples: %w", ErrFail, err)
		e.logger.LogSave(ctx, dir, werr)
		return werr
	}
	if err := writeBlob(filepath.Join(dir, treesBlob), e.forest.WriteTo); err != nil {
		werr := fmt.Errorf("%w: trees: %w", ErrFail, err)
		e.logger.LogSave(ctx, dir, werr)
		return werr
	}
	if err := writeBlob(filepath.Join(dir, graphBlob), e.graph.WriteTo); err != nil {
		werr := fmt.Errorf("%w: graph: %w", ErrFail, err)
		e.logger.LogSave(ctx, dir, werr)
		return werr
	}
	if err := writeBlob(filepath.Join(dir, deletedBlob), e.deleted.WriteTo); err != nil {
		werr := fmt.Errorf("%w: deleted: %w", ErrFail, err)
		e.logger.LogSave(ctx, dir, werr)
		return werr
	}

	if e.metadata != nil {
		if w, ok := e.metadata.(writerTo); ok {
			if err := writeBlob(filepath.Join(dir, metadataBlob), w.WriteTo); err != nil {
				werr := fmt.Errorf("%w: metadata: %w", ErrFail, err)
				e.logger.LogSave(ctx, dir, werr)
				return werr
			}
		}
	}

	e.logger.LogSave(ctx, dir, nil)
	return nil
}

// LoadIndexData constructs a ready Engine from the blobs written by
// SaveIndexData. The deleted and metadata blobs are optional: a missing
// deleted blob yields a fresh, empty Set sized to R; a missing metadata
// blob leaves the metadata sideband disabled regardless of what the
// caller passed via WithMetadata.
func LoadIndexData[T core.Element](ctx context.Context, dir string, dim int, params Parameters, opts ...Option[T]) (*Engine[T], error) {
	lock, err := persistence.LockDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFail, err)
	}
	defer lock.Unlock()

	if dim <= 0 {
		peeked, err := peekSamplesDimension(filepath.Join(dir, samplesBlob))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFail, err)
		}
		dim = peeked
	}

	e, err := New[T](dim, params, opts...)
	if err != nil {
		return nil, err
	}

	if err := readBlob(filepath.Join(dir, samplesBlob), e.store.ReadFrom); err != nil {
		werr := fmt.Errorf("%w: samples: %w", ErrFail, err)
		e.logger.LogLoad(ctx, dir, werr)
		return nil, werr
	}
	if err := readBlob(filepath.Join(dir, treesBlob), e.forest.ReadFrom); err != nil {
		werr := fmt.Errorf("%w: trees: %w", ErrFail, err)
		e.logger.LogLoad(ctx, dir, werr)
		return nil, werr
	}
	if err := readBlob(filepath.Join(dir, graphBlob), e.graph.ReadFrom); err != nil {
		werr := fmt.Errorf("%w: graph: %w", ErrFail, err)
		e.logger.LogLoad(ctx, dir, werr)
		return nil, werr
	}

	r := e.store.R()
	if _, err := os.Stat(filepath.Join(dir, deletedBlob)); err == nil {
		if err := readBlob(filepath.Join(dir, deletedBlob), e.deleted.ReadFrom); err != nil {
			werr := fmt.Errorf("%w: deleted: %w", ErrFail, err)
			e.logger.LogLoad(ctx, dir, werr)
			return nil, werr
		}
	} else {
		e.deleted = deletedset.New(uint64(r))
	}

	if _, err := os.Stat(filepath.Join(dir, metadataBlob)); err == nil {
		ms := metadata.New(false)
		if err := readBlob(filepath.Join(dir, metadataBlob), ms.ReadFrom); err != nil {
			werr := fmt.Errorf("%w: metadata: %w", ErrFail, err)
			e.logger.LogLoad(ctx, dir, werr)
			return nil, werr
		}
		e.metadata = ms
	} else {
		e.metadata = nil
	}

	e.treesSize.Store(int64(r))
	e.ready.Store(true)
	e.logger.LogLoad(ctx, dir, nil)
	return e, nil
}

// peekSamplesDimension reads just the dimension out of a saved samples
// blob's header, for callers that need D before they can pick T and call
// New. The blob is decoded through readBlob first, since the header sits
// inside the compressed payload.
func peekSamplesDimension(path string) (int, error) {
	var dim int
	err := readBlob(path, func(r io.Reader) (int64, error) {
		d, err := store.PeekDimension(r)
		dim = d
		return 0, err
	})
	return dim, err
}

// readBlob reads an entire blob written by writeBlob into memory, splits
// off the trailing CRC32C checksum, zstd-decompresses the rest, verifies
// the checksum against the decompressed bytes, and feeds them to read.
// Blobs are expected to fit comfortably in memory, the same way the whole
// index does: there is no out-of-core operation.
func readBlob(path string, read func(io.Reader) (int64, error)) error {
	var data []byte
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return err
	}
	if len(data) < 4 {
		return fmt.Errorf("blob %s is truncated", path)
	}

	compressed, trailer := data[:len(data)-4], data[len(data)-4:]
	want := binary.LittleEndian.Uint32(trailer)

	zr, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("blob %s: %w", path, err)
	}
	defer zr.Close()
	payload, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("blob %s: %w", path, err)
	}

	got := persistence.CalculateChecksum(payload)
	if got != want {
		return &persistence.ChecksumMismatchError{Expected: want, Actual: got}
	}

	_, err = read(bytes.NewReader(payload))
	return err
}
