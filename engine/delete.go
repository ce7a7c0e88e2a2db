package engine

import (
	"context"
	"time"

	"github.com/hybridann/hybridann/core"
)

// Delete tombstones vid. It takes only the shared (reader) side of the
// delete lock, never the exclusive side: DeleteVector calls it from a
// loop that runs after (not during) a Search, and Search itself never
// touches deleteLock; promoting Delete to the exclusive side here would
// deadlock against a concurrent Search once Search is changed to also
// read deleteLock.
//
// vid is explicitly bounds-checked against [0, R) before touching the
// deleted set, so an out-of-range vid reliably reports ErrVectorNotFound
// rather than relying on the deleted set's own implicit range guard.
func (e *Engine[T]) Delete(ctx context.Context, vid core.VID) error {
	start := time.Now()

	if vid < 0 || int(vid) >= e.R() {
		e.logger.LogDelete(ctx, int32(vid), ErrVectorNotFound)
		e.metrics.RecordDelete(time.Since(start), ErrVectorNotFound)
		return ErrVectorNotFound
	}

	e.deleteMu.RLock()
	inserted := e.deleted.Insert(vid)
	e.deleteMu.RUnlock()

	if !inserted {
		e.logger.LogDelete(ctx, int32(vid), ErrVectorNotFound)
		e.metrics.RecordDelete(time.Since(start), ErrVectorNotFound)
		return ErrVectorNotFound
	}

	e.logger.LogDelete(ctx, int32(vid), nil)
	e.metrics.RecordDelete(time.Since(start), nil)
	return nil
}

// DeleteVector deletes every near-duplicate of target: it runs a
// deletion-aware search for up to CEF candidates, then deletes by id
// every result whose distance to target is below 1e-6. The nested Delete
// calls happen here, after the search has fully returned -- never from
// inside the best-first loop.
func (e *Engine[T]) DeleteVector(ctx context.Context, target []float32) (int, error) {
	if !e.Ready() {
		return 0, ErrNotReady
	}
	results, err := e.Search(ctx, target, SearchOptions{K: e.Parameters.CEF})
	if err != nil {
		return 0, err
	}

	const epsilon = 1e-6
	deleted := 0
	for _, r := range results {
		if r.Dist >= epsilon {
			continue
		}
		if err := e.Delete(ctx, r.VID); err == nil {
			deleted++
		}
	}
	return deleted, nil
}
