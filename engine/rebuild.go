package engine

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// rebuildJobMinInterval is the shortest gap enforced between two
// background tree rebuilds starting, regardless of how many Add calls
// cross AddCountForRebuildTrees in between. Without it, a burst of small
// Add batches against a fast-growing index could each land just far
// enough apart to slip past the "duplicates are dropped" gate (the
// previous job having already finished and cleared pending) and thrash
// the KD-forest rebuild back-to-back.
const rebuildJobMinInterval = 500 * time.Millisecond

// rebuildJob is the single-slot background tree-rebuild queue: a
// single-slot thread pool receives tree-rebuild jobs posted from Add, and
// duplicates are dropped while a job is already queued. Grounded on the
// teacher's engine/worker_pool.go WorkerPool, narrowed from N goroutines
// draining a buffered channel down to exactly one worker and a depth-1
// queue, with an added rate.Limiter debouncing how often a new job may
// start.
type rebuildJob struct {
	jobs    chan func()
	pending atomic.Bool
	limiter *rate.Limiter
}

func newRebuildJob() *rebuildJob {
	j := &rebuildJob{
		jobs:    make(chan func(), 1),
		limiter: rate.NewLimiter(rate.Every(rebuildJobMinInterval), 1),
	}
	go j.loop()
	return j
}

func (j *rebuildJob) loop() {
	for fn := range j.jobs {
		fn()
		j.pending.Store(false)
	}
}

// enqueue posts fn if no job is currently pending and the rate limiter
// allows a new job to start now; otherwise it is silently dropped,
// matching the "duplicates are dropped" gate. A dropped-for-rate-limit
// call leaves pending false, so the next qualifying Add retries it.
func (j *rebuildJob) enqueue(fn func()) {
	if !j.pending.CompareAndSwap(false, true) {
		return
	}
	if !j.limiter.Allow() {
		j.pending.Store(false)
		return
	}
	j.jobs <- fn
}
