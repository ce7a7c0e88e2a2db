package engine

import (
	"testing"
	"time"
)

func TestRebuildJobDropsDuplicateWhilePending(t *testing.T) {
	j := newRebuildJob()

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	j.enqueue(func() {
		started <- struct{}{}
		<-release
	})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first job never started")
	}

	// A second enqueue while the first job is still running must be dropped.
	j.enqueue(func() { started <- struct{}{} })
	close(release)

	select {
	case <-started:
		t.Fatal("a duplicate job ran while one was already pending")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRebuildJobDebouncesRapidSuccessiveRuns(t *testing.T) {
	j := newRebuildJob()

	ran := make(chan struct{}, 4)
	j.enqueue(func() { ran <- struct{}{} })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("first job never ran")
	}

	// Immediately after the first job completes, a second enqueue within
	// rebuildJobMinInterval must be dropped by the rate limiter.
	j.enqueue(func() { ran <- struct{}{} })

	select {
	case <-ran:
		t.Fatal("a second job ran within the debounce interval")
	case <-time.After(100 * time.Millisecond):
	}
}
