package store

import "errors"

// ErrMemoryOverflow is returned when an AddBatch or Initialize call would
// exceed the store's configured capacity.
var ErrMemoryOverflow = errors.New("store: capacity exceeded")
