// Package engine implements the index engine: the orchestrator that binds
// the sample store, deleted set, KD-forest, neighborhood graph, and
// workspace pool into Build/Add/Delete/Refine/Search/Save/Load.
package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pure-state and generic error codes: legal calls
// that have nothing to do, or plain misuse. Grounded on the teacher's
// root errors.go split between sentinel errors and typed struct errors.
var (
	ErrEmptyIndex       = errors.New("engine: index is empty")
	ErrEmptyData        = errors.New("engine: no data provided")
	ErrMemoryOverflow   = errors.New("engine: memory overflow")
	ErrLackOfInputs     = errors.New("engine: lack of inputs")
	ErrFailedParseValue = errors.New("engine: failed to parse parameter value")
	ErrVectorNotFound   = errors.New("engine: vector not found")
	ErrExternalAbort    = errors.New("engine: aborted externally")
	ErrFail             = errors.New("engine: operation failed")
	ErrNotReady         = errors.New("engine: index not built")
)

// ErrDimensionMismatch indicates a vector whose length does not match the
// engine's configured dimension. The original underlying error (if any)
// can be accessed via errors.Unwrap, matching the teacher's
// ErrDimensionMismatch{Expected,Actual,cause} shape.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("engine: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }
