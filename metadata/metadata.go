// Package metadata implements the optional sideband payload store: one raw
// byte slice per vector id,
// with an optional inverse lookup from payload bytes back to a vid. It is
// grounded on the teacher's metadata package's length-prefixed binary
// encoding (metadata/binary.go's uvarint framing), narrowed from a typed
// Value/Document model down to an opaque []byte payload since the engine
// never interprets metadata contents.
package metadata

import (
	"sync"

	"github.com/hybridann/hybridann/core"
)

// Store owns one payload slot per vector id, growing in lockstep with the
// engine's sample store.
type Store interface {
	// Add appends n payload slots (possibly empty) starting at the
	// current length, mirroring C1/C4's AddBatch(n).
	Add(payloads [][]byte) error

	// GetMetadataCopy returns a copy of vid's payload, or nil if vid is
	// out of range or carries no payload.
	GetMetadataCopy(vid core.VID) []byte

	// RefineMetadata rebuilds the store for a compacted id space: new
	// slot j holds the payload formerly at indices[j].
	RefineMetadata(indices []core.VID) (Store, error)

	// Lookup returns the vid holding payload, if the inverse index is
	// enabled and the payload has been seen.
	Lookup(payload []byte) (core.VID, bool)

	// Len returns the number of payload slots currently held.
	Len() int
}

// MemStore is the in-memory Store implementation: one []byte per vid
// behind a single RWMutex, matching the teacher's metadata.Unified
// single-writer-many-readers shape without its typed-document machinery.
type MemStore struct {
	mu       sync.RWMutex
	payloads [][]byte
	inverse  map[string]core.VID // nil unless withInverse was requested
}

// New constructs an empty store. withInverse enables payload->vid lookup.
func New(withInverse bool) *MemStore {
	s := &MemStore{}
	if withInverse {
		s.inverse = make(map[string]core.VID)
	}
	return s
}

// Add appends payloads, one slot per vector, in order.
func (s *MemStore) Add(payloads [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	begin := len(s.payloads)
	for i, p := range payloads {
		var cp []byte
		if len(p) > 0 {
			cp = make([]byte, len(p))
			copy(cp, p)
		}
		s.payloads = append(s.payloads, cp)
		if s.inverse != nil && len(cp) > 0 {
			s.inverse[string(cp)] = core.VID(begin + i)
		}
	}
	return nil
}

// GetMetadataCopy returns a defensive copy of vid's payload.
func (s *MemStore) GetMetadataCopy(vid core.VID) []byte {
	if vid < 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := int(vid)
	if i >= len(s.payloads) || s.payloads[i] == nil {
		return nil
	}
	cp := make([]byte, len(s.payloads[i]))
	copy(cp, s.payloads[i])
	return cp
}

// RefineMetadata rebuilds the store over a compacted id space.
func (s *MemStore) RefineMetadata(indices []core.VID) (Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := New(s.inverse != nil)
	out.payloads = make([][]byte, len(indices))
	for j, old := range indices {
		if int(old) < len(s.payloads) {
			out.payloads[j] = s.payloads[old]
		}
		if out.inverse != nil && len(out.payloads[j]) > 0 {
			out.inverse[string(out.payloads[j])] = core.VID(j)
		}
	}
	return out, nil
}

// Lookup returns the vid currently holding payload, if the inverse index
// was requested at construction and the payload is present.
func (s *MemStore) Lookup(payload []byte) (core.VID, bool) {
	if s.inverse == nil {
		return core.InvalidVID, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	vid, ok := s.inverse[string(payload)]
	return vid, ok
}

// Len returns the number of payload slots currently held.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payloads)
}
