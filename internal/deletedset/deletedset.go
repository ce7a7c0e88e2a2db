// Package deletedset implements the deleted set (C2): a lock-free,
// segmented bitset over vector ids supporting concurrent tombstone
// insertion. It is adapted from the teacher's internal/bitset.BitSet, which
// already has exactly the CAS-loop semantics this component needs; the one
// behavioral change is that Insert reports true on a fresh 0→1 transition
// (the teacher's TestAndSet reports true when the bit was already set, the
// opposite sense, since it exists to de-duplicate visited markers rather
// than count new tombstones).
package deletedset

import (
	"encoding/binary"
	"io"
	"math/bits"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hybridann/hybridann/core"
)

const (
	segmentBits = 16
	segmentSize = 1 << segmentBits
	segmentMask = segmentSize - 1
	wordsPerSeg = segmentSize / 64
)

type segment [wordsPerSeg]atomic.Uint64

// Set is the deleted set: a bitset of length >= R over vector ids.
// Bits only ever flip 0→1 between refines, per the data model.
type Set struct {
	segments atomic.Pointer[[]*segment]
	size     atomic.Uint64
}

// New creates a deleted set sized to hold `size` vector ids, all initially
// not deleted.
func New(size uint64) *Set {
	s := &Set{}
	s.size.Store(size)
	s.growSegments(size)
	return s
}

func (s *Set) growSegments(size uint64) {
	if size == 0 {
		return
	}
	targetIdx := int((size - 1) >> segmentBits)

	segs := s.segments.Load()
	if segs != nil && len(*segs) > targetIdx && (*segs)[targetIdx] != nil {
		return
	}

	for {
		old := s.segments.Load()
		curLen := 0
		if old != nil {
			curLen = len(*old)
		}
		if targetIdx < curLen && (*old)[targetIdx] != nil {
			return
		}

		newLen := max(targetIdx+1, curLen)
		grown := make([]*segment, newLen)
		if old != nil {
			copy(grown, *old)
		}
		for i := curLen; i < newLen; i++ {
			if grown[i] == nil {
				grown[i] = new(segment)
			}
		}
		if s.segments.CompareAndSwap(old, &grown) {
			return
		}
	}
}

// Grow extends the set's addressable length to at least size, leaving
// existing bits untouched. This backs AddBatch(n): extend length under the
// add-lock so newly appended vector ids are addressable (and default to
// not-deleted) without disturbing tombstones already recorded.
func (s *Set) Grow(size uint64) {
	s.growSegments(size)
	for {
		cur := s.size.Load()
		if size <= cur {
			return
		}
		if s.size.CompareAndSwap(cur, size) {
			return
		}
	}
}

// AddBatch extends the set's length by n ids (the newly appended vids are
// addressable and unset).
func (s *Set) AddBatch(n int) {
	s.Grow(s.size.Load() + uint64(n))
}

// SetR truncates the set's addressable length, mirroring the sample
// store's SetR for MemoryOverflow rollback. It never clears bits, only
// shrinks the reported length; any bit beyond the new length is simply no
// longer observable through Contains/Count.
func (s *Set) SetR(r int) {
	s.size.Store(uint64(r))
}

func (s *Set) locate(vid core.VID) (segIdx int, wordIdx uint64, mask uint64, ok bool) {
	i := uint64(vid)
	if vid < 0 || i >= s.size.Load() {
		return 0, 0, 0, false
	}
	segIdx = int(i >> segmentBits)
	segs := s.segments.Load()
	if segs == nil || segIdx >= len(*segs) || (*segs)[segIdx] == nil {
		return 0, 0, 0, false
	}
	offset := i & segmentMask
	wordIdx = offset / 64
	mask = uint64(1) << (offset % 64)
	return segIdx, wordIdx, mask, true
}

// Insert tombstones vid. Returns true iff the bit transitioned 0→1 (a new
// tombstone); returns false if vid was already deleted or out of range.
func (s *Set) Insert(vid core.VID) bool {
	segIdx, wordIdx, mask, ok := s.locate(vid)
	if !ok {
		return false
	}
	seg := (*s.segments.Load())[segIdx]

	if prev := seg[wordIdx].Load(); prev&mask != 0 {
		return false
	}
	for {
		old := seg[wordIdx].Load()
		if old&mask != 0 {
			return false
		}
		if seg[wordIdx].CompareAndSwap(old, old|mask) {
			return true
		}
	}
}

// Contains reports whether vid is tombstoned.
func (s *Set) Contains(vid core.VID) bool {
	segIdx, wordIdx, mask, ok := s.locate(vid)
	if !ok {
		return false
	}
	seg := (*s.segments.Load())[segIdx]
	return seg[wordIdx].Load()&mask != 0
}

// Count returns a snapshot count of tombstoned ids.
func (s *Set) Count() int {
	segs := s.segments.Load()
	if segs == nil {
		return 0
	}
	size := s.size.Load()
	numWords := (size + 63) / 64
	count := 0
	word := uint64(0)
	for _, seg := range *segs {
		if word >= numWords {
			break
		}
		if seg == nil {
			word += wordsPerSeg
			continue
		}
		limit := wordsPerSeg
		if remaining := int(numWords - word); remaining < limit {
			limit = remaining
		}
		for i := 0; i < limit; i++ {
			count += bits.OnesCount64(seg[i].Load())
		}
		word += wordsPerSeg
	}
	return count
}

// Len returns the set's current addressable length.
func (s *Set) Len() uint64 { return s.size.Load() }

// Bitmap returns a compact snapshot of the currently tombstoned ids as a
// Roaring bitmap, for callers that want to report or export the deleted
// set's membership (e.g. a compact range summary) without walking the
// underlying segmented words one at a time.
func (s *Set) Bitmap() *roaring.Bitmap {
	rb := roaring.New()
	segs := s.segments.Load()
	if segs == nil {
		return rb
	}
	size := s.size.Load()
	numWords := (size + 63) / 64
	word := uint64(0)
	for _, seg := range *segs {
		if word >= numWords {
			break
		}
		if seg == nil {
			word += wordsPerSeg
			continue
		}
		limit := wordsPerSeg
		if remaining := int(numWords - word); remaining < limit {
			limit = remaining
		}
		for i := 0; i < limit; i++ {
			v := seg[i].Load()
			base := (word + uint64(i)) * 64
			for v != 0 {
				b := bits.TrailingZeros64(v)
				rb.Add(uint32(base) + uint32(b))
				v &= v - 1
			}
		}
		word += wordsPerSeg
	}
	return rb
}

// WriteTo writes the deleted blob: header (R, uint64) then ceil(R/64)
// little-endian uint64 words of bitset payload. The payload is padded to a
// whole word, so it is ceil(R/64)*8 bytes, not ceil(R/8); its first
// ceil(R/8) bytes are the bitset in byte order.
func (s *Set) WriteTo(w io.Writer) (int64, error) {
	size := s.size.Load()
	if err := binary.Write(w, binary.LittleEndian, size); err != nil {
		return 0, err
	}
	n := int64(8)

	segs := s.segments.Load()
	numWords := (size + 63) / 64
	for i := uint64(0); i < numWords; i++ {
		bitIdx := i * 64
		segIdx := int(bitIdx >> segmentBits)
		var val uint64
		if segs != nil && segIdx < len(*segs) && (*segs)[segIdx] != nil {
			val = (*segs)[segIdx][(bitIdx&segmentMask)/64].Load()
		}
		if err := binary.Write(w, binary.LittleEndian, val); err != nil {
			return n, err
		}
		n += 8
	}
	return n, nil
}

// ReadFrom reads a deleted blob written by WriteTo. The fourth stream is
// optional at the engine layer: a missing deleted blob means "construct a
// fresh, empty Set sized to R" and never calls ReadFrom at all.
func (s *Set) ReadFrom(r io.Reader) (int64, error) {
	var size uint64
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return 0, err
	}
	s.growSegments(size)
	s.size.Store(size)

	n := int64(8)
	numWords := (size + 63) / 64
	segs := s.segments.Load()
	for i := uint64(0); i < numWords; i++ {
		var val uint64
		if err := binary.Read(r, binary.LittleEndian, &val); err != nil {
			return n, err
		}
		bitIdx := i * 64
		segIdx := int(bitIdx >> segmentBits)
		if segs != nil && segIdx < len(*segs) && (*segs)[segIdx] != nil {
			(*segs)[segIdx][(bitIdx&segmentMask)/64].Store(val)
		}
		n += 8
	}
	return n, nil
}
