package workspace

import "github.com/hybridann/hybridann/core"

// visitedSet is the open-addressed hash table workspace scratch: a
// linear-probe hash set over vector ids, sized to 2^hashExp slots, with a
// dirty list of touched slots so Reset is O(number of ids actually visited
// this query) rather than O(table size). This is the teacher's
// internal/searcher.VisitedSet dirty-list-over-bitset trick (see
// DESIGN.md) widened from a dense bitset to a hash table because the
// visited set is sized by a tunable hashExp parameter rather than by R.
type visitedSet struct {
	slots []core.VID // core.InvalidVID marks an empty slot
	dirty []int32    // slot indices touched since the last reset
	exp   int        // current table size is 1<<exp
}

const emptySlot = core.InvalidVID

func newVisitedSet(hashExp int) *visitedSet {
	if hashExp < 1 {
		hashExp = 1
	}
	v := &visitedSet{exp: hashExp}
	v.slots = make([]core.VID, 1<<hashExp)
	v.fillEmpty()
	return v
}

func (v *visitedSet) fillEmpty() {
	for i := range v.slots {
		v.slots[i] = emptySlot
	}
}

// hashTableExponent reports the size actually allocated, which may exceed
// the constructor's hashExp after growth.
func (v *visitedSet) hashTableExponent() int { return v.exp }

func (v *visitedSet) mask() uint32 { return uint32(len(v.slots) - 1) }

func hashVID(vid core.VID) uint32 {
	x := uint32(vid)
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// reset clears every slot touched since the last reset, via the dirty
// list, and grows the table if the caller wants more headroom than the
// table currently has (amortized O(1) when no growth is needed).
func (v *visitedSet) reset(wantExp int) {
	for _, idx := range v.dirty {
		v.slots[idx] = emptySlot
	}
	v.dirty = v.dirty[:0]

	if wantExp > v.exp {
		v.exp = wantExp
		v.slots = make([]core.VID, 1<<v.exp)
		v.fillEmpty()
	}
}

// checkAndSet marks vid visited and reports whether it was already
// present. Grows the table (doubling) once the load factor crosses 70%,
// which also clears any stale dirty entries by rehashing only the ids
// that are still marked dirty.
func (v *visitedSet) checkAndSet(vid core.VID) bool {
	if len(v.dirty)*10 >= len(v.slots)*7 {
		v.grow()
	}

	mask := v.mask()
	idx := hashVID(vid) & mask
	for {
		cur := v.slots[idx]
		if cur == emptySlot {
			v.slots[idx] = vid
			v.dirty = append(v.dirty, int32(idx))
			return false
		}
		if cur == vid {
			return true
		}
		idx = (idx + 1) & mask
	}
}

func (v *visitedSet) grow() {
	old := v.slots
	oldDirty := v.dirty
	v.exp++
	v.slots = make([]core.VID, 1<<v.exp)
	v.fillEmpty()
	v.dirty = v.dirty[:0]
	_ = old
	for _, idx := range oldDirty {
		vid := core.InvalidVID
		if int(idx) < len(old) {
			vid = old[idx]
		}
		if vid != emptySlot {
			v.checkAndSet(vid)
		}
	}
}
