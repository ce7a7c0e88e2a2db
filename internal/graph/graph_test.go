package graph

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridann/hybridann/core"
)

func TestAddBatchInitializesSentinel(t *testing.T) {
	g := New(4, 8, 100)
	require.NoError(t, g.AddBatch(5))
	assert.Equal(t, 5, g.R())

	for i := 0; i < 5; i++ {
		row := g.Row(core.VID(i))
		require.Len(t, row, 4)
		for _, n := range row {
			assert.Equal(t, core.InvalidVID, n)
		}
	}
}

func TestAddBatchRejectsOverCapacity(t *testing.T) {
	g := New(2, 4, 3)
	require.NoError(t, g.AddBatch(3))
	err := g.AddBatch(1)
	assert.ErrorIs(t, err, ErrMemoryOverflow)
}

// linearSearch is a tiny stand-in for the engine's best-first search: it
// scores every id against the target by squared distance on a synthetic
// 1-D embedding (id value itself), letting the refine tests exercise
// neighbor selection without pulling in the sample store or distance
// packages.
func linearSearch(n int) SearchFunc {
	return func(vid core.VID, cef int) []Candidate {
		all := make([]Candidate, 0, n)
		for i := 0; i < n; i++ {
			if core.VID(i) == vid {
				continue
			}
			d := float32(vid) - float32(i)
			all = append(all, Candidate{VID: core.VID(i), Dist: d * d})
		}
		sortCandidates(all)
		if len(all) > cef {
			all = all[:cef]
		}
		return all
	}
}

func sortCandidates(c []Candidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j-1].Dist > c[j].Dist; j-- {
			c[j-1], c[j] = c[j], c[j-1]
		}
	}
}

func sameScaleDist(a, b core.VID) float32 {
	d := float32(a) - float32(b)
	return d * d
}

func TestRefineNodeSelectsNearestK(t *testing.T) {
	g := New(2, 8, 20)
	require.NoError(t, g.AddBatch(10))

	search := linearSearch(10)
	g.RefineNode(core.VID(5), true, false, 6, search, sameScaleDist)

	row := g.Row(core.VID(5))
	assert.ElementsMatch(t, []core.VID{4, 6}, row)
}

func TestRefineNodeReciprocates(t *testing.T) {
	g := New(1, 8, 20)
	require.NoError(t, g.AddBatch(10))

	search := linearSearch(10)
	g.RefineNode(core.VID(5), true, true, 6, search, sameScaleDist)

	neighbor := g.Row(core.VID(5))[0]
	reciprocalRow := g.Row(neighbor)
	assert.Contains(t, reciprocalRow, core.VID(5))
}

func TestRefineCompactsAndRemapsNeighbors(t *testing.T) {
	g := New(2, 8, 20)
	require.NoError(t, g.AddBatch(6))

	// 0:[1,2] 1:[0,2] 2:[0,1] 3:[2,4] 4:[3,5] 5:[4,-1]
	rows := [][]core.VID{
		{1, 2}, {0, 2}, {0, 1}, {2, 4}, {3, 5}, {4, core.InvalidVID},
	}
	for i, want := range rows {
		copy(g.Row(core.VID(i)), want)
	}

	// Delete id 2. Surviving ids in order: 0,1,3,4,5 -> new ids 0..4.
	indices := []core.VID{0, 1, 3, 4, 5}
	reverse := []core.VID{0, 1, core.InvalidVID, 2, 3, 4}

	out := New(2, 8, 0)
	require.NoError(t, g.Refine(indices, reverse, out))

	assert.Equal(t, 5, out.R())
	assert.Equal(t, []core.VID{1, core.InvalidVID}, out.Row(0)) // old 0:[1,2] -> 2 dropped
	assert.Equal(t, []core.VID{0, core.InvalidVID}, out.Row(1)) // old 1:[0,2] -> 2 dropped
	assert.Equal(t, []core.VID{3, core.InvalidVID}, out.Row(2)) // old 3:[2,4] -> 2 dropped, 4 remapped to 3
	assert.Equal(t, []core.VID{2, 4}, out.Row(3))               // old 4:[3,5] -> 3 remapped to 2, 5 to 4
	assert.Equal(t, []core.VID{3, core.InvalidVID}, out.Row(4)) // old 5:[4,-1] -> 4 remapped to 3
}

func TestGraphWriteToReadFromRoundTrips(t *testing.T) {
	g := New(3, 4, 20)
	require.NoError(t, g.AddBatch(5))
	for i := 0; i < 5; i++ {
		row := g.Row(core.VID(i))
		row[0] = core.VID((i + 1) % 5)
		row[1] = core.InvalidVID
		row[2] = core.InvalidVID
	}

	var buf bytes.Buffer
	_, err := g.WriteTo(&buf)
	require.NoError(t, err)

	g2 := New(0, 4, 0)
	_, err = g2.ReadFrom(&buf)
	require.NoError(t, err)

	assert.Equal(t, g.R(), g2.R())
	assert.Equal(t, g.K(), g2.K())
	for i := 0; i < g.R(); i++ {
		assert.Equal(t, g.Row(core.VID(i)), g2.Row(core.VID(i)))
	}
}
