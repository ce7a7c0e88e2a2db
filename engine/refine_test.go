package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridann/hybridann/internal/deletedset"

	"github.com/hybridann/hybridann/core"
)

func TestComputeCompactionNoDeletions(t *testing.T) {
	d := deletedset.New(5)
	indices, reverse := computeCompaction(d, 5)
	require.Len(t, indices, 5)
	for i, vid := range indices {
		assert.Equal(t, core.VID(i), vid)
		assert.Equal(t, core.VID(i), reverse[i])
	}
}

func TestComputeCompactionTailSwap(t *testing.T) {
	d := deletedset.New(5)
	d.Insert(1)
	d.Insert(3)

	indices, reverse := computeCompaction(d, 5)
	require.Len(t, indices, 3)

	// survivors 0, 2, 4 must all map somewhere in [0, 3) with no duplicates
	seen := map[core.VID]bool{}
	for _, old := range indices {
		assert.False(t, seen[old])
		seen[old] = true
		assert.False(t, d.Contains(old))
	}
	assert.True(t, seen[0])
	assert.True(t, seen[2])
	assert.True(t, seen[4])

	// reverseIndices must only resolve old ids that actually survived,
	// and every survivor's reverse entry must round-trip into indices.
	for old := core.VID(0); old < 5; old++ {
		mapped := reverse[old]
		if d.Contains(old) {
			assert.Equal(t, core.InvalidVID, mapped)
			continue
		}
		require.NotEqual(t, core.InvalidVID, mapped)
		assert.Equal(t, old, indices[mapped])
	}
}

func TestComputeCompactionAllDeleted(t *testing.T) {
	d := deletedset.New(3)
	d.Insert(0)
	d.Insert(1)
	d.Insert(2)

	indices, _ := computeCompaction(d, 3)
	assert.Empty(t, indices)
}

func TestRefineReturnsFreshEngineAndDropsTombstones(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(20, 4), nil))

	require.NoError(t, e.Delete(context.Background(), 2))
	require.NoError(t, e.Delete(context.Background(), 7))
	require.NoError(t, e.Delete(context.Background(), 19))

	refined, err := e.Refine(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 17, refined.R())
	assert.Equal(t, 0, refined.DeletedCount())
	// the original engine is untouched by the in-memory Refine form
	assert.Equal(t, 20, e.R())
	assert.Equal(t, 3, e.DeletedCount())

	results, err := refined.Search(context.Background(), gridVectors(1, 4)[0], SearchOptions{K: 5})
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestRefineOnFullyDeletedIndexReturnsEmptyIndexError(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(3, 4), nil))

	for i := 0; i < 3; i++ {
		require.NoError(t, e.Delete(context.Background(), core.VID(i)))
	}

	_, err = e.Refine(context.Background())
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestRefineStreamWritesBlobsAndSwapsInPlace(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(16, 4), nil))
	require.NoError(t, e.Delete(context.Background(), 4))

	dir := t.TempDir()
	require.NoError(t, e.RefineStream(context.Background(), dir, nil))

	assert.Equal(t, 15, e.R())
	assert.Equal(t, 0, e.DeletedCount())

	results, err := e.Search(context.Background(), gridVectors(1, 4)[0], SearchOptions{K: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRefineStreamAbortsBeforeSwap(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(16, 4), nil))
	require.NoError(t, e.Delete(context.Background(), 4))

	dir := t.TempDir()
	err = e.RefineStream(context.Background(), dir, func() bool { return true })
	assert.ErrorIs(t, err, ErrExternalAbort)

	// aborted before the swap: the live engine must be unchanged
	assert.Equal(t, 16, e.R())
	assert.Equal(t, 1, e.DeletedCount())
}
