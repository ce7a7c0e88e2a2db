package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hybridann/hybridann/core"
)

// TestConcurrentAddAndSearch asserts that Search never observes a torn
// store/graph/forest combination while Add is appending concurrently, and
// that every concurrent Add still succeeds.
func TestConcurrentAddAndSearch(t *testing.T) {
	params := smallParams()
	e, err := New[float32](4, params)
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(50, 4), nil))

	ctx := context.Background()
	var g errgroup.Group

	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			vectors := gridVectors(3, 4)
			for j := range vectors {
				for d := range vectors[j] {
					vectors[j][d] += float32(i * 100)
				}
			}
			_, err := e.Add(ctx, vectors, nil)
			return err
		})
	}

	for i := 0; i < 32; i++ {
		g.Go(func() error {
			_, err := e.Search(ctx, []float32{1, 2, 3, 4}, SearchOptions{K: 5})
			return err
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, 50+8*3, e.R())
}

// TestConcurrentDeleteAndSearch exercises concurrent Delete calls against
// a live Search loop: every Delete must succeed exactly once per vid, and
// Search must keep returning valid results throughout.
func TestConcurrentDeleteAndSearch(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(60, 4), nil))

	ctx := context.Background()
	var g errgroup.Group

	for i := 0; i < 20; i++ {
		vid := core.VID(i)
		g.Go(func() error {
			return e.Delete(ctx, vid)
		})
	}
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := e.Search(ctx, []float32{5, 5, 5, 5}, SearchOptions{K: 4})
			return err
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, 20, e.DeletedCount())
}
