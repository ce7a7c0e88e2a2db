package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridann/hybridann/metadata"
)

func TestSaveIndexDataThenLoadIndexDataRoundTrips(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(20, 4), nil))
	require.NoError(t, e.Delete(context.Background(), 5))

	dir := t.TempDir()
	require.NoError(t, e.SaveIndexData(context.Background(), dir))

	for _, name := range []string{"samples.bin", "trees.bin", "graph.bin", "deleted.bin"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "blob %s must exist", name)
	}

	loaded, err := LoadIndexData[float32](context.Background(), dir, 4, smallParams())
	require.NoError(t, err)

	assert.True(t, loaded.Ready())
	assert.Equal(t, e.R(), loaded.R())
	assert.Equal(t, e.DeletedCount(), loaded.DeletedCount())
	assert.Equal(t, e.dim, loaded.dim)

	target := gridVectors(1, 4)[0]
	want, err := e.Search(context.Background(), target, SearchOptions{K: 5})
	require.NoError(t, err)
	got, err := loaded.Search(context.Background(), target, SearchOptions{K: 5})
	require.NoError(t, err)

	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].VID, got[i].VID)
		assert.InDelta(t, want[i].Dist, got[i].Dist, 1e-4)
	}
}

func TestLoadIndexDataInfersDimensionWhenUnset(t *testing.T) {
	e, err := New[float32](5, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(10, 5), nil))

	dir := t.TempDir()
	require.NoError(t, e.SaveIndexData(context.Background(), dir))

	loaded, err := LoadIndexData[float32](context.Background(), dir, 0, smallParams())
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Dimension())
}

func TestSaveIndexDataWithMetadataRoundTrips(t *testing.T) {
	opts := WithMetadata[float32](metadata.New(false))
	e, err := New[float32](4, smallParams(), opts)
	require.NoError(t, err)

	vectors := gridVectors(6, 4)
	payloads := make([][]byte, 6)
	for i := range payloads {
		payloads[i] = []byte{byte('a' + i)}
	}
	require.NoError(t, e.Build(context.Background(), vectors, payloads))

	dir := t.TempDir()
	require.NoError(t, e.SaveIndexData(context.Background(), dir))
	_, err = os.Stat(filepath.Join(dir, "metadata.bin"))
	require.NoError(t, err)

	loadOpt := WithMetadata[float32](metadata.New(false))
	loaded, err := LoadIndexData[float32](context.Background(), dir, 4, smallParams(), loadOpt)
	require.NoError(t, err)

	results, err := loaded.Search(context.Background(), vectors[3], SearchOptions{K: 1, WithMetadata: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, payloads[int(results[0].VID)], results[0].Metadata)
}

func TestLoadIndexDataRejectsCorruptedBlob(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(10, 4), nil))

	dir := t.TempDir()
	require.NoError(t, e.SaveIndexData(context.Background(), dir))

	path := filepath.Join(dir, "samples.bin")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = LoadIndexData[float32](context.Background(), dir, 4, smallParams())
	assert.Error(t, err)
}
