package store

import (
	"bytes"
	"testing"

	"github.com/hybridann/hybridann/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAddBatchAndRow(t *testing.T) {
	s := New[float32](2, 4, 100)
	require.NoError(t, s.Initialize(0, 2, 4, 100, nil))

	rows := []float32{0, 0, 1, 0, 0, 1}
	require.NoError(t, s.AddBatch(rows, 3))
	assert.Equal(t, 3, s.R())
	assert.Equal(t, []float32{0, 0}, s.Row(0))
	assert.Equal(t, []float32{1, 0}, s.Row(1))
	assert.Equal(t, []float32{0, 1}, s.Row(2))
}

func TestStoreAddBatchMemoryOverflow(t *testing.T) {
	s := New[float32](2, 4, 2)
	require.NoError(t, s.Initialize(0, 2, 4, 2, nil))

	require.NoError(t, s.AddBatch([]float32{1, 1}, 1))
	err := s.AddBatch([]float32{2, 2, 3, 3}, 2)
	assert.ErrorIs(t, err, ErrMemoryOverflow)
	assert.Equal(t, 1, s.R(), "failed AddBatch must not mutate R")
}

func TestStoreSetRRollback(t *testing.T) {
	s := New[float32](2, 4, 100)
	require.NoError(t, s.Initialize(0, 2, 4, 100, nil))
	require.NoError(t, s.AddBatch([]float32{1, 1, 2, 2, 3, 3}, 3))
	s.SetR(1)
	assert.Equal(t, 1, s.R())
}

func TestStoreRowsSpanningBlockBoundary(t *testing.T) {
	s := New[float32](1, 2, 10)
	require.NoError(t, s.Initialize(0, 1, 2, 10, nil))
	require.NoError(t, s.AddBatch([]float32{10, 20, 30, 40, 50}, 5))
	for i, want := range []float32{10, 20, 30, 40, 50} {
		assert.Equal(t, []float32{want}, s.Row(core.VID(i)))
	}
}

func TestStoreRefine(t *testing.T) {
	s := New[float32](1, 4, 10)
	require.NoError(t, s.Initialize(0, 1, 4, 10, nil))
	require.NoError(t, s.AddBatch([]float32{10, 20, 30, 40}, 4))

	out := New[float32](1, 4, 10)
	require.NoError(t, s.Refine([]core.VID{3, 1}, out))
	assert.Equal(t, 2, out.R())
	assert.Equal(t, []float32{40}, out.Row(0))
	assert.Equal(t, []float32{20}, out.Row(1))
}

func TestStoreWriteReadRoundTrip(t *testing.T) {
	s := New[float32](3, 4, 16)
	require.NoError(t, s.Initialize(0, 3, 4, 16, nil))
	require.NoError(t, s.AddBatch([]float32{1, 2, 3, 4, 5, 6}, 2))

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)

	loaded := New[float32](0, 0, 0)
	_, err = loaded.ReadFrom(&buf)
	require.NoError(t, err)

	assert.Equal(t, s.R(), loaded.R())
	assert.Equal(t, s.Dimension(), loaded.Dimension())
	assert.Equal(t, s.Row(0), loaded.Row(0))
	assert.Equal(t, s.Row(1), loaded.Row(1))
}
