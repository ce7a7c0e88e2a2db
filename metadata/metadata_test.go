package metadata

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridann/hybridann/core"
)

func TestAddAndGetMetadataCopy(t *testing.T) {
	s := New(true)
	require.NoError(t, s.Add([][]byte{[]byte("a"), nil, []byte("c")}))

	assert.Equal(t, []byte("a"), s.GetMetadataCopy(core.VID(0)))
	assert.Nil(t, s.GetMetadataCopy(core.VID(1)))
	assert.Equal(t, []byte("c"), s.GetMetadataCopy(core.VID(2)))
	assert.Nil(t, s.GetMetadataCopy(core.VID(99)))
	assert.Nil(t, s.GetMetadataCopy(core.InvalidVID))
}

func TestGetMetadataCopyReturnsDefensiveCopy(t *testing.T) {
	s := New(false)
	require.NoError(t, s.Add([][]byte{[]byte("orig")}))

	got := s.GetMetadataCopy(core.VID(0))
	got[0] = 'X'
	assert.Equal(t, []byte("orig"), s.GetMetadataCopy(core.VID(0)))
}

func TestLookupInverseIndex(t *testing.T) {
	s := New(true)
	require.NoError(t, s.Add([][]byte{[]byte("alpha"), []byte("beta")}))

	vid, ok := s.Lookup([]byte("beta"))
	assert.True(t, ok)
	assert.Equal(t, core.VID(1), vid)

	_, ok = s.Lookup([]byte("missing"))
	assert.False(t, ok)
}

func TestLookupDisabledWithoutInverse(t *testing.T) {
	s := New(false)
	require.NoError(t, s.Add([][]byte{[]byte("alpha")}))
	_, ok := s.Lookup([]byte("alpha"))
	assert.False(t, ok)
}

func TestRefineMetadataRemapsSlots(t *testing.T) {
	s := New(true)
	require.NoError(t, s.Add([][]byte{[]byte("a"), []byte("b"), []byte("c")}))

	refined, err := s.RefineMetadata([]core.VID{2, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, refined.Len())
	assert.Equal(t, []byte("c"), refined.GetMetadataCopy(core.VID(0)))
	assert.Equal(t, []byte("a"), refined.GetMetadataCopy(core.VID(1)))

	vid, ok := refined.Lookup([]byte("c"))
	assert.True(t, ok)
	assert.Equal(t, core.VID(0), vid)
}

func TestWriteToReadFromRoundTrips(t *testing.T) {
	s := New(true)
	require.NoError(t, s.Add([][]byte{[]byte("alpha"), nil, []byte("gamma")}))

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)

	s2 := New(true)
	_, err = s2.ReadFrom(&buf)
	require.NoError(t, err)

	assert.Equal(t, 3, s2.Len())
	assert.Equal(t, []byte("alpha"), s2.GetMetadataCopy(core.VID(0)))
	assert.Nil(t, s2.GetMetadataCopy(core.VID(1)))
	assert.Equal(t, []byte("gamma"), s2.GetMetadataCopy(core.VID(2)))

	vid, ok := s2.Lookup([]byte("gamma"))
	assert.True(t, ok)
	assert.Equal(t, core.VID(2), vid)
}
