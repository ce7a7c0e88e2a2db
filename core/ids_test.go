package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeLeafRoundTripsThroughIsLeafChildAndLeafVID(t *testing.T) {
	for _, vid := range []VID{0, 1, 41, 1 << 20} {
		c := EncodeLeaf(vid)
		assert.True(t, IsLeafChild(c))
		assert.Equal(t, vid, LeafVID(c))
	}
}

func TestIsLeafChildRejectsNonNegativeInternalIndices(t *testing.T) {
	for _, c := range []int32{0, 1, 100} {
		assert.False(t, IsLeafChild(c))
	}
}
