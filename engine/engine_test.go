package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridann/hybridann/core"
	"github.com/hybridann/hybridann/distance"
	"github.com/hybridann/hybridann/metadata"
)

func smallParams() Parameters {
	p := DefaultParameters()
	p.NumberOfThreads = 2
	p.NumberOfTrees = 2
	p.SamplesPerNodeInTree = 4
	p.NeighborhoodSize = 4
	p.CEF = 8
	p.AddCEF = 8
	p.MaxCheck = 256
	p.MaxCheckForRefineGraph = 256
	p.DataBlockSize = 4
	p.DataCapacity = 1 << 16
	p.AddCountForRebuildTrees = 1 << 30 // disable background rebuild in tests
	return p
}

func gridVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for d := range v {
			v[d] = float32(i + d)
		}
		out[i] = v
	}
	return out
}

func TestNewRejectsNonPositiveDimension(t *testing.T) {
	_, err := New[float32](0, DefaultParameters())
	assert.ErrorIs(t, err, ErrFail)
}

func TestBuildThenReady(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	assert.False(t, e.Ready())

	vectors := gridVectors(20, 4)
	require.NoError(t, e.Build(context.Background(), vectors, nil))

	assert.True(t, e.Ready())
	assert.Equal(t, 20, e.R())
	assert.Equal(t, 0, e.DeletedCount())
}

func TestBuildRejectsEmptyData(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	assert.ErrorIs(t, e.Build(context.Background(), nil, nil), ErrEmptyData)
}

func TestBuildRejectsDimensionMismatch(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	err = e.Build(context.Background(), [][]float32{{1, 2, 3}}, nil)
	var mismatch *ErrDimensionMismatch
	assert.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 4, mismatch.Expected)
	assert.Equal(t, 3, mismatch.Actual)
}

func TestSearchBeforeBuildIsNotReady(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	_, err = e.Search(context.Background(), []float32{1, 2, 3, 4}, SearchOptions{K: 1})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSearchRejectsDimensionMismatch(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(10, 4), nil))

	_, err = e.Search(context.Background(), []float32{1, 2, 3}, SearchOptions{K: 1})
	var mismatch *ErrDimensionMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(10, 4), nil))

	_, err = e.Search(context.Background(), []float32{0, 0, 0, 0}, SearchOptions{K: 0})
	assert.ErrorIs(t, err, ErrLackOfInputs)
}

func TestFirstAddDelegatesToBuild(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)

	vid, err := e.Add(context.Background(), gridVectors(10, 4), nil)
	require.NoError(t, err)
	assert.Equal(t, core.VID(0), vid)
	assert.True(t, e.Ready())
	assert.Equal(t, 10, e.R())
}

func TestAddAppendsAfterBuild(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(10, 4), nil))

	vid, err := e.Add(context.Background(), gridVectors(5, 4), nil)
	require.NoError(t, err)
	assert.Equal(t, core.VID(10), vid)
	assert.Equal(t, 15, e.R())
}

func TestAddRejectsDimensionMismatchWithoutMutatingR(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(10, 4), nil))

	_, err = e.Add(context.Background(), [][]float32{{1, 2}}, nil)
	var mismatch *ErrDimensionMismatch
	assert.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 10, e.R())
}

func TestDeleteTombstonesAndRejectsOutOfRange(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(10, 4), nil))

	require.NoError(t, e.Delete(context.Background(), 3))
	assert.Equal(t, 1, e.DeletedCount())

	assert.ErrorIs(t, e.Delete(context.Background(), 3), ErrVectorNotFound, "deleting an already-deleted vid must fail")
	assert.ErrorIs(t, e.Delete(context.Background(), 1000), ErrVectorNotFound)
	assert.ErrorIs(t, e.Delete(context.Background(), -1), ErrVectorNotFound)
}

func TestSearchSkipsTombstonedIdsByDefault(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(30, 4), nil))

	target := gridVectors(1, 4)[0]
	before, err := e.Search(context.Background(), target, SearchOptions{K: 1})
	require.NoError(t, err)
	require.Len(t, before, 1)
	closest := before[0].VID

	require.NoError(t, e.Delete(context.Background(), closest))

	after, err := e.Search(context.Background(), target, SearchOptions{K: 1})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.NotEqual(t, closest, after[0].VID, "a tombstoned vid must not be returned")
}

func TestSearchCanIncludeDeletedWhenRequested(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(30, 4), nil))

	target := gridVectors(1, 4)[0]
	before, err := e.Search(context.Background(), target, SearchOptions{K: 1})
	require.NoError(t, err)
	closest := before[0].VID
	require.NoError(t, e.Delete(context.Background(), closest))

	withDeleted, err := e.Search(context.Background(), target, SearchOptions{K: 1, SearchDeleted: true})
	require.NoError(t, err)
	require.Len(t, withDeleted, 1)
	assert.Equal(t, closest, withDeleted[0].VID)
}

func TestSearchResultsAreSortedAscendingByDistance(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	require.NoError(t, e.Build(context.Background(), gridVectors(40, 4), nil))

	results, err := e.Search(context.Background(), []float32{5, 6, 7, 8}, SearchOptions{K: 10})
	require.NoError(t, err)
	require.True(t, len(results) > 1)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Dist, results[i].Dist)
	}
}

func TestSearchWithMetadataAttachesPayloads(t *testing.T) {
	opts := WithMetadata[float32](metadata.New(false))
	e, err := New[float32](4, smallParams(), opts)
	require.NoError(t, err)

	vectors := gridVectors(5, 4)
	payloads := make([][]byte, 5)
	for i := range payloads {
		payloads[i] = []byte{byte(i)}
	}
	require.NoError(t, e.Build(context.Background(), vectors, payloads))

	results, err := e.Search(context.Background(), vectors[2], SearchOptions{K: 1, WithMetadata: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, payloads[int(results[0].VID)], results[0].Metadata)
}

func TestDeleteVectorDeletesNearDuplicates(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)

	vectors := gridVectors(20, 4)
	dup := vectors[5]
	vectors = append(vectors, []float32{dup[0], dup[1], dup[2], dup[3]})
	require.NoError(t, e.Build(context.Background(), vectors, nil))

	n, err := e.DeleteVector(context.Background(), dup)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2, "both the original and its exact duplicate must be tombstoned")
}

func TestSetParameterResolvesDistanceKernel(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)

	require.NoError(t, e.SetParameter("DistCalcMethod", "Cosine", ""))
	v, err := e.GetParameter("DistCalcMethod", IndexSection)
	require.NoError(t, err)
	assert.Equal(t, "Cosine", v)
	assert.Equal(t, distance.MetricCosine, e.metric)
}

func TestSetParameterRejectsUnknownName(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)
	assert.Error(t, e.SetParameter("NotAThing", "1", ""))
}

func TestParameterNamesNonEmptyAndRoundTrips(t *testing.T) {
	e, err := New[float32](4, smallParams())
	require.NoError(t, err)

	names := e.ParameterNames()
	require.NotEmpty(t, names)
	for _, name := range names {
		_, err := e.GetParameter(name, "")
		require.NoError(t, err)
	}
}
