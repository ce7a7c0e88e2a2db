package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwoCollectorsDoNotPanicOnDuplicateRegistration(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusCollector("hybridann")
		NewPrometheusCollector("hybridann")
	})
}

func TestRecordAddUpdatesCountersOnSuccess(t *testing.T) {
	c := NewPrometheusCollector("hybridann")

	c.RecordAdd(5*time.Millisecond, 10, nil)
	c.RecordAdd(5*time.Millisecond, 5, nil)

	assert.Equal(t, float64(15), testutil.ToFloat64(c.addTotal))
	assert.Equal(t, float64(15), testutil.ToFloat64(c.vectorsTotal))
}

func TestRecordAddSkipsCountersOnError(t *testing.T) {
	c := NewPrometheusCollector("hybridann")

	c.RecordAdd(time.Millisecond, 10, errors.New("boom"))

	assert.Equal(t, float64(0), testutil.ToFloat64(c.addTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.addErrors.WithLabelValues("boom")))
}

func TestRecordRefineTracksDroppedAndLiveCount(t *testing.T) {
	c := NewPrometheusCollector("hybridann")

	c.RecordAdd(time.Millisecond, 100, nil)
	c.RecordRefine(10*time.Millisecond, 100, 90, nil)

	assert.Equal(t, float64(10), testutil.ToFloat64(c.refineDropped))
	assert.Equal(t, float64(90), testutil.ToFloat64(c.vectorsTotal))
}

func TestRecordDeleteAndCompactionErrorsAreLabeled(t *testing.T) {
	c := NewPrometheusCollector("hybridann")

	c.RecordDelete(time.Millisecond, errors.New("not found"))
	c.RecordCompaction(time.Millisecond, 0, errors.New("rebuild failed"))

	require.Equal(t, float64(1), testutil.ToFloat64(c.deleteErrors.WithLabelValues("not found")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.compactionErrors.WithLabelValues("rebuild failed")))
}
