package metrics_test

import (
	"strings"
	"testing"

	"veneer/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStatsAreCollected(t *testing.T) {
	metrics.TrackCache("test-cache", func() (uint64, uint64) { return 3, 1 })

	expected := `
# HELP veneer_cache_hits_total Cache lookups answered from the cache
# TYPE veneer_cache_hits_total counter
veneer_cache_hits_total{cache="test-cache"} 3
`
	err := testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(expected), "veneer_cache_hits_total")
	require.NoError(t, err)
}

func TestRequestCounter(t *testing.T) {
	metrics.RecordRequest("hover", "test-dialect")
	metrics.RecordRequest("hover", "test-dialect")
	metrics.RecordEngineFailure("hover", "test-engine")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["veneer_dispatch_requests_total"])
	assert.True(t, names["veneer_dispatch_engine_failures_total"])
}
