package engine

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Recorders(t *testing.T) {
	m := GetMetrics()
	assert.NotNil(t, m)
	assert.Same(t, m, GetMetrics())

	// Record various metrics to ensure no panics and some coverage
	m.RecordRPCRequest("eip155:1", "https://a", "BlockNumber", 10*time.Millisecond, true)
	m.RecordRPCRequest("eip155:1", "https://a", "BlockNumber", 5*time.Millisecond, false)
	m.RecordRetry("eip155:1", "BlockNumber")
	m.RecordTimeout("eip155:1", "https://a")
	m.UpdateRPCHealthyNodes("eip155:1", 2)
	m.RecordFallbackSelection("eip155:1")
	m.RecordProbeFailure("eip155:1", "https://a")
	m.UpdatePoolsActive(1)
}

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRPCRequest("eip155:10", "https://b", "ChainID", time.Millisecond, false)
	m.UpdateRPCHealthyNodes("eip155:10", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues("eip155:10", "https://b", "ChainID")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequestsFailed.WithLabelValues("eip155:10", "https://b", "ChainID")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RPCHealthyNodes.WithLabelValues("eip155:10")))
}
