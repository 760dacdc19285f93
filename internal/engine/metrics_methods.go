package engine

import "time"

// RecordRPCRequest records one attempt
func (m *Metrics) RecordRPCRequest(network, endpoint, method string, duration time.Duration, success bool) {
	labels := map[string]string{"network": network, "endpoint": endpoint, "method": method}
	m.RPCRequestsTotal.With(labels).Inc()
	m.RPCLatency.With(labels).Observe(duration.Seconds())

	if !success {
		m.RPCRequestsFailed.With(labels).Inc()
	}
}

// RecordRetry records a backoff sleep before another attempt
func (m *Metrics) RecordRetry(network, method string) {
	m.RPCRetries.WithLabelValues(network, method).Inc()
}

// RecordTimeout records an attempt that hit its deadline
func (m *Metrics) RecordTimeout(network, endpoint string) {
	m.RPCTimeouts.WithLabelValues(network, endpoint).Inc()
}

// UpdateRPCHealthyNodes updates the healthy endpoint count for a pool
func (m *Metrics) UpdateRPCHealthyNodes(network string, count int) {
	m.RPCHealthyNodes.WithLabelValues(network).Set(float64(count))
}

// DropRPCHealthyNodes removes the healthy endpoint gauge of a torn down pool
func (m *Metrics) DropRPCHealthyNodes(network string) {
	m.RPCHealthyNodes.DeleteLabelValues(network)
}

// RecordFallbackSelection records a selection from an all-unhealthy pool
func (m *Metrics) RecordFallbackSelection(network string) {
	m.RPCFallbackSelections.WithLabelValues(network).Inc()
}

// RecordProbeFailure records a failed liveness probe
func (m *Metrics) RecordProbeFailure(network, endpoint string) {
	m.HealthProbesFailed.WithLabelValues(network, endpoint).Inc()
}

// UpdatePoolsActive sets the number of live pools
func (m *Metrics) UpdatePoolsActive(count int) {
	m.PoolsActive.Set(float64(count))
}
