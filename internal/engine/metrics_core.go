package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the provider pools
type Metrics struct {
	// Request executor metrics
	RPCRequestsTotal  *prometheus.CounterVec
	RPCRequestsFailed *prometheus.CounterVec
	RPCLatency        *prometheus.HistogramVec
	RPCRetries        *prometheus.CounterVec
	RPCTimeouts       *prometheus.CounterVec

	// Pool health metrics
	RPCHealthyNodes       *prometheus.GaugeVec
	RPCFallbackSelections *prometheus.CounterVec
	HealthProbesFailed    *prometheus.CounterVec
	PoolsActive           prometheus.Gauge
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics returns the singleton Metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a Metrics instance registered on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RPCRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_requests_total",
			Help: "Total number of RPC attempts by network, endpoint and operation",
		}, []string{"network", "endpoint", "method"}),
		RPCRequestsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_requests_failed_total",
			Help: "Total number of failed RPC attempts by network, endpoint and operation",
		}, []string{"network", "endpoint", "method"}),
		RPCLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rpcpool_request_duration_seconds",
			Help:    "RPC attempt latency by network, endpoint and operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"network", "endpoint", "method"}),
		RPCRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_retries_total",
			Help: "Total number of retry sleeps by network and operation",
		}, []string{"network", "method"}),
		RPCTimeouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_attempt_timeouts_total",
			Help: "Total number of attempts that hit the per-attempt deadline",
		}, []string{"network", "endpoint"}),
		RPCHealthyNodes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rpcpool_healthy_endpoints",
			Help: "Number of healthy endpoints per network pool",
		}, []string{"network"}),
		RPCFallbackSelections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_fallback_selections_total",
			Help: "Selections made while every endpoint of the pool was unhealthy",
		}, []string{"network"}),
		HealthProbesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_health_probes_failed_total",
			Help: "Total number of failed liveness probes",
		}, []string{"network", "endpoint"}),
		PoolsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "rpcpool_pools_active",
			Help: "Number of initialized network pools",
		}),
	}
}
