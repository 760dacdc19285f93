package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"web3-rpcpool-go/internal/chains"
	"web3-rpcpool-go/internal/limiter"
	"web3-rpcpool-go/internal/monitor"
)

type poolEndpoint struct {
	handle *Handle
	stats  EndpointStats
}

// ProviderPool holds the handles of one network and their statistics.
// cursor and all EndpointStats are guarded by mu; pools never share a
// lock.
type ProviderPool struct {
	network   string
	chain     chains.ChainConfig
	endpoints []*poolEndpoint
	byURL     map[string]*poolEndpoint

	mu                 sync.Mutex
	cursor             roundRobin
	fallbackSelections int64

	limiter *limiter.RateLimiter
	rate    *monitor.RequestRate
	logger  *slog.Logger
	metrics *Metrics
}

// newProviderPool dials up to cfg.ConnectionPoolSize handles, walking
// chain.RPCURLs in priority order and skipping endpoints that fail to build.
func newProviderPool(
	ctx context.Context,
	network string,
	chain chains.ChainConfig,
	cfg PoolConfig,
	factory ClientFactory,
	logger *slog.Logger,
	metrics *Metrics,
) (*ProviderPool, error) {
	p := &ProviderPool{
		network: network,
		chain:   chain,
		byURL:   make(map[string]*poolEndpoint),
		limiter: limiter.NewRateLimiter(network, cfg.RequestsPerSecond, cfg.RateBurst),
		rate:    monitor.NewRequestRate(),
		logger:  logger.With(slog.String("network", network)),
		metrics: metrics,
	}

	var lastErr error
	for _, u := range chain.RPCURLs {
		if len(p.endpoints) >= cfg.ConnectionPoolSize {
			break
		}
		if _, dup := p.byURL[u]; dup {
			continue
		}
		h, err := newHandle(ctx, u, chain.ChainID, factory)
		if err != nil {
			lastErr = err
			p.logger.Warn("rpc_endpoint_skipped",
				slog.String("endpoint", MaskURL(u)),
				slog.String("error", err.Error()))
			continue
		}
		ep := &poolEndpoint{handle: h, stats: EndpointStats{IsHealthy: true}}
		p.endpoints = append(p.endpoints, ep)
		p.byURL[u] = ep
	}

	if len(p.endpoints) == 0 {
		return nil, &PoolError{Kind: ErrNoProvidersAvailable, Network: network, Err: lastErr}
	}
	return p, nil
}

// selectHandle returns the next handle from the healthy subset, or from the
// full set when every endpoint is unhealthy.
func (p *ProviderPool) selectHandle() *Handle {
	p.mu.Lock()
	candidates := make([]*poolEndpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		if ep.stats.IsHealthy {
			candidates = append(candidates, ep)
		}
	}
	fallback := len(candidates) == 0
	if fallback {
		candidates = p.endpoints
		p.fallbackSelections++
	}
	selected := candidates[p.cursor.next(len(candidates))]
	p.mu.Unlock()

	if fallback {
		LogAllEndpointsUnhealthy(p.logger, p.network, len(candidates))
		p.metrics.RecordFallbackSelection(p.network)
	}
	return selected.handle
}

func (p *ProviderPool) recordStart(url string) {
	p.rate.Record(1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if ep, ok := p.byURL[url]; ok {
		ep.stats.TotalRequests++
	}
}

func (p *ProviderPool) recordSuccess(url string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep, ok := p.byURL[url]
	if !ok {
		return
	}
	ep.stats.SuccessfulRequests++
	n := float64(ep.stats.SuccessfulRequests)
	ms := float64(elapsed) / float64(time.Millisecond)
	ep.stats.AverageResponseTimeMs = (ep.stats.AverageResponseTimeMs*(n-1) + ms) / n
}

// recordFailure counts a failed attempt and applies the failure-rate
// threshold. It reports whether the endpoint was just marked unhealthy.
func (p *ProviderPool) recordFailure(url string) bool {
	p.mu.Lock()
	ep, ok := p.byURL[url]
	if !ok {
		p.mu.Unlock()
		return false
	}
	ep.stats.FailedRequests++
	flipped := false
	healthy := 0
	if ep.stats.IsHealthy && breachesFailureThreshold(ep.stats) {
		ep.stats.IsHealthy = false
		flipped = true
		healthy = p.healthyCountLocked()
	}
	stats := ep.stats
	p.mu.Unlock()

	if flipped {
		p.metrics.UpdateRPCHealthyNodes(p.network, healthy)
		LogEndpointUnhealthy(p.logger, p.network, MaskURL(url), "failure_rate", stats)
	}
	return flipped
}

func breachesFailureThreshold(s EndpointStats) bool {
	if s.TotalRequests <= unhealthyMinRequests {
		return false
	}
	return float64(s.FailedRequests)/float64(s.TotalRequests) > unhealthyFailureRate
}

// recordProbe applies a health probe result. It returns the health before
// the probe and the updated stats.
func (p *ProviderPool) recordProbe(url string, healthy bool, at time.Time) (bool, EndpointStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep, ok := p.byURL[url]
	if !ok {
		return healthy, EndpointStats{}
	}
	was := ep.stats.IsHealthy
	ep.stats.IsHealthy = healthy
	stamp := at
	ep.stats.LastHealthCheck = &stamp
	return was, ep.stats.snapshot()
}

func (p *ProviderPool) handles() []*Handle {
	out := make([]*Handle, len(p.endpoints))
	for i, ep := range p.endpoints {
		out[i] = ep.handle
	}
	return out
}

// statsSnapshot copies the stats of every endpoint, keyed by endpoint URL.
func (p *ProviderPool) statsSnapshot() map[string]EndpointStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]EndpointStats, len(p.endpoints))
	for _, ep := range p.endpoints {
		out[ep.handle.URL()] = ep.stats.snapshot()
	}
	return out
}

func (p *ProviderPool) healthyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthyCountLocked()
}

// healthyCountLocked requires p.mu.
func (p *ProviderPool) healthyCountLocked() int {
	n := 0
	for _, ep := range p.endpoints {
		if ep.stats.IsHealthy {
			n++
		}
	}
	return n
}

// health builds the observability snapshot for this pool.
func (p *ProviderPool) health() NetworkHealth {
	p.mu.Lock()
	endpoints := make([]EndpointHealth, len(p.endpoints))
	healthy := 0
	for i, ep := range p.endpoints {
		endpoints[i] = EndpointHealth{URL: ep.handle.URL(), Stats: ep.stats.snapshot()}
		if ep.stats.IsHealthy {
			healthy++
		}
	}
	fallbacks := p.fallbackSelections
	p.mu.Unlock()

	h := NetworkHealth{
		ChainName:          p.chain.Name,
		ChainID:            p.chain.ChainID,
		Endpoints:          endpoints,
		HealthyCount:       healthy,
		AllUnhealthy:       healthy == 0,
		FallbackSelections: fallbacks,
		RequestsPerSecond:  p.rate.PerSecond(),
	}
	if h.AllUnhealthy {
		h.Alert = ErrAllProvidersUnhealthy.Error()
	}
	return h
}

func (p *ProviderPool) close() {
	for _, ep := range p.endpoints {
		ep.handle.Close()
	}
}
