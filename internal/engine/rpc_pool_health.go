package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"web3-rpcpool-go/internal/recovery"
)

// HealthMonitor periodically probes every handle of one pool.
type HealthMonitor struct {
	pool         *ProviderPool
	interval     time.Duration
	probeTimeout time.Duration
	logger       *slog.Logger
	metrics      *Metrics

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

func newHealthMonitor(pool *ProviderPool, cfg PoolConfig) *HealthMonitor {
	return &HealthMonitor{
		pool:         pool,
		interval:     cfg.HealthCheckInterval,
		probeTimeout: cfg.ProbeTimeout,
		logger:       pool.logger.With(slog.String("component", "health_monitor")),
		metrics:      pool.metrics,
		done:         make(chan struct{}),
	}
}

// start runs the ticker loop until ctx is cancelled or stop is called.
func (h *HealthMonitor) start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	ticker := time.NewTicker(h.interval)

	go func() {
		defer close(h.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				h.logger.Debug("health monitor stopping")
				return
			case <-ticker.C:
				h.CheckNow(ctx)
			}
		}
	}()
}

// stop cancels the loop and waits for it to exit. Safe to call on a monitor
// that was never started.
func (h *HealthMonitor) stop() {
	h.stopOnce.Do(func() {
		if h.cancel == nil {
			close(h.done)
			return
		}
		h.cancel()
	})
	<-h.done
}

// CheckNow probes every handle concurrently and waits for all of them. A
// failing or slow probe never cancels its siblings.
func (h *HealthMonitor) CheckNow(ctx context.Context) {
	var wg sync.WaitGroup
	for _, handle := range h.pool.handles() {
		wg.Add(1)
		go func(hd *Handle) {
			defer wg.Done()
			recovery.WithRecoveryNamed(h.logger, "health_probe", func() {
				h.probe(ctx, hd)
			})
		}(handle)
	}
	wg.Wait()

	h.metrics.UpdateRPCHealthyNodes(h.pool.network, h.pool.healthyCount())
}

func (h *HealthMonitor) probe(ctx context.Context, handle *Handle) {
	probeCtx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	defer cancel()

	start := time.Now()
	height, err := handle.Client().BlockNumber(probeCtx)
	latency := time.Since(start)
	if err != nil && ctx.Err() != nil {
		// shutting down; leave health untouched
		return
	}

	endpoint := MaskURL(handle.URL())
	was, stats := h.pool.recordProbe(handle.URL(), err == nil, time.Now())

	if err != nil {
		h.metrics.RecordProbeFailure(h.pool.network, endpoint)
		h.logger.Warn("health_probe_failed",
			slog.String("endpoint", endpoint),
			slog.Duration("latency", latency),
			slog.String("error", redactURL(err, handle.URL()).Error()))
		if was {
			LogEndpointUnhealthy(h.logger, h.pool.network, endpoint, "probe_failed", stats)
		}
		return
	}

	h.logger.Debug("health_probe_passed",
		slog.String("endpoint", endpoint),
		slog.Uint64("block", height),
		slog.Duration("latency", latency))
	if !was {
		LogEndpointRecovered(h.logger, h.pool.network, endpoint)
	}
}
