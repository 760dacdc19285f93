package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"web3-rpcpool-go/internal/chains"
	"web3-rpcpool-go/pkg/network"
)

// CustomOverride asks GetProvider for an ad-hoc handle instead of a pooled
// one. A nil APIKey means the key is resolved from the environment.
type CustomOverride struct {
	ProviderURL string
	APIKey      *string
}

// ValidationResult is the outcome of ValidateCustomProvider. A chain id
// mismatch is reported as Warning, not as an error.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	ChainID int64  `json:"chain_id"`
	Warning string `json:"warning,omitempty"`
}

// EndpointHealth pairs an endpoint URL with its stats snapshot.
type EndpointHealth struct {
	URL   string        `json:"url"`
	Stats EndpointStats `json:"stats"`
}

// NetworkHealth is the read-only health snapshot of one initialized pool.
type NetworkHealth struct {
	ChainName          string           `json:"chain_name"`
	ChainID            int              `json:"chain_id"`
	Endpoints          []EndpointHealth `json:"endpoints"`
	HealthyCount       int              `json:"healthy_count"`
	AllUnhealthy       bool             `json:"all_unhealthy"`
	FallbackSelections int64            `json:"fallback_selections"`
	RequestsPerSecond  float64          `json:"requests_per_second"`
	Alert              string           `json:"alert,omitempty"`
}

// Manager owns one ProviderPool and one HealthMonitor per network. Pools are
// created on first use and live until ResetNetwork or Shutdown.
type Manager struct {
	registry *chains.Registry
	cfg      PoolConfig
	factory  ClientFactory
	urls     *URLBuilder
	logger   *slog.Logger
	metrics  *Metrics

	// root context of every health loop and pool dial
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	pools    map[string]*ProviderPool
	monitors map[string]*HealthMonitor
	closed   bool

	initGroup singleflight.Group
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithClientFactory replaces the go-ethereum dialer, mostly for tests.
func WithClientFactory(factory ClientFactory) ManagerOption {
	return func(m *Manager) { m.factory = factory }
}

// WithURLBuilder replaces the builder used for custom providers.
func WithURLBuilder(b *URLBuilder) ManagerOption {
	return func(m *Manager) { m.urls = b }
}

// WithMetrics records into m instead of the process-wide metrics.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a manager over registry. No endpoint is dialed until a
// network is first used.
func NewManager(registry *chains.Registry, cfg PoolConfig, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		registry: registry,
		cfg:      cfg.withDefaults(),
		factory:  dialEthClient,
		urls:     NewURLBuilder(),
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
		pools:    make(map[string]*ProviderPool),
		monitors: make(map[string]*HealthMonitor),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = GetMetrics()
	}
	return m
}

// Config returns the effective pool configuration.
func (m *Manager) Config() PoolConfig { return m.cfg }

// IsNetworkSupported reports whether networkID has a registry entry. It never
// initializes a pool.
func (m *Manager) IsNetworkSupported(networkID string) bool {
	return m.registry.IsSupported(networkID)
}

// GetProvider returns the next pooled handle for networkID. With a non-nil
// custom override it instead returns a fresh, probed handle for that URL and
// leaves the pool untouched; the caller owns and must Close that handle.
func (m *Manager) GetProvider(ctx context.Context, networkID string, custom *CustomOverride) (*Handle, error) {
	if custom != nil {
		return m.customProvider(ctx, networkID, custom)
	}
	pool, err := m.pool(ctx, networkID)
	if err != nil {
		return nil, err
	}
	return pool.selectHandle(), nil
}

// pool returns the pool for networkID, initializing it on first use.
// Concurrent first callers share a single initialization.
func (m *Manager) pool(ctx context.Context, networkID string) (*ProviderPool, error) {
	m.mu.RLock()
	p, ok := m.pools[networkID]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, &PoolError{Kind: ErrManagerClosed, Network: networkID}
	}
	if ok {
		return p, nil
	}

	chain, ok := m.registry.Get(networkID)
	if !ok {
		return nil, &PoolError{Kind: ErrUnsupportedNetwork, Network: networkID}
	}

	ch := m.initGroup.DoChan(networkID, func() (interface{}, error) {
		return m.initPool(networkID, chain)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ProviderPool), nil
	}
}

// initPool dials the pool under the manager's own context so a cancelled
// first caller does not abort an initialization other callers are waiting on.
func (m *Manager) initPool(networkID string, chain chains.ChainConfig) (*ProviderPool, error) {
	m.mu.RLock()
	if p, ok := m.pools[networkID]; ok {
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	pool, err := newProviderPool(m.ctx, networkID, chain, m.cfg, m.factory, m.logger, m.metrics)
	if err != nil {
		m.logger.Error("rpc_pool_init_failed",
			slog.String("network", networkID),
			slog.String("error", err.Error()))
		return nil, err
	}

	// eager probe so the pool is never used with unknown health
	mon := newHealthMonitor(pool, m.cfg)
	mon.CheckNow(m.ctx)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		pool.close()
		return nil, &PoolError{Kind: ErrManagerClosed, Network: networkID}
	}
	m.pools[networkID] = pool
	m.monitors[networkID] = mon
	mon.start(m.ctx)
	active := len(m.pools)
	m.mu.Unlock()

	m.metrics.UpdatePoolsActive(active)
	m.logger.Info("rpc_pool_initialized",
		slog.String("network", networkID),
		slog.String("chain", chain.Name),
		slog.Int("endpoints", len(pool.endpoints)),
		slog.Int("healthy", pool.healthyCount()),
		slog.Duration("health_check_interval", m.cfg.HealthCheckInterval))
	return pool, nil
}

func (m *Manager) customProvider(ctx context.Context, networkID string, custom *CustomOverride) (*Handle, error) {
	endpoint, err := m.urls.Build(custom.ProviderURL, custom.APIKey)
	if err != nil {
		return nil, err
	}
	chainID := 0
	if chain, ok := m.registry.Get(networkID); ok {
		chainID = chain.ChainID
	}

	probeCtx, cancel := context.WithTimeout(ctx, customProviderTimeout)
	defer cancel()

	h, err := newHandle(probeCtx, endpoint, chainID, m.factory)
	if err != nil {
		return nil, customProviderError(networkID, "GetProvider", endpoint, err)
	}
	if _, err := h.Client().BlockNumber(probeCtx); err != nil {
		h.Close()
		return nil, customProviderError(networkID, "GetProvider", endpoint, err)
	}
	return h, nil
}

// ValidateCustomProvider probes providerURL once and compares the chain id it
// serves with chainID. A reachable endpoint on another chain is still Valid,
// with a Warning.
func (m *Manager) ValidateCustomProvider(ctx context.Context, chainID int, providerURL string, apiKey *string) (ValidationResult, error) {
	networkID := chains.NetworkID(chainID)
	endpoint, err := m.urls.Build(providerURL, apiKey)
	if err != nil {
		return ValidationResult{}, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, customProviderTimeout)
	defer cancel()

	h, err := newHandle(probeCtx, endpoint, chainID, m.factory)
	if err != nil {
		return ValidationResult{}, customProviderError(networkID, "ValidateCustomProvider", endpoint, err)
	}
	defer h.Close()

	actual, err := network.VerifyNetwork(probeCtx, h.Client(), int64(chainID))
	var mismatch *network.MismatchError
	switch {
	case errors.As(err, &mismatch):
		return ValidationResult{Valid: true, ChainID: actual, Warning: mismatch.Error()}, nil
	case err != nil:
		return ValidationResult{}, customProviderError(networkID, "ValidateCustomProvider", endpoint, err)
	}
	return ValidationResult{Valid: true, ChainID: actual}, nil
}

func customProviderError(networkID, op, endpoint string, err error) error {
	if errors.Is(err, ErrInvalidURL) {
		return err
	}
	kind := ErrProviderUnreachable
	if isAuthError(err) {
		kind = ErrAuthenticationFailed
	}
	return &PoolError{Kind: kind, Network: networkID, Operation: op, Endpoint: MaskURL(endpoint), Err: redactURL(err, endpoint)}
}

// GetProviderStats returns a copy of the per-endpoint stats of networkID,
// keyed by endpoint URL. A network whose pool is not initialized yet has no
// stats.
func (m *Manager) GetProviderStats(networkID string) (map[string]EndpointStats, error) {
	if !m.registry.IsSupported(networkID) {
		return nil, &PoolError{Kind: ErrUnsupportedNetwork, Network: networkID}
	}
	m.mu.RLock()
	p, ok := m.pools[networkID]
	m.mu.RUnlock()
	if !ok {
		return map[string]EndpointStats{}, nil
	}
	return p.statsSnapshot(), nil
}

// GetHealthStatus returns a snapshot of every initialized pool.
func (m *Manager) GetHealthStatus() map[string]NetworkHealth {
	m.mu.RLock()
	pools := make(map[string]*ProviderPool, len(m.pools))
	for id, p := range m.pools {
		pools[id] = p
	}
	m.mu.RUnlock()

	out := make(map[string]NetworkHealth, len(pools))
	for id, p := range pools {
		out[id] = p.health()
	}
	return out
}

// ResetNetwork tears down the pool of networkID. The next call for that
// network initializes it again. It reports whether a pool existed.
func (m *Manager) ResetNetwork(networkID string) bool {
	m.mu.Lock()
	p, ok := m.pools[networkID]
	mon := m.monitors[networkID]
	delete(m.pools, networkID)
	delete(m.monitors, networkID)
	active := len(m.pools)
	m.mu.Unlock()
	if !ok {
		return false
	}

	mon.stop()
	p.close()
	m.metrics.DropRPCHealthyNodes(networkID)
	m.metrics.UpdatePoolsActive(active)
	m.logger.Info("rpc_pool_reset", slog.String("network", networkID))
	return true
}

// Shutdown stops every health loop and closes every pooled handle. It is
// safe to call more than once; later calls on the manager fail with
// ErrManagerClosed.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pools, monitors := m.pools, m.monitors
	m.pools = make(map[string]*ProviderPool)
	m.monitors = make(map[string]*HealthMonitor)
	m.mu.Unlock()

	m.cancel()
	for _, mon := range monitors {
		mon.stop()
	}
	for id, p := range pools {
		p.close()
		m.metrics.DropRPCHealthyNodes(id)
	}
	m.metrics.UpdatePoolsActive(0)
	m.logger.Info("rpc_pool_manager_stopped", slog.Int("pools", len(pools)))
}
