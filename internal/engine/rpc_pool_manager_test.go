package engine

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func noEnvBuilder() *URLBuilder {
	return &URLBuilder{lookupEnv: func(string) (string, bool) { return "", false }}
}

func TestManager_IsNetworkSupported(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, testURLs(2), testPoolConfig())

	assert.True(t, m.IsNetworkSupported(testNetwork))
	assert.False(t, m.IsNetworkSupported("eip155:999"))
	assert.Empty(t, m.GetHealthStatus(), "lookup never initializes a pool")
	assert.Zero(t, backend.dialCount(testURLs(1)[0]))
}

func TestGetProvider_CustomBypassesPool(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, testURLs(3), testPoolConfig(), WithURLBuilder(noEnvBuilder()))
	ctx := context.Background()

	_, err := BlockNumber(ctx, m, testNetwork)
	require.NoError(t, err)

	pool, err := m.pool(ctx, testNetwork)
	require.NoError(t, err)
	statsBefore := pool.statsSnapshot()
	cursorBefore := pool.cursor.index

	customURL := "https://my-node.example.com/rpc?apikey=K"
	client := new(MockRPCClient)
	client.On("BlockNumber", mock.Anything).Return(uint64(77), nil).Once()
	backend.register(customURL, client)

	key := "K"
	h, err := m.GetProvider(ctx, testNetwork, &CustomOverride{ProviderURL: "https://my-node.example.com/rpc", APIKey: &key})
	require.NoError(t, err)
	assert.Equal(t, customURL, h.URL())
	assert.Equal(t, 1, h.ChainID())

	assert.Equal(t, statsBefore, pool.statsSnapshot())
	assert.Equal(t, cursorBefore, pool.cursor.index)
	client.AssertExpectations(t)
}

func TestGetProvider_CustomErrors(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, testURLs(1), testPoolConfig(), WithURLBuilder(noEnvBuilder()))
	ctx := context.Background()

	t.Run("invalid url", func(t *testing.T) {
		_, err := m.GetProvider(ctx, testNetwork, &CustomOverride{ProviderURL: "ftp//nope"})
		assert.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("unreachable", func(t *testing.T) {
		u := "https://down.example.com/rpc"
		client := new(MockRPCClient)
		client.On("BlockNumber", mock.Anything).Return(uint64(0), errors.New("connection refused"))
		client.On("Close").Return().Once()
		backend.register(u, client)

		_, err := m.GetProvider(ctx, testNetwork, &CustomOverride{ProviderURL: u})
		assert.ErrorIs(t, err, ErrProviderUnreachable)
		client.AssertExpectations(t)
	})

	t.Run("auth rejected", func(t *testing.T) {
		u := "https://locked.example.com/rpc"
		client := new(MockRPCClient)
		client.On("BlockNumber", mock.Anything).
			Return(uint64(0), rpc.HTTPError{StatusCode: http.StatusForbidden, Status: "403 Forbidden"})
		client.On("Close").Return().Once()
		backend.register(u, client)

		_, err := m.GetProvider(ctx, testNetwork, &CustomOverride{ProviderURL: u})
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.Contains(t, err.Error(), "API key")
		assert.NotContains(t, err.Error(), "/rpc", "endpoint is masked")
	})

	t.Run("dial failure", func(t *testing.T) {
		u := "https://nodial.example.com"
		backend.failDial(u, errors.New("no such host"))

		_, err := m.GetProvider(ctx, testNetwork, &CustomOverride{ProviderURL: u})
		assert.ErrorIs(t, err, ErrProviderUnreachable)
	})
}

func TestValidateCustomProvider(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, testURLs(1), testPoolConfig(), WithURLBuilder(noEnvBuilder()))
	ctx := context.Background()

	optimism := "https://opt.example.com"
	backend.client(optimism).chainID = 10

	res, err := m.ValidateCustomProvider(ctx, 1, optimism, nil)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.EqualValues(t, 10, res.ChainID)
	assert.Contains(t, res.Warning, "network mismatch")
	assert.True(t, backend.client(optimism).isClosed())

	res, err = m.ValidateCustomProvider(ctx, 10, optimism, nil)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warning)

	client := new(MockRPCClient)
	client.On("ChainID", mock.Anything).Return(nil, rpc.HTTPError{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"})
	client.On("Close").Return()
	backend.register("https://auth.example.com", client)

	_, err = m.ValidateCustomProvider(ctx, 1, "https://auth.example.com", nil)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	assert.Empty(t, m.GetHealthStatus(), "validation never builds a pool")
}

func TestGetProvider_NoProvidersAvailable(t *testing.T) {
	backend := newFakeBackend()
	urls := testURLs(2)
	for _, u := range urls {
		backend.failDial(u, errors.New("dial tcp: connection refused"))
	}
	m := newTestManager(t, backend, urls, testPoolConfig())
	ctx := context.Background()

	_, err := m.GetProvider(ctx, testNetwork, nil)
	assert.ErrorIs(t, err, ErrNoProvidersAvailable)
	assert.Contains(t, err.Error(), testNetwork)

	// failed init is not cached
	_, err = m.GetProvider(ctx, testNetwork, nil)
	assert.ErrorIs(t, err, ErrNoProvidersAvailable)
	assert.Equal(t, 2, backend.dialCount(urls[0]))
}

func TestGetProvider_ConcurrentInitDialsOnce(t *testing.T) {
	backend := newFakeBackend()
	urls := testURLs(3)
	m := newTestManager(t, backend, urls, testPoolConfig())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.GetProvider(context.Background(), testNetwork, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	for _, u := range urls {
		assert.Equal(t, 1, backend.dialCount(u), u)
	}
}

func TestManager_EagerProbeOnInit(t *testing.T) {
	backend := newFakeBackend()
	urls := testURLs(2)
	backend.client(urls[1]).setErr(errors.New("down"))
	m := newTestManager(t, backend, urls, testPoolConfig())

	_, err := m.GetProvider(context.Background(), testNetwork, nil)
	require.NoError(t, err)

	stats, err := m.GetProviderStats(testNetwork)
	require.NoError(t, err)
	for _, u := range urls {
		assert.NotNil(t, stats[u].LastHealthCheck, u)
	}
	assert.True(t, stats[urls[0]].IsHealthy)
	assert.False(t, stats[urls[1]].IsHealthy)
}

func TestManager_GetProviderStats(t *testing.T) {
	m := newTestManager(t, newFakeBackend(), testURLs(2), testPoolConfig())

	stats, err := m.GetProviderStats(testNetwork)
	require.NoError(t, err)
	assert.Empty(t, stats)

	_, err = m.GetProviderStats("eip155:999")
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)
}

func TestManager_PeriodicHealthLoop(t *testing.T) {
	backend := newFakeBackend()
	urls := testURLs(1)
	cfg := testPoolConfig()
	cfg.HealthCheckInterval = 10 * time.Millisecond
	m := newTestManager(t, backend, urls, cfg)

	_, err := m.GetProvider(context.Background(), testNetwork, nil)
	require.NoError(t, err)

	backend.client(urls[0]).setErr(errors.New("down"))
	require.Eventually(t, func() bool {
		stats, _ := m.GetProviderStats(testNetwork)
		return !stats[urls[0]].IsHealthy
	}, time.Second, 5*time.Millisecond)

	backend.client(urls[0]).setErr(nil)
	require.Eventually(t, func() bool {
		stats, _ := m.GetProviderStats(testNetwork)
		return stats[urls[0]].IsHealthy
	}, time.Second, 5*time.Millisecond)
}

func TestManager_ShutdownStopsLoops(t *testing.T) {
	backend := newFakeBackend()
	urls := testURLs(2)
	cfg := testPoolConfig()
	cfg.HealthCheckInterval = 5 * time.Millisecond
	m := newTestManager(t, backend, urls, cfg)

	_, err := m.GetProvider(context.Background(), testNetwork, nil)
	require.NoError(t, err)

	probe := backend.client(urls[0])
	require.Eventually(t, func() bool { return probe.callCount() > 3 }, time.Second, 5*time.Millisecond)

	m.Shutdown()
	m.Shutdown()

	calls := probe.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, probe.callCount())
	for _, u := range urls {
		assert.True(t, backend.client(u).isClosed(), u)
	}

	_, err = m.GetProvider(context.Background(), testNetwork, nil)
	assert.ErrorIs(t, err, ErrManagerClosed)
	assert.Empty(t, m.GetHealthStatus())
}

func TestManager_ResetNetwork(t *testing.T) {
	backend := newFakeBackend()
	urls := testURLs(2)
	m := newTestManager(t, backend, urls, testPoolConfig())
	ctx := context.Background()

	assert.False(t, m.ResetNetwork(testNetwork))

	_, err := m.GetProvider(ctx, testNetwork, nil)
	require.NoError(t, err)
	assert.True(t, m.ResetNetwork(testNetwork))
	assert.True(t, backend.client(urls[0]).isClosed())
	assert.Empty(t, m.GetHealthStatus())

	_, err = m.GetProvider(ctx, testNetwork, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.dialCount(urls[0]))
}

func TestManager_HealthyGaugeFollowsPool(t *testing.T) {
	urls := testURLs(3)
	metrics := NewMetrics(prometheus.NewRegistry())
	m := newTestManager(t, newFakeBackend(), urls, testPoolConfig(), WithMetrics(metrics))
	ctx := context.Background()

	_, err := m.GetProvider(ctx, testNetwork, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RPCHealthyNodes.WithLabelValues(testNetwork)))

	// 失败率越过阈值时立即更新，不等下一轮探活
	p := m.pools[testNetwork]
	for i := 0; i <= unhealthyMinRequests; i++ {
		p.recordStart(urls[0])
		p.recordFailure(urls[0])
	}
	assert.False(t, p.statsSnapshot()[urls[0]].IsHealthy)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RPCHealthyNodes.WithLabelValues(testNetwork)))

	require.True(t, m.ResetNetwork(testNetwork))
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.RPCHealthyNodes))

	_, err = m.GetProvider(ctx, testNetwork, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.RPCHealthyNodes))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RPCHealthyNodes.WithLabelValues(testNetwork)))

	m.Shutdown()
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.RPCHealthyNodes))
}

func TestManager_HealthStatusRequestRate(t *testing.T) {
	m := newTestManager(t, newFakeBackend(), testURLs(2), testPoolConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := BlockNumber(ctx, m, testNetwork)
		require.NoError(t, err)
	}

	status := m.GetHealthStatus()[testNetwork]
	assert.Greater(t, status.RequestsPerSecond, 0.0)
	assert.Equal(t, 2, status.HealthyCount)
	assert.False(t, status.AllUnhealthy)
	assert.Empty(t, status.Alert)
	require.Len(t, status.Endpoints, 2)

	var total int64
	for _, ep := range status.Endpoints {
		total += ep.Stats.TotalRequests
	}
	assert.EqualValues(t, 5, total)
}

func TestManager_CustomDoesNotRequireSupportedNetwork(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, testURLs(1), testPoolConfig(), WithURLBuilder(noEnvBuilder()))

	h, err := m.GetProvider(context.Background(), "eip155:31337", &CustomOverride{ProviderURL: "http://127.0.0.1:8545"})
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 0, h.ChainID())

	id, err := h.Client().ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), id)
}
