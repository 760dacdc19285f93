package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// handlePollInterval is how often WaitForBlock re-reads the chain head.
const handlePollInterval = 4 * time.Second

var rpcHTTPClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Handle is one connection to one endpoint. All mutable per-endpoint state
// lives in the owning pool's EndpointStats, never here.
type Handle struct {
	endpointURL  string
	chainID      int
	client       RPCClient
	pollInterval time.Duration
}

// EndpointStats are best-effort counters for one endpoint of a pool.
type EndpointStats struct {
	TotalRequests         int64      `json:"total_requests"`
	SuccessfulRequests    int64      `json:"successful_requests"`
	FailedRequests        int64      `json:"failed_requests"`
	AverageResponseTimeMs float64    `json:"average_response_time_ms"`
	LastHealthCheck       *time.Time `json:"last_health_check,omitempty"`
	IsHealthy             bool       `json:"is_healthy"`
}

func (s EndpointStats) snapshot() EndpointStats {
	if s.LastHealthCheck != nil {
		t := *s.LastHealthCheck
		s.LastHealthCheck = &t
	}
	return s
}

// NewHandle validates endpointURL and dials a go-ethereum client for it.
func NewHandle(ctx context.Context, endpointURL string, chainID int) (*Handle, error) {
	return newHandle(ctx, endpointURL, chainID, dialEthClient)
}

func newHandle(ctx context.Context, endpointURL string, chainID int, factory ClientFactory) (*Handle, error) {
	if _, err := validateEndpointURL(endpointURL); err != nil {
		return nil, err
	}
	client, err := factory(ctx, endpointURL)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", MaskURL(endpointURL), redactURL(err, endpointURL))
	}
	return &Handle{
		endpointURL:  endpointURL,
		chainID:      chainID,
		client:       client,
		pollInterval: handlePollInterval,
	}, nil
}

func validateEndpointURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, &PoolError{Kind: ErrInvalidURL, Endpoint: MaskURL(raw), Err: err}
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, &PoolError{Kind: ErrInvalidURL, Endpoint: MaskURL(raw), Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &PoolError{Kind: ErrInvalidURL, Endpoint: MaskURL(raw), Err: fmt.Errorf("missing host")}
	}
	return u, nil
}

func dialEthClient(ctx context.Context, endpointURL string) (RPCClient, error) {
	c, err := rpc.DialOptions(ctx, endpointURL, rpc.WithHTTPClient(rpcHTTPClient))
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(c), nil
}

// URL returns the endpoint URL this handle was built for.
func (h *Handle) URL() string { return h.endpointURL }

// ChainID returns the chain id the handle was configured for.
func (h *Handle) ChainID() int { return h.chainID }

// Client returns the underlying client.
func (h *Handle) Client() RPCClient { return h.client }

// Eth returns the full go-ethereum client when the handle was dialed with
// the default factory.
func (h *Handle) Eth() (*ethclient.Client, bool) {
	c, ok := h.client.(*ethclient.Client)
	return c, ok
}

// Close releases the underlying connection.
func (h *Handle) Close() {
	if h.client != nil {
		h.client.Close()
	}
}

// WaitForBlock polls the chain head until it reaches height or ctx ends.
func (h *Handle) WaitForBlock(ctx context.Context, height uint64) (uint64, error) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		current, err := h.client.BlockNumber(ctx)
		if err == nil && current >= height {
			return current, nil
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return 0, fmt.Errorf("wait for block %d: %w (last error: %v)", height, ctx.Err(), err)
			}
			return current, fmt.Errorf("wait for block %d: %w", height, ctx.Err())
		case <-ticker.C:
		}
	}
}
