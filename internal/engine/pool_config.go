package engine

import "time"

// Defaults applied to zero-valued config fields.
const (
	DefaultConnectionPoolSize  = 3
	DefaultHealthCheckInterval = 60 * time.Second
	DefaultProbeTimeout        = 5 * time.Second
	DefaultMaxRetries          = 3
	DefaultBaseDelay           = 1 * time.Second
	DefaultPerAttemptTimeout   = 30 * time.Second

	// custom providers get one probe with this deadline
	customProviderTimeout = 10 * time.Second
)

// Failure-rate health threshold over lifetime counters.
const (
	unhealthyMinRequests = 10
	unhealthyFailureRate = 0.5
)

// RetryConfig controls RequestExecutor attempts.
type RetryConfig struct {
	MaxRetries        int
	BaseDelay         time.Duration
	PerAttemptTimeout time.Duration
}

// DefaultRetryConfig returns 3 attempts, 1s base delay, 30s per attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        DefaultMaxRetries,
		BaseDelay:         DefaultBaseDelay,
		PerAttemptTimeout: DefaultPerAttemptTimeout,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.PerAttemptTimeout <= 0 {
		c.PerAttemptTimeout = DefaultPerAttemptTimeout
	}
	return c
}

// PoolConfig configures every network pool a Manager creates.
type PoolConfig struct {
	ConnectionPoolSize  int
	HealthCheckInterval time.Duration
	ProbeTimeout        time.Duration
	// RequestsPerSecond limits attempts per network; 0 disables limiting.
	RequestsPerSecond float64
	RateBurst         int
	Retry             RetryConfig
}

// DefaultPoolConfig returns the documented defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		ConnectionPoolSize:  DefaultConnectionPoolSize,
		HealthCheckInterval: DefaultHealthCheckInterval,
		ProbeTimeout:        DefaultProbeTimeout,
		Retry:               DefaultRetryConfig(),
	}
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.ConnectionPoolSize <= 0 {
		c.ConnectionPoolSize = DefaultConnectionPoolSize
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	c.Retry = c.Retry.withDefaults()
	return c
}
