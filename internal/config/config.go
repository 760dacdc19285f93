package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"web3-rpcpool-go/internal/chains"
	"web3-rpcpool-go/internal/engine"
)

// Config is the process configuration of the rpcpool daemon.
type Config struct {
	Pool       engine.PoolConfig
	ChainsFile string // 可选：YAML 网络注册表，空则使用内置默认值
	LogLevel   string
	LogFormat  string
	HTTPAddr   string
}

func Load() *Config {
	_ = godotenv.Load() // .env文件是可选的

	defaults := engine.DefaultPoolConfig()
	return &Config{
		Pool: engine.PoolConfig{
			ConnectionPoolSize:  int(getEnvAsInt64("RPCPOOL_CONNECTION_POOL_SIZE", int64(defaults.ConnectionPoolSize))),
			HealthCheckInterval: getEnvAsMillis("RPCPOOL_HEALTH_CHECK_INTERVAL_MS", defaults.HealthCheckInterval),
			ProbeTimeout:        getEnvAsMillis("RPCPOOL_PROBE_TIMEOUT_MS", defaults.ProbeTimeout),
			RequestsPerSecond:   getEnvAsFloat("RPCPOOL_RPS", 0),
			RateBurst:           int(getEnvAsInt64("RPCPOOL_RATE_BURST", 1)),
			Retry: engine.RetryConfig{
				MaxRetries:        int(getEnvAsInt64("RPCPOOL_MAX_RETRIES", int64(defaults.Retry.MaxRetries))),
				BaseDelay:         getEnvAsMillis("RPCPOOL_BASE_DELAY_MS", defaults.Retry.BaseDelay),
				PerAttemptTimeout: getEnvAsMillis("RPCPOOL_REQUEST_TIMEOUT_MS", defaults.Retry.PerAttemptTimeout),
			},
		},
		ChainsFile: getEnv("CHAINS_FILE", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),
		HTTPAddr:   getEnv("HTTP_ADDR", ":9090"),
	}
}

// Registry loads CHAINS_FILE when set, otherwise the built-in networks.
func (c *Config) Registry() (*chains.Registry, error) {
	if c.ChainsFile == "" {
		return chains.Default(), nil
	}
	return chains.LoadFile(c.ChainsFile)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		slog.Warn("invalid_env_value", "key", key, "value", valueStr, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		slog.Warn("invalid_env_value", "key", key, "value", valueStr, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	ms := getEnvAsInt64(key, defaultValue.Milliseconds())
	return time.Duration(ms) * time.Millisecond
}
