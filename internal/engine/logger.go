package engine

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// InitLogger 初始化结构化日志
// format "text" 用于开发调试，其余一律 JSON（便于日志收集系统处理）
func InitLogger(level, format string) *slog.Logger {
	return newLogger(os.Stdout, level, format)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var logger *slog.Logger
	if format == "text" {
		logger = slog.New(slog.NewTextHandler(w, opts))
	} else {
		logger = slog.New(slog.NewJSONHandler(w, opts))
	}

	slog.SetDefault(logger)
	return logger
}

// LogRPCRetry 记录 RPC 重试日志
func LogRPCRetry(logger *slog.Logger, network, method string, attempt int, delay time.Duration, err error) {
	logger.Warn("rpc_retry",
		slog.String("network", network),
		slog.String("method", method),
		slog.Int("attempt", attempt),
		slog.Duration("backoff", delay),
		slog.String("error", err.Error()),
	)
}

// LogEndpointUnhealthy 记录节点被标记为不健康
func LogEndpointUnhealthy(logger *slog.Logger, network, endpoint, reason string, stats EndpointStats) {
	logger.Warn("rpc_endpoint_unhealthy",
		slog.String("network", network),
		slog.String("endpoint", endpoint),
		slog.String("reason", reason),
		slog.Int64("total_requests", stats.TotalRequests),
		slog.Int64("failed_requests", stats.FailedRequests),
	)
}

// LogEndpointRecovered 记录节点恢复
func LogEndpointRecovered(logger *slog.Logger, network, endpoint string) {
	logger.Info("rpc_endpoint_recovered",
		slog.String("network", network),
		slog.String("endpoint", endpoint),
	)
}

// LogAllEndpointsUnhealthy 记录全部节点不健康、进入应急轮询
func LogAllEndpointsUnhealthy(logger *slog.Logger, network string, endpoints int) {
	logger.Error("rpc_all_endpoints_unhealthy",
		slog.String("network", network),
		slog.Int("endpoints", endpoints),
		slog.String("error", ErrAllProvidersUnhealthy.Error()),
	)
}
