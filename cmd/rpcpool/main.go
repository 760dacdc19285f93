package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"web3-rpcpool-go/internal/config"
	"web3-rpcpool-go/internal/engine"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. 加载配置
	cfg := config.Load()
	logger := engine.InitLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting rpc provider pool", "http_addr", cfg.HTTPAddr)

	registry, err := cfg.Registry()
	if err != nil {
		logger.Error("registry_load_failed", "file", cfg.ChainsFile, "error", err)
		os.Exit(1)
	}

	// 2. 初始化连接池管理器（各网络首次使用时才建立连接）
	manager := engine.NewManager(registry, cfg.Pool, engine.WithLogger(logger))
	logger.Info("networks configured", "networks", registry.Networks())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newServer(manager, logger).routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout(manager.Config().Retry),
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 3. 优雅退出处理
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serveErr:
		logger.Error("http_server_failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http_shutdown_incomplete", "error", err)
	}
	manager.Shutdown()
	logger.Info("shutdown complete")
}

// writeTimeout leaves room for every attempt of a request plus the backoff
// sleeps between them.
func writeTimeout(retry engine.RetryConfig) time.Duration {
	return retry.PerAttemptTimeout*time.Duration(retry.MaxRetries) + 30*time.Second
}
