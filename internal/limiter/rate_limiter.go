package limiter

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// RateLimiter 单个网络池的请求限速器（令牌桶）
// rps <= 0 表示不限速
type RateLimiter struct {
	limiter *rate.Limiter
	rps     float64
}

// NewRateLimiter creates a limiter for one network. A non-positive rps
// disables limiting; burst defaults to 1.
func NewRateLimiter(network string, rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}

	slog.Info("rate_limiter_configured",
		"network", network,
		"rps", rps,
		"burst", burst)

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
	}
}

// Wait 阻塞直到获取令牌（或上下文取消）
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// Unlimited reports whether the limiter lets every request through.
func (rl *RateLimiter) Unlimited() bool {
	return rl.rps <= 0
}

// RPS 返回配置的每秒请求数（0 = 不限速）
func (rl *RateLimiter) RPS() float64 {
	return rl.rps
}
