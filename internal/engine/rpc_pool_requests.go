package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Operation is one RPC call against a selected handle. ctx carries the
// per-attempt deadline.
type Operation[T any] func(ctx context.Context, h *Handle) (T, error)

// Execute runs op against the pool of networkID with the manager's retry
// config.
func Execute[T any](ctx context.Context, m *Manager, networkID, opName string, op Operation[T]) (T, error) {
	return ExecuteWithRetry(ctx, m, networkID, opName, m.cfg.Retry, op)
}

// ExecuteWithRetry runs op with failover: every attempt selects the next
// handle, failures feed the endpoint's health stats and are followed by an
// exponential backoff of BaseDelay*2^attempt.
func ExecuteWithRetry[T any](ctx context.Context, m *Manager, networkID, opName string, cfg RetryConfig, op Operation[T]) (T, error) {
	var zero T
	cfg = cfg.withDefaults()

	pool, err := m.pool(ctx, networkID)
	if err != nil {
		return zero, err
	}

	delays := newRetryBackOff(cfg.BaseDelay)
	var lastErr error
	var lastEndpoint string

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		// 令牌桶限速：等待令牌
		if err := pool.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("%s on %s: rate limiter: %w", opName, networkID, err)
		}

		handle := pool.selectHandle()
		endpoint := MaskURL(handle.URL())
		pool.recordStart(handle.URL())

		start := time.Now()
		result, err := runAttempt(ctx, cfg.PerAttemptTimeout, handle, op)
		elapsed := time.Since(start)

		if err == nil {
			pool.recordSuccess(handle.URL(), elapsed)
			m.metrics.RecordRPCRequest(networkID, endpoint, opName, elapsed, true)
			return result, nil
		}
		if ctx.Err() != nil {
			// caller gave up, not the endpoint's fault
			return zero, fmt.Errorf("%s on %s: %w", opName, networkID, ctx.Err())
		}

		err = redactURL(err, handle.URL())
		pool.recordFailure(handle.URL())
		m.metrics.RecordRPCRequest(networkID, endpoint, opName, elapsed, false)
		if errors.Is(err, ErrOperationTimeout) {
			m.metrics.RecordTimeout(networkID, endpoint)
		}
		lastErr, lastEndpoint = err, endpoint

		if isAuthError(err) {
			return zero, &PoolError{
				Kind:      ErrAuthenticationFailed,
				Network:   networkID,
				Operation: opName,
				Endpoint:  endpoint,
				Attempts:  attempt + 1,
				Err:       err,
			}
		}
		if attempt == cfg.MaxRetries-1 {
			break
		}

		delay := delays.NextBackOff()
		LogRPCRetry(m.logger, networkID, opName, attempt+1, delay, err)
		m.metrics.RecordRetry(networkID, opName)
		if err := sleepContext(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s on %s: %w", opName, networkID, err)
		}
	}

	return zero, &PoolError{
		Kind:      ErrOperationFailed,
		Network:   networkID,
		Operation: opName,
		Endpoint:  lastEndpoint,
		Attempts:  cfg.MaxRetries,
		Err:       lastErr,
	}
}

// runAttempt races op against timeout. An op that ignores its context is
// abandoned when the timer fires.
func runAttempt[T any](ctx context.Context, timeout time.Duration, h *Handle, op Operation[T]) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("operation panicked: %v", r)}
			}
		}()
		v, err := op(attemptCtx, h)
		done <- outcome{val: v, err: err}
	}()

	var zero T
	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return zero, attemptTimeout(h, timeout, out.err)
		}
		return out.val, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, attemptTimeout(h, timeout, attemptCtx.Err())
	}
}

func attemptTimeout(h *Handle, timeout time.Duration, cause error) error {
	return &PoolError{
		Kind:     ErrOperationTimeout,
		Endpoint: MaskURL(h.URL()),
		Err:      fmt.Errorf("no response within %s: %w", timeout, cause),
	}
}

// newRetryBackOff yields base, 2*base, 4*base, ... without jitter or cap.
func newRetryBackOff(base time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BlockNumber 获取链上最新块高（带故障转移和重试）
func BlockNumber(ctx context.Context, m *Manager, networkID string) (uint64, error) {
	return Execute(ctx, m, networkID, "BlockNumber", func(ctx context.Context, h *Handle) (uint64, error) {
		return h.Client().BlockNumber(ctx)
	})
}

// ChainID 获取节点报告的 Chain ID（带故障转移和重试）
func ChainID(ctx context.Context, m *Manager, networkID string) (*big.Int, error) {
	return Execute(ctx, m, networkID, "ChainID", func(ctx context.Context, h *Handle) (*big.Int, error) {
		return h.Client().ChainID(ctx)
	})
}
