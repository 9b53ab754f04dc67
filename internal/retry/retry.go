package retry

import (
	"context"
	"math/rand"
	"time"

	xerrors "Slate-Tron/internal/errors"
	"Slate-Tron/pkg/logger"
)

// Retrier 以指数退避加抖动的方式执行远程调用。
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	randFloat   func() float64
}

// Option 定义可选的 Retrier 配置。
type Option func(*Retrier)

// WithSleep 替换等待实现，主要用于测试。
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retrier) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithRandFloat 替换抖动随机源，主要用于测试。
func WithRandFloat(f func() float64) Option {
	return func(r *Retrier) {
		if f != nil {
			r.randFloat = f
		}
	}
}

// New 创建一个 Retrier。maxAttempts 包含首次尝试在内。
func New(maxAttempts int, baseDelay time.Duration, opts ...Option) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	r := &Retrier{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleepContext,
		randFloat:   rand.Float64,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Do 执行 fn，失败时按 base*2^(k-1)*(1+jitter) 退避后重试，jitter 取 [0, 0.25)。
// 所有尝试均失败时返回 RETRIES_EXHAUSTED，并携带最后一次错误。
func (r *Retrier) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == r.maxAttempts {
			break
		}
		delay := r.backoff(attempt)
		logger.Named("retry").Warn("远程调用失败，准备重试",
			"label", label,
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"delay", delay.String(),
			"error", lastErr,
		)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return xerrors.Wrap(xerrors.CodeRetriesExhausted, lastErr, "重试次数耗尽: "+label,
		xerrors.WithMetadata("label", label))
}

// backoff 计算第 attempt 次失败后的等待时间。
func (r *Retrier) backoff(attempt int) time.Duration {
	base := float64(r.baseDelay)
	for i := 1; i < attempt; i++ {
		base *= 2
	}
	jitter := 1 + 0.25*r.randFloat()
	return time.Duration(base * jitter)
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
