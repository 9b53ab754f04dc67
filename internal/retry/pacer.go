package retry

import (
	"context"
	"sync"
	"time"
)

// Pacer 在连续的远程调用之间插入固定间隔，首次调用不等待。
type Pacer struct {
	mu      sync.Mutex
	delay   time.Duration
	started bool
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPacer 创建固定间隔节流器。delay 小于等于零时 Wait 不产生任何等待。
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay, sleep: sleepContext}
}

// SetSleep 替换等待实现，主要用于测试。
func (p *Pacer) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	if sleep != nil {
		p.sleep = sleep
	}
}

// Wait 在第二次及之后的调用前阻塞固定间隔。
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	first := !p.started
	p.started = true
	p.mu.Unlock()

	if first || p.delay <= 0 {
		return nil
	}
	return p.sleep(ctx, p.delay)
}

// Reset 让下一次 Wait 重新视为首次调用。
func (p *Pacer) Reset() {
	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
}
