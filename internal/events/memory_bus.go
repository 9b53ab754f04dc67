package events

import (
	"context"
	"errors"
	"sync"
)

// MemoryBus 使用 channel 实现进程内事件总线，单机部署与测试使用。
type MemoryBus struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// NewMemoryBus 创建内存事件总线。
func NewMemoryBus(size int) *MemoryBus {
	if size <= 0 {
		size = 256
	}
	return &MemoryBus{ch: make(chan Event, size)}
}

// Publish 将事件投递到总线。缓冲已满时丢弃最旧的事件，
// 保证对话主流程不被阻塞。
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("事件总线已关闭")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.ch <- event:
		return nil
	default:
	}
	select {
	case <-b.ch:
	default:
	}
	select {
	case b.ch <- event:
	default:
	}
	return nil
}

// Consume 逐条消费事件直到上下文取消。
func (b *MemoryBus) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-b.ch:
			if !ok {
				return nil
			}
			_ = handler(ctx, event)
		}
	}
}

// Close 关闭内存总线。
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if !b.closed {
		close(b.ch)
		b.closed = true
	}
	b.mu.Unlock()
	return nil
}

var _ Bus = (*MemoryBus)(nil)
