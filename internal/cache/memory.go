package cache

import (
	"context"
	"sync"
	"time"

	"Slate-Tron/internal/justlend"
)

type memoryEntry struct {
	list      justlend.MarketList
	expiresAt time.Time
}

// MemoryCache 是进程内的市场列表缓存实现。
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int]memoryEntry
	now     func() time.Time
}

// NewMemoryCache 创建内存缓存。
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[int]memoryEntry),
		now:     time.Now,
	}
}

// SetNow 替换时间源，主要用于测试。
func (c *MemoryCache) SetNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Get 优先返回精确命中的条目，否则选择能覆盖 limit 的最小缓存键并截取。
func (c *MemoryCache) Get(_ context.Context, limit int) (*justlend.MarketList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 过期判定为闭区间：时间恰好到达 expiresAt 时仍可命中。
	now := c.now()
	if entry, ok := c.entries[limit]; ok {
		if !now.After(entry.expiresAt) {
			return clone(&entry.list, limit), true
		}
		delete(c.entries, limit)
	}

	best := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			continue
		}
		if key > limit && (best == 0 || key < best) {
			best = key
		}
	}
	if best == 0 {
		return nil, false
	}
	entry := c.entries[best]
	return clone(&entry.list, limit), true
}

// Put 以 limit 为键缓存列表。
func (c *MemoryCache) Put(_ context.Context, limit int, list *justlend.MarketList) {
	if list == nil || limit <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[limit] = memoryEntry{
		list:      *clone(list, len(list.Markets)),
		expiresAt: c.now().Add(c.ttl),
	}
}

// Close 实现 MarketsCache 接口。
func (c *MemoryCache) Close() error { return nil }

var _ MarketsCache = (*MemoryCache)(nil)
