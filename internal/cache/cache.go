package cache

import (
	"context"

	"Slate-Tron/internal/justlend"
)

// MarketsCache 按请求条数缓存市场列表，条目在短 TTL 后过期。
type MarketsCache interface {
	// Get 返回能满足 limit 的缓存列表。命中更大条数的缓存时会截取前 limit 条。
	Get(ctx context.Context, limit int) (*justlend.MarketList, bool)
	// Put 以 limit 为键写入缓存。
	Put(ctx context.Context, limit int, list *justlend.MarketList)
	Close() error
}

// clone 返回截取到 limit 条后的副本，避免调用方修改缓存内容。
func clone(list *justlend.MarketList, limit int) *justlend.MarketList {
	markets := list.Markets
	if limit < len(markets) {
		markets = markets[:limit]
	}
	copied := make([]justlend.MarketSummary, len(markets))
	copy(copied, markets)
	return &justlend.MarketList{Count: len(copied), Markets: copied}
}
