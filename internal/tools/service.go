package tools

import (
	"context"
	"strings"

	"Slate-Tron/internal/cache"
	xerrors "Slate-Tron/internal/errors"
	"Slate-Tron/internal/justlend"
	"Slate-Tron/internal/observability/metrics"
	"Slate-Tron/pkg/logger"
)

// 工具目录的封闭名字集合。
const (
	WalletCheckTronLink = "wallet_check_tronlink"
	WalletConnect       = "wallet_connect"
	WalletFetchBalance  = "wallet_fetch_balance"
	JustLendListMarkets = "justlend_list_markets"
	JustLendDetail      = "justlend_market_detail"
	JustLendPosition    = "justlend_user_position"
)

// MarketReader 抽象 JustLend 数据抓取操作，便于测试替换。
type MarketReader interface {
	Markets(ctx context.Context, limit int) (*justlend.MarketList, error)
	MarketDetail(ctx context.Context, symbol string) (*justlend.MarketDetail, error)
	UserPosition(ctx context.Context, address string) (*justlend.UserPosition, error)
}

// BuildCatalog 组装完整的工具目录：三个由前端执行的钱包工具，
// 三个由后端执行的 JustLend 数据工具。
func BuildCatalog(reader MarketReader, marketsCache cache.MarketsCache, defaultLimit int) *Catalog {
	if defaultLimit <= 0 {
		defaultLimit = 6
	}

	c := NewCatalog()
	c.Register(Tool{
		Name:        WalletCheckTronLink,
		Kind:        KindFrontend,
		Description: "检测浏览器中的 TronLink 扩展是否可用",
	})
	c.Register(Tool{
		Name:        WalletConnect,
		Kind:        KindFrontend,
		Description: "请求用户授权连接 TronLink 钱包",
	})
	c.Register(Tool{
		Name:        WalletFetchBalance,
		Kind:        KindFrontend,
		Description: "读取当前已连接钱包的 TRX 余额",
	})
	c.Register(Tool{
		Name:        JustLendListMarkets,
		Kind:        KindBackend,
		Description: "列出 JustLend 借贷市场及其存贷年化收益",
		ArgsHint:    `{"limit": 6}`,
		Handler:     listMarketsHandler(reader, marketsCache, defaultLimit),
	})
	c.Register(Tool{
		Name:        JustLendDetail,
		Kind:        KindBackend,
		Description: "按符号查询单个市场的利率与抵押参数",
		ArgsHint:    `{"symbol": "jUSDT"}`,
		Handler:     marketDetailHandler(reader),
	})
	c.Register(Tool{
		Name:        JustLendPosition,
		Kind:        KindBackend,
		Description: "查询指定账户在 JustLend 的存借仓位",
		ArgsHint:    `{"address": "T..."}`,
		Handler:     userPositionHandler(reader),
	})
	return c
}

func listMarketsHandler(reader MarketReader, marketsCache cache.MarketsCache, defaultLimit int) Handler {
	return func(ctx context.Context, args map[string]any) Result {
		limit := intArg(args, "limit")
		if limit <= 0 {
			limit = defaultLimit
		}

		if marketsCache != nil {
			if list, ok := marketsCache.Get(ctx, limit); ok {
				logger.Named("tools").Debug("市场列表缓存命中", "limit", limit)
				metrics.ObserveCacheLookup(true)
				return Ok(list)
			}
			metrics.ObserveCacheLookup(false)
		}

		list, err := reader.Markets(ctx, limit)
		if err != nil {
			return Fail(err)
		}
		if marketsCache != nil {
			marketsCache.Put(ctx, limit, list)
		}
		return Ok(list)
	}
}

func marketDetailHandler(reader MarketReader) Handler {
	return func(ctx context.Context, args map[string]any) Result {
		symbol := stringArg(args, "symbol")
		if symbol == "" {
			return Fail(xerrors.New(xerrors.CodeToolValidation, "justlend_market_detail 需要 symbol 参数"))
		}
		detail, err := reader.MarketDetail(ctx, symbol)
		if err != nil {
			return Fail(err)
		}
		return Ok(detail)
	}
}

func userPositionHandler(reader MarketReader) Handler {
	return func(ctx context.Context, args map[string]any) Result {
		address := stringArg(args, "address")
		if address == "" {
			return Fail(xerrors.New(xerrors.CodeToolValidation, "justlend_user_position 需要 address 参数"))
		}
		position, err := reader.UserPosition(ctx, address)
		if err != nil {
			return Fail(err)
		}
		return Ok(position)
	}
}

// intArg 宽容地解析整数参数，JSON 数字默认解码为 float64。
func intArg(args map[string]any, key string) int {
	if args == nil {
		return 0
	}
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
