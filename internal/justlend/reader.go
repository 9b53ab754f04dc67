package justlend

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	xerrors "Slate-Tron/internal/errors"
	"Slate-Tron/internal/retry"
	"Slate-Tron/internal/tron"
	"Slate-Tron/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ChainCaller 抽象只读合约调用，便于测试替换真实的 TRON 客户端。
type ChainCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Reader 封装 JustLend 协议的三个数据抓取操作。
// 所有远程调用经过 Retrier 退避重试，逐市场遍历经过 Pacer 节流。
type Reader struct {
	caller       ChainCaller
	unitroller   common.Address
	retrier      *retry.Retrier
	marketDelay  time.Duration
	defaultLimit int
	pacerSleep   func(ctx context.Context, d time.Duration) error
}

// ReaderOption 定义可选的 Reader 配置。
type ReaderOption func(*Reader)

// WithDefaultLimit 设置市场列表的默认条数。
func WithDefaultLimit(limit int) ReaderOption {
	return func(r *Reader) {
		if limit > 0 {
			r.defaultLimit = limit
		}
	}
}

// WithMarketDelay 设置逐市场抓取之间的固定间隔。
func WithMarketDelay(delay time.Duration) ReaderOption {
	return func(r *Reader) {
		r.marketDelay = delay
	}
}

// WithPacerSleep 替换节流等待实现，主要用于测试。
func WithPacerSleep(sleep func(ctx context.Context, d time.Duration) error) ReaderOption {
	return func(r *Reader) {
		r.pacerSleep = sleep
	}
}

// NewReader 创建 JustLend 数据读取器。
func NewReader(caller ChainCaller, unitroller common.Address, retrier *retry.Retrier, opts ...ReaderOption) *Reader {
	r := &Reader{
		caller:       caller,
		unitroller:   unitroller,
		retrier:      retrier,
		marketDelay:  time.Second,
		defaultLimit: 6,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.retrier == nil {
		r.retrier = retry.New(3, 500*time.Millisecond)
	}
	return r
}

// newPacer 为单次操作创建节流器，使每次遍历的首个市场不等待。
func (r *Reader) newPacer() *retry.Pacer {
	pacer := retry.NewPacer(r.marketDelay)
	if r.pacerSleep != nil {
		pacer.SetSleep(r.pacerSleep)
	}
	return pacer
}

// Markets 返回至多 limit 个市场的摘要。limit 非正时使用默认条数。
// 单个市场抓取失败只会跳过该市场，Count 恒等于成功条目数。
func (r *Reader) Markets(ctx context.Context, limit int) (*MarketList, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}

	addrs, err := r.allMarkets(ctx)
	if err != nil {
		return nil, err
	}
	if len(addrs) > limit {
		addrs = addrs[:limit]
	}

	log := logger.Named("justlend")
	pacer := r.newPacer()
	summaries := make([]MarketSummary, 0, len(addrs))
	for _, addr := range addrs {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
		summary, err := r.marketSummary(ctx, addr)
		if err != nil {
			log.Warn("跳过抓取失败的市场", "market", tron.EncodeAddress(addr), "error", err)
			continue
		}
		summaries = append(summaries, summary)
	}

	return &MarketList{Count: len(summaries), Markets: summaries}, nil
}

// MarketDetail 按符号（不区分大小写）查找市场并返回详情。
func (r *Reader) MarketDetail(ctx context.Context, symbol string) (*MarketDetail, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "市场符号不能为空")
	}

	addrs, err := r.allMarkets(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.Named("justlend")
	pacer := r.newPacer()
	for _, addr := range addrs {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
		marketSymbol, err := r.tokenSymbol(ctx, addr)
		if err != nil {
			log.Warn("跳过无法识别符号的市场", "market", tron.EncodeAddress(addr), "error", err)
			continue
		}
		if !strings.EqualFold(marketSymbol, symbol) {
			continue
		}
		return r.marketDetail(ctx, addr, marketSymbol)
	}

	return nil, xerrors.New(xerrors.CodeMarketNotFound, fmt.Sprintf("未找到市场: %s", symbol),
		xerrors.WithMetadata("symbol", symbol))
}

// UserPosition 返回账户的流动性数据与非零持仓列表。
func (r *Reader) UserPosition(ctx context.Context, address string) (*UserPosition, error) {
	account, err := tron.DecodeAddress(strings.TrimSpace(address))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "无效的 TRON 账户地址")
	}

	values, err := r.call(ctx, "comptroller.getAccountLiquidity", r.unitroller, comptrollerABI, "getAccountLiquidity", account)
	if err != nil {
		return nil, err
	}
	liqErr, liquidity, shortfall := toBig(values[0]), toBig(values[1]), toBig(values[2])
	if liqErr.Sign() != 0 {
		return nil, xerrors.New(xerrors.CodeTransientUpstream,
			fmt.Sprintf("comptroller 返回错误码 %s", liqErr.String()))
	}

	position := &UserPosition{
		Address:           tron.EncodeAddress(account),
		LiquidityMantissa: liquidity.String(),
		ShortfallMantissa: shortfall.String(),
		Markets:           []PositionEntry{},
	}

	addrs, err := r.allMarkets(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.Named("justlend")
	pacer := r.newPacer()
	for _, addr := range addrs {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
		entry, ok, err := r.positionEntry(ctx, addr, account)
		if err != nil {
			log.Warn("跳过持仓快照失败的市场", "market", tron.EncodeAddress(addr), "error", err)
			continue
		}
		if ok {
			position.Markets = append(position.Markets, entry)
		}
	}

	return position, nil
}

func (r *Reader) allMarkets(ctx context.Context) ([]common.Address, error) {
	values, err := r.call(ctx, "comptroller.getAllMarkets", r.unitroller, comptrollerABI, "getAllMarkets")
	if err != nil {
		return nil, err
	}
	addrs, ok := values[0].([]common.Address)
	if !ok {
		return nil, xerrors.New(xerrors.CodeTransientUpstream, "getAllMarkets 返回格式异常")
	}
	return addrs, nil
}

func (r *Reader) marketSummary(ctx context.Context, addr common.Address) (MarketSummary, error) {
	symbol, err := r.tokenSymbol(ctx, addr)
	if err != nil {
		return MarketSummary{}, err
	}
	summary, _, err := r.marketRecord(ctx, addr, symbol)
	return summary, err
}

// marketRecord 读取单个市场的完整数据：两个逐块利率、兑换率、总借款与
// 抵押率，每个读取独立经过重试。第二个返回值是 comptroller 的挂牌标记。
func (r *Reader) marketRecord(ctx context.Context, addr common.Address, symbol string) (MarketSummary, bool, error) {
	supplyRate, err := r.tokenRate(ctx, addr, "supplyRatePerBlock")
	if err != nil {
		return MarketSummary{}, false, err
	}
	borrowRate, err := r.tokenRate(ctx, addr, "borrowRatePerBlock")
	if err != nil {
		return MarketSummary{}, false, err
	}
	exchangeRate, err := r.tokenRate(ctx, addr, "exchangeRateStored")
	if err != nil {
		return MarketSummary{}, false, err
	}
	totalBorrows, err := r.tokenRate(ctx, addr, "totalBorrows")
	if err != nil {
		return MarketSummary{}, false, err
	}
	values, err := r.call(ctx, "comptroller.markets", r.unitroller, comptrollerABI, "markets", addr)
	if err != nil {
		return MarketSummary{}, false, err
	}
	listed, _ := values[0].(bool)
	collateral := toBig(values[1])

	return MarketSummary{
		Symbol:               symbol,
		Address:              tron.EncodeAddress(addr),
		SupplyAPY:            RateToAPY(supplyRate),
		BorrowAPY:            RateToAPY(borrowRate),
		SupplyRatePerBlock:   supplyRate.String(),
		BorrowRatePerBlock:   borrowRate.String(),
		ExchangeRateMantissa: exchangeRate.String(),
		TotalBorrowsMantissa: totalBorrows.String(),
		CollateralFactor:     CollateralFactorToRatio(collateral),
	}, listed, nil
}

func (r *Reader) marketDetail(ctx context.Context, addr common.Address, symbol string) (*MarketDetail, error) {
	summary, listed, err := r.marketRecord(ctx, addr, symbol)
	if err != nil {
		return nil, err
	}
	return &MarketDetail{
		Symbol:               summary.Symbol,
		Address:              summary.Address,
		SupplyAPY:            summary.SupplyAPY,
		BorrowAPY:            summary.BorrowAPY,
		SupplyRatePerBlock:   summary.SupplyRatePerBlock,
		BorrowRatePerBlock:   summary.BorrowRatePerBlock,
		ExchangeRateMantissa: summary.ExchangeRateMantissa,
		TotalBorrowsMantissa: summary.TotalBorrowsMantissa,
		CollateralFactor:     summary.CollateralFactor,
		Listed:               listed,
	}, nil
}

func (r *Reader) positionEntry(ctx context.Context, addr, account common.Address) (PositionEntry, bool, error) {
	values, err := r.call(ctx, "jtoken.getAccountSnapshot", addr, jTokenABI, "getAccountSnapshot", account)
	if err != nil {
		return PositionEntry{}, false, err
	}
	snapErr := toBig(values[0])
	if snapErr.Sign() != 0 {
		return PositionEntry{}, false, xerrors.New(xerrors.CodeTransientUpstream,
			fmt.Sprintf("getAccountSnapshot 返回错误码 %s", snapErr.String()))
	}
	tokenBalance, borrowBalance, exchangeRate := toBig(values[1]), toBig(values[2]), toBig(values[3])
	if tokenBalance.Sign() == 0 && borrowBalance.Sign() == 0 {
		return PositionEntry{}, false, nil
	}

	symbol, err := r.tokenSymbol(ctx, addr)
	if err != nil {
		return PositionEntry{}, false, err
	}
	return PositionEntry{
		Symbol:                symbol,
		Address:               tron.EncodeAddress(addr),
		TokenBalanceMantissa:  tokenBalance.String(),
		BorrowBalanceMantissa: borrowBalance.String(),
		ExchangeRateMantissa:  exchangeRate.String(),
	}, true, nil
}

func (r *Reader) tokenSymbol(ctx context.Context, addr common.Address) (string, error) {
	values, err := r.call(ctx, "jtoken.symbol", addr, jTokenABI, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := values[0].(string)
	if !ok {
		return "", xerrors.New(xerrors.CodeTransientUpstream, "symbol 返回格式异常")
	}
	return symbol, nil
}

func (r *Reader) tokenRate(ctx context.Context, addr common.Address, method string) (*big.Int, error) {
	values, err := r.call(ctx, "jtoken."+method, addr, jTokenABI, method)
	if err != nil {
		return nil, err
	}
	return toBig(values[0]), nil
}

// call 打包指定方法，带重试地执行 eth_call 并解包返回值。
func (r *Reader) call(ctx context.Context, label string, to common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码合约调用失败")
	}

	var raw []byte
	err = r.retrier.Do(ctx, label, func(ctx context.Context) error {
		var callErr error
		raw, callErr = r.caller.CallContract(ctx, to, data)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	values, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeTransientUpstream, err, "解码合约返回值失败")
	}
	if len(values) == 0 {
		return nil, xerrors.New(xerrors.CodeTransientUpstream, "合约返回值为空")
	}
	return values, nil
}

func toBig(value any) *big.Int {
	if b, ok := value.(*big.Int); ok && b != nil {
		return b
	}
	return new(big.Int)
}
