package justlend

// MarketSummary 描述市场列表中的单个借贷市场。
// mantissa 与逐块利率字段使用十进制字符串，避免 JSON 数字精度丢失。
type MarketSummary struct {
	Symbol               string  `json:"symbol"`
	Address              string  `json:"address"`
	SupplyAPY            float64 `json:"supply_apy"`
	BorrowAPY            float64 `json:"borrow_apy"`
	SupplyRatePerBlock   string  `json:"supply_rate_per_block"`
	BorrowRatePerBlock   string  `json:"borrow_rate_per_block"`
	ExchangeRateMantissa string  `json:"exchange_rate_mantissa"`
	TotalBorrowsMantissa string  `json:"total_borrows_mantissa"`
	CollateralFactor     float64 `json:"collateral_factor"`
}

// MarketList 是 Markets 操作的结果载体，Count 恒等于 Markets 的长度。
type MarketList struct {
	Count   int             `json:"count"`
	Markets []MarketSummary `json:"markets"`
}

// MarketDetail 在摘要之外补充 comptroller 的挂牌标记。
type MarketDetail struct {
	Symbol               string  `json:"symbol"`
	Address              string  `json:"address"`
	SupplyAPY            float64 `json:"supply_apy"`
	BorrowAPY            float64 `json:"borrow_apy"`
	SupplyRatePerBlock   string  `json:"supply_rate_per_block"`
	BorrowRatePerBlock   string  `json:"borrow_rate_per_block"`
	ExchangeRateMantissa string  `json:"exchange_rate_mantissa"`
	TotalBorrowsMantissa string  `json:"total_borrows_mantissa"`
	CollateralFactor     float64 `json:"collateral_factor"`
	Listed               bool    `json:"listed"`
}

// PositionEntry 描述用户在单个市场中的持仓快照。
type PositionEntry struct {
	Symbol                string `json:"symbol"`
	Address               string `json:"address"`
	TokenBalanceMantissa  string `json:"token_balance_mantissa"`
	BorrowBalanceMantissa string `json:"borrow_balance_mantissa"`
	ExchangeRateMantissa  string `json:"exchange_rate_mantissa"`
}

// UserPosition 汇总账户级别的流动性数据与非零持仓。
type UserPosition struct {
	Address           string          `json:"address"`
	LiquidityMantissa string          `json:"liquidity_mantissa"`
	ShortfallMantissa string          `json:"shortfall_mantissa"`
	Markets           []PositionEntry `json:"markets"`
}
