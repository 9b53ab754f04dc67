package justlend

import (
	"math"
	"math/big"
)

// blocksPerYear 是 JustLend 利率模型假定的年化区块数。
const blocksPerYear = 7_300_000

// mantissaScale 是 Compound 系合约使用的 1e18 定点基数。
var mantissaScale = new(big.Float).SetFloat64(1e18)

// RateToAPY 将逐块利率 mantissa 换算为年化百分比，保留两位小数。
// 公式: ((1 + rate/1e18)^blocksPerYear - 1) * 100。
func RateToAPY(ratePerBlock *big.Int) float64 {
	if ratePerBlock == nil || ratePerBlock.Sign() <= 0 {
		return 0
	}
	raw, _ := new(big.Float).SetInt(ratePerBlock).Float64()
	apy := (math.Pow(1+raw/1e18, blocksPerYear) - 1) * 100
	if math.IsInf(apy, 0) || math.IsNaN(apy) {
		return 0
	}
	return math.Round(apy*100) / 100
}

// CollateralFactorToRatio 将抵押率 mantissa 转换为 [0,1] 区间的比例。
func CollateralFactorToRatio(mantissa *big.Int) float64 {
	if mantissa == nil || mantissa.Sign() <= 0 {
		return 0
	}
	ratio, _ := new(big.Float).Quo(new(big.Float).SetInt(mantissa), mantissaScale).Float64()
	return ratio
}
