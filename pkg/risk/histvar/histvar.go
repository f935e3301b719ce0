// 文件: pkg/risk/histvar/histvar.go
// 历史模拟法 1 日 VaR (两币种现金头寸)
//
// 思路:
//  1. 每个币种用相邻两天的汇率算出一组"如果明天像那天一样变动"的 PnL 情景
//  2. 两币种情景逐项相加，升序排序
//  3. 在排序结果的第 2、3 小的值之间做固定权重插值，得到 VaR

package histvar

import (
	"errors"
	"fmt"
	"cmp"
	"math"
	"slices"

	"max.com/riskcalc/pkg/risk/param"
)

// 分位插值常量: VaR = 0.4 * total[1] + 0.6 * total[2]
// 这是模型本身的定义，不要改成参数化的百分位函数
const (
	LowerIndex  = 1
	UpperIndex  = 2
	LowerWeight = 0.4
	UpperWeight = 0.6
)

// MinScenarios 插值所需的最少 PnL 情景数 (即每个币种至少 4 个观测值)
const MinScenarios = UpperIndex + 1

var (
	// ErrLengthMismatch 两个币种的行情序列长度不一致，PnL 无法逐项相加
	ErrLengthMismatch = errors.New("market rate series length mismatch")

	// ErrInsufficientHistory 情景数不足，取不到 total[2]
	ErrInsufficientHistory = errors.New("insufficient history for 1-day VaR")
)

// HistoricalVaR 两币种头寸的历史模拟 VaR
//
// 行情序列下标 0 为最近一天。所有派生值 (PnL、VaR) 每次调用都重新计算。
type HistoricalVaR struct {
	marketRate1 []float64 // 币种 1 每日汇率
	marketRate2 []float64 // 币种 2 每日汇率
	position1   float64   // 币种 1 持仓市值 S1
	position2   float64   // 币种 2 持仓市值 S2
}

// New 创建 VaR 模型
// rates1/rates2 必须是 []float64；position1/position2 为任意数值类型
func New(rates1, rates2, position1, position2 any) (*HistoricalVaR, error) {
	v := &HistoricalVaR{}
	if err := v.SetMarketRate1(rates1); err != nil {
		return nil, err
	}
	if err := v.SetMarketRate2(rates2); err != nil {
		return nil, err
	}
	if err := v.SetPosition1(position1); err != nil {
		return nil, err
	}
	if err := v.SetPosition2(position2); err != nil {
		return nil, err
	}
	return v, nil
}

// =============================================================================
// Setter / Getter
// =============================================================================

func (v *HistoricalVaR) SetMarketRate1(rates any) error {
	s, err := param.Series("market_rate_1", rates)
	if err != nil {
		return err
	}
	v.marketRate1 = s
	return nil
}

func (v *HistoricalVaR) SetMarketRate2(rates any) error {
	s, err := param.Series("market_rate_2", rates)
	if err != nil {
		return err
	}
	v.marketRate2 = s
	return nil
}

// SetPosition1 设置币种 1 持仓市值
func (v *HistoricalVaR) SetPosition1(x any) error {
	f, err := param.Number("total value of holdings in currency 1 (S1)", x)
	if err != nil {
		return err
	}
	v.position1 = f
	return nil
}

// SetPosition2 设置币种 2 持仓市值
func (v *HistoricalVaR) SetPosition2(x any) error {
	f, err := param.Number("total value of holdings in currency 2 (S2)", x)
	if err != nil {
		return err
	}
	v.position2 = f
	return nil
}

// MarketRate1 返回副本
func (v *HistoricalVaR) MarketRate1() []float64 { return append([]float64(nil), v.marketRate1...) }

// MarketRate2 返回副本
func (v *HistoricalVaR) MarketRate2() []float64 { return append([]float64(nil), v.marketRate2...) }

func (v *HistoricalVaR) Position1() float64 { return v.position1 }
func (v *HistoricalVaR) Position2() float64 { return v.position2 }

// =============================================================================
// 计算
// =============================================================================

// PnLVector 单币种 PnL 情景向量
//
//	pnl[i] = (exp(ln(rate[i] / rate[i+1])) - 1) * S,  i = 0..n-2
//
// exp(ln(x)) 数学上等于 x，这里保留原公式以保证与参照结果一致。
// 少于 2 个观测值时返回空向量。
func PnLVector(position float64, rates []float64) []float64 {
	if len(rates) < 2 {
		return []float64{}
	}
	out := make([]float64, len(rates)-1)
	for i := range out {
		out[i] = (math.Exp(math.Log(rates[i]/rates[i+1])) - 1) * position
	}
	return out
}

// TotalPnL 两币种 PnL 逐项相加后升序排序
func (v *HistoricalVaR) TotalPnL() ([]float64, error) {
	if len(v.marketRate1) != len(v.marketRate2) {
		return nil, fmt.Errorf("%w: market_rate_1 has %d observations, market_rate_2 has %d",
			ErrLengthMismatch, len(v.marketRate1), len(v.marketRate2))
	}

	pnl1 := PnLVector(v.position1, v.marketRate1)
	pnl2 := PnLVector(v.position2, v.marketRate2)

	total := make([]float64, len(pnl1))
	for i := range total {
		total[i] = pnl1[i] + pnl2[i]
	}
	slices.SortFunc(total, compareNaNLast)
	return total, nil
}

// compareNaNLast 升序，NaN 排在 +Inf 之后
func compareNaNLast(a, b float64) int {
	switch an, bn := math.IsNaN(a), math.IsNaN(b); {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return cmp.Compare(a, b)
}

// VaR1D 1 日 VaR = 0.4 * total[1] + 0.6 * total[2]
// 结果为 PnL 口径 (亏损为负数)
func (v *HistoricalVaR) VaR1D() (float64, error) {
	total, err := v.TotalPnL()
	if err != nil {
		return 0, err
	}
	if len(total) < MinScenarios {
		return 0, fmt.Errorf("%w: need at least %d scenarios (%d observations per currency), got %d",
			ErrInsufficientHistory, MinScenarios, MinScenarios+1, len(total))
	}
	return LowerWeight*total[LowerIndex] + UpperWeight*total[UpperIndex], nil
}

// String 诊断输出
func (v *HistoricalVaR) String() string {
	var1d, err := v.VaR1D()
	if err != nil {
		return fmt.Sprintf("S1: %v\nS2: %v\nVaR-1Day: error (%v)\n", v.position1, v.position2, err)
	}
	return fmt.Sprintf("S1: %v\nS2: %v\nVaR-1Day: %v\n", v.position1, v.position2, var1d)
}
