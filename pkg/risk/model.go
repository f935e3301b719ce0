package risk

import (
	"math"
	"time"

	"max.com/riskcalc/pkg/risk/options"
)

// Request 是"风险引擎"的统一输入。
// 两部分互相独立，可以只给其中一个：
// - Option：欧式期权 Black-Scholes 定价
// - VaR：两币种头寸的历史模拟 1 日 VaR
type Request struct {
	Option *options.Terms `json:"option,omitempty"`
	VaR    *VaRInput      `json:"var,omitempty"`

	// Scenarios：期权情景分析，只在带 Option 时生效
	Scenarios []Shock `json:"scenarios,omitempty"`
}

// Shock 情景冲击，均为相对变化比例 (0.05 = +5%)
type Shock struct {
	PriceChange float64 `json:"price_change"`
	VolChange   float64 `json:"vol_change"`
}

// VaRInput 历史 VaR 的输入
//
// 行情序列下标 0 为最近一天。
// 如果 MarketRate1/MarketRate2 为空且给了 Pair，由服务层从行情仓库按 Pair 加载后再交给引擎。
type VaRInput struct {
	// Book：账簿标识，用于 VaR 限额预警 (可选)
	Book string `json:"book,omitempty"`

	// Pair：行情序列标识，如 "EURUSD/GBPUSD" (可选)
	Pair string `json:"pair,omitempty"`

	// 对应数据源中的 market_rate_ccy1 / market_rate_ccy2 两列
	MarketRate1 []float64 `json:"market_rate_1"`
	MarketRate2 []float64 `json:"market_rate_2"`

	// 两个币种的持仓市值 S1、S2
	Position1 any `json:"position_1"`
	Position2 any `json:"position_2"`
}

// HasSeries 是否直接携带了行情序列
func (in *VaRInput) HasSeries() bool {
	return len(in.MarketRate1) > 0 || len(in.MarketRate2) > 0
}

// OptionResult 期权定价输出
type OptionResult struct {
	TradeDate  string  `json:"trade_date"`
	ExpiryDate string  `json:"expiry_date"`
	Spot       float64 `json:"spot"`
	Strike     float64 `json:"strike"`
	Rate       float64 `json:"rate"`
	Volatility float64 `json:"volatility"`

	// 派生量
	T       float64 `json:"t"`       // 剩余期限 (年)
	Forward float64 `json:"forward"` // 远期价格
	D1      float64 `json:"d1"`
	D2      float64 `json:"d2"`

	Call float64 `json:"call"`
	Put  float64 `json:"put"`

	// Greeks (Theta 为看涨)
	Delta    float64 `json:"delta"`
	PutDelta float64 `json:"put_delta"`
	Gamma    float64 `json:"gamma"`
	Vega     float64 `json:"vega"`
	Theta    float64 `json:"theta"`

	Scenarios []options.ScenarioResult `json:"scenarios,omitempty"`
}

// VaRResult 历史 VaR 输出
type VaRResult struct {
	Book      string  `json:"book,omitempty"`
	Pair      string  `json:"pair,omitempty"`
	Position1 float64 `json:"position_1"`
	Position2 float64 `json:"position_2"`

	// Observations：每个币种的观测值个数
	Observations int `json:"observations"`

	// Tail：排序后 PnL 的最差几项 (最多 3 项)，VaR 就是从这里插值出来的
	Tail []float64 `json:"tail"`

	// VaR1D：1 日 VaR，PnL 口径 (亏损为负)
	VaR1D float64 `json:"var_1d"`
}

// Report 是"风险引擎"的统一输出。
type Report struct {
	// ID：雪花 ID，JSON 里编码为字符串，超过 2^53 的值在 JS 客户端也不丢精度
	ID int64 `json:"id,string"`

	Option *OptionResult `json:"option,omitempty"`
	VaR    *VaRResult    `json:"var,omitempty"`

	// Warnings：提示信息 (比如结果不是有限数)
	Warnings []string `json:"warnings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Finite 报告里的所有数值是否都是有限数
// NaN/Inf 无法 JSON 编码，也无法写入 DECIMAL 列
func (r *Report) Finite() bool {
	if o := r.Option; o != nil {
		for _, f := range []float64{o.Spot, o.Strike, o.Rate, o.Volatility, o.T, o.Forward, o.D1, o.D2, o.Call, o.Put, o.Delta, o.PutDelta, o.Gamma, o.Vega, o.Theta} {
			if !finite(f) {
				return false
			}
		}
		for _, sc := range o.Scenarios {
			if !finite(sc.Spot) || !finite(sc.Sigma) || !finite(sc.Call) || !finite(sc.Put) {
				return false
			}
		}
	}
	if v := r.VaR; v != nil {
		if !finite(v.VaR1D) || !finite(v.Position1) || !finite(v.Position2) {
			return false
		}
		for _, f := range v.Tail {
			if !finite(f) {
				return false
			}
		}
	}
	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
