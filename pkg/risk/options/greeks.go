package options

import (
	"math"
)

/*
Greeks 是衡量期权价格对不同市场因素敏感度的指标。对于欧式期权，我们常见的 Greeks 有：

Delta: 期权价格相对于标的资产价格变动的敏感度。

Gamma: Delta 对标的资产价格的敏感度。

Vega: 期权价格相对于波动率变动的敏感度 (波动率变动 1 = 100%)。

Theta: 期权价格相对于时间流逝的敏感度 (按年计)。

与定价一样，这里不做输入检查：T<=0 或 sigma=0 时结果是 NaN/Inf。
*/

// Delta 欧式看涨期权的 Delta = N(d1)
func (b *BlackScholes) Delta() float64 {
	return normCDF(b.D1())
}

// PutDelta 欧式看跌期权的 Delta = N(d1) - 1
func (b *BlackScholes) PutDelta() float64 {
	return normCDF(b.D1()) - 1
}

// Gamma 看涨/看跌相同 = φ(d1) / (S * sigma * sqrt(T))
func (b *BlackScholes) Gamma() float64 {
	return normPDF(b.D1()) / (b.s * b.sigma * math.Sqrt(b.T()))
}

// Vega 看涨/看跌相同 = S * sqrt(T) * φ(d1)
func (b *BlackScholes) Vega() float64 {
	return b.s * math.Sqrt(b.T()) * normPDF(b.D1())
}

// ThetaCall 欧式看涨期权的 Theta
func (b *BlackScholes) ThetaCall() float64 {
	t := b.T()
	return -b.s*normPDF(b.D1())*b.sigma/(2*math.Sqrt(t)) - b.r*b.k*math.Exp(-b.r*t)*normCDF(b.D2())
}

// ScenarioResult 情景分析结果
type ScenarioResult struct {
	Spot  float64 `json:"spot"`
	Sigma float64 `json:"sigma"`
	Call  float64 `json:"call"`
	Put   float64 `json:"put"`
}

// Scenario 模拟标的价格和波动率变化后的期权价格，不修改接收者
// priceChange: 价格变化比例，例如 0.05 表示上涨 5%，-0.05 表示下跌 5%
// volChange:   波动率变化比例
func (b *BlackScholes) Scenario(priceChange, volChange float64) ScenarioResult {
	c := b.Clone()
	c.s = b.s * (1 + priceChange)
	c.sigma = b.sigma * (1 + volChange)
	return ScenarioResult{
		Spot:  c.s,
		Sigma: c.sigma,
		Call:  c.Call(),
		Put:   c.Put(),
	}
}
