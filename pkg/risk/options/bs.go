// 文件: pkg/risk/options/bs.go
// 欧式期权 Black-Scholes 定价器
//
// 字段赋值时校验，派生量 (T、F、d1、d2、价格) 每次调用按当前字段重新计算。

package options

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"max.com/riskcalc/pkg/risk/param"
)

// DaysPerYear 固定 365 天计息 (不是 365.25，也不是 ACT/360)
const DaysPerYear = 365.0

const secondsPerDay = 24 * 60 * 60

// BlackScholes 欧式期权 Black-Scholes 定价器（无分红）
//
// 字段只能通过 New / SetXxx 赋值，每次赋值都会重新校验；
// T、F、d1、d2、Call、Put 都是方法，每次调用都按当前字段重新计算，不做缓存。
//
// 实例不是并发安全的：同一个实例不要在多个 goroutine 里边改边算。
type BlackScholes struct {
	tradeDate  time.Time // 交易日
	expiryDate time.Time // 到期日

	s     float64 // 现货价格
	k     float64 // 执行价
	r     float64 // 无风险利率 (连续复利，小数)
	sigma float64 // 年化波动率 (小数)
}

// Terms 定价器的原始输入
// 字段类型是 any，方便直接承接 JSON/消息里解出来的值，再统一校验
type Terms struct {
	TradeDate  any `json:"trade_date"`
	ExpiryDate any `json:"expiry_date"`
	Spot       any `json:"spot"`
	Strike     any `json:"strike"`
	Rate       any `json:"rate"`
	Volatility any `json:"volatility"`
}

// New 创建定价器
// tradeDate/expiryDate: "YYYY-MM-DD" 字符串
// spot/strike/rate/sigma: 任意整数或浮点数
func New(tradeDate, expiryDate, spot, strike, rate, sigma any) (*BlackScholes, error) {
	return NewFromTerms(Terms{
		TradeDate:  tradeDate,
		ExpiryDate: expiryDate,
		Spot:       spot,
		Strike:     strike,
		Rate:       rate,
		Volatility: sigma,
	})
}

// NewFromTerms 按 Terms 创建定价器，任一字段不合法则返回 param.ErrInvalidParameter
func NewFromTerms(t Terms) (*BlackScholes, error) {
	b := &BlackScholes{}
	setters := []struct {
		set func(any) error
		v   any
	}{
		{b.SetTradeDate, t.TradeDate},
		{b.SetExpiryDate, t.ExpiryDate},
		{b.SetSpot, t.Spot},
		{b.SetStrike, t.Strike},
		{b.SetRate, t.Rate},
		{b.SetSigma, t.Volatility},
	}
	for _, f := range setters {
		if err := f.set(f.v); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// =============================================================================
// Setter: 校验失败时保持原值不变
// =============================================================================

// SetTradeDate 设置交易日，格式 YYYY-MM-DD
func (b *BlackScholes) SetTradeDate(v any) error {
	d, err := param.Date("trade_date", v)
	if err != nil {
		return err
	}
	b.tradeDate = d
	return nil
}

// SetExpiryDate 设置到期日，格式 YYYY-MM-DD
func (b *BlackScholes) SetExpiryDate(v any) error {
	d, err := param.Date("expiry_date", v)
	if err != nil {
		return err
	}
	b.expiryDate = d
	return nil
}

// SetSpot 设置现货价格 S
func (b *BlackScholes) SetSpot(v any) error {
	f, err := param.Number("spot price (S)", v)
	if err != nil {
		return err
	}
	b.s = f
	return nil
}

// SetStrike 设置执行价 K
func (b *BlackScholes) SetStrike(v any) error {
	f, err := param.Number("exercise price (K)", v)
	if err != nil {
		return err
	}
	b.k = f
	return nil
}

// SetRate 设置无风险利率 r
func (b *BlackScholes) SetRate(v any) error {
	f, err := param.Number("risk free rate (r)", v)
	if err != nil {
		return err
	}
	b.r = f
	return nil
}

// SetSigma 设置波动率 sigma，不检查正负
func (b *BlackScholes) SetSigma(v any) error {
	f, err := param.Number("sigma", v)
	if err != nil {
		return err
	}
	b.sigma = f
	return nil
}

// =============================================================================
// Getter
// =============================================================================

func (b *BlackScholes) TradeDate() time.Time  { return b.tradeDate }
func (b *BlackScholes) ExpiryDate() time.Time { return b.expiryDate }
func (b *BlackScholes) Spot() float64         { return b.s }
func (b *BlackScholes) Strike() float64       { return b.k }
func (b *BlackScholes) Rate() float64         { return b.r }
func (b *BlackScholes) Sigma() float64        { return b.sigma }

// Clone 复制一份独立的定价器
func (b *BlackScholes) Clone() *BlackScholes {
	c := *b
	return &c
}

// =============================================================================
// 定价
// =============================================================================

// T 剩余期限 (年) = 整天数 / 365
// 到期日早于或等于交易日时 T <= 0，不做拦截，后续 d1 会得到 NaN/Inf
func (b *BlackScholes) T() float64 {
	// 不经过 time.Duration: Sub 超过约 292 年会饱和
	days := (b.expiryDate.Unix() - b.tradeDate.Unix()) / secondsPerDay
	return float64(days) / DaysPerYear
}

// F 远期价格 = S * e^{rT}
func (b *BlackScholes) F() float64 {
	return b.s * math.Exp(b.r*b.T())
}

// D1 = [ln(F/K) + (sigma^2/2)T] / (sigma * sqrt(T))
func (b *BlackScholes) D1() float64 {
	t := b.T()
	return (math.Log(b.F()/b.k) + (b.sigma*b.sigma/2)*t) / (b.sigma * math.Sqrt(t))
}

// D2 = d1 - sigma * sqrt(T)
func (b *BlackScholes) D2() float64 {
	return b.D1() - b.sigma*math.Sqrt(b.T())
}

// Call 看涨期权价格 = e^{-rT} * (F*N(d1) - K*N(d2))
func (b *BlackScholes) Call() float64 {
	t := b.T()
	return math.Exp(-b.r*t) * (b.F()*normCDF(b.D1()) - b.k*normCDF(b.D2()))
}

// Put 看跌期权价格，由 Put-Call Parity 从 Call 推出:
// P = C - S + K*e^{-rT}
//
// 注意不要换成 K*e^{-rT}*N(-d2) - S*N(-d1)，两者数学上相等但浮点结果不同。
func (b *BlackScholes) Put() float64 {
	return b.Call() - b.s + b.k*math.Exp(-b.r*b.T())
}

// String 诊断输出，格式不属于定价契约
func (b *BlackScholes) String() string {
	var sb strings.Builder
	sb.WriteString("Option:\n")
	fmt.Fprintf(&sb, "trade_date: %s\n", b.tradeDate.Format(param.DateLayout))
	fmt.Fprintf(&sb, "expiry_date: %s\n", b.expiryDate.Format(param.DateLayout))
	fmt.Fprintf(&sb, "spot_price (S): %v\n", b.s)
	fmt.Fprintf(&sb, "strike_price (K): %v\n", b.k)
	fmt.Fprintf(&sb, "risk_free_rate (r): %v\n", b.r)
	fmt.Fprintf(&sb, "volatility (sigma): %v\n", b.sigma)
	fmt.Fprintf(&sb, "d1: %v\n", b.D1())
	fmt.Fprintf(&sb, "d2: %v\n", b.D2())
	fmt.Fprintf(&sb, "call_price (C): %v\n", b.Call())
	fmt.Fprintf(&sb, "put_price (P): %v", b.Put())
	return sb.String()
}

// normCDF 标准正态分布的 CDF（累计分布函数）
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normPDF 标准正态分布的 PDF（概率密度函数）
func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
