package risk

import (
	"errors"
	"fmt"
	"time"

	"max.com/riskcalc/pkg/risk/histvar"
	"max.com/riskcalc/pkg/risk/options"
	"max.com/riskcalc/pkg/risk/param"
)

var (
	// ErrEmptyRequest 请求里既没有期权也没有 VaR
	ErrEmptyRequest = errors.New("request must contain option or var")
)

// Engine 是风险引擎对象。
// 你可以把它理解成"一个计算器"：
// 输入 Request → 输出 Report。
//
// 引擎本身无状态，每次调用都新建定价器/VaR 模型，多个 goroutine 可以共用一个 Engine。
type Engine struct {
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Evaluate 核心风控入口
func (e *Engine) Evaluate(in Request) (Report, error) {
	// 1. 基础校验
	if err := validateRequest(in); err != nil {
		return Report{}, err
	}

	var (
		out      Report
		warnings []string
	)

	// 2. 期权定价
	if in.Option != nil {
		res, err := PriceOption(*in.Option, in.Scenarios...)
		if err != nil {
			return Report{}, fmt.Errorf("option: %w", err)
		}
		if res.T <= 0 {
			warnings = append(warnings, "option: expiry_date is not after trade_date")
		}
		out.Option = &res
	}

	// 3. 历史 VaR
	if in.VaR != nil {
		res, err := ComputeVaR(*in.VaR)
		if err != nil {
			return Report{}, fmt.Errorf("var: %w", err)
		}
		out.VaR = &res
	}

	out.ID = GenerateReportID()
	out.CreatedAt = e.now().UTC()
	if !out.Finite() {
		warnings = append(warnings, "result contains non-finite values")
	}
	out.Warnings = dedup(warnings)
	return out, nil
}

// PriceOption 单独做一次期权定价，shocks 非空时附带情景分析
func PriceOption(terms options.Terms, shocks ...Shock) (OptionResult, error) {
	b, err := options.NewFromTerms(terms)
	if err != nil {
		return OptionResult{}, err
	}
	res := OptionResult{
		TradeDate:  b.TradeDate().Format(param.DateLayout),
		ExpiryDate: b.ExpiryDate().Format(param.DateLayout),
		Spot:       b.Spot(),
		Strike:     b.Strike(),
		Rate:       b.Rate(),
		Volatility: b.Sigma(),
		T:          b.T(),
		Forward:    b.F(),
		D1:         b.D1(),
		D2:         b.D2(),
		Call:       b.Call(),
		Put:        b.Put(),
		Delta:      b.Delta(),
		PutDelta:   b.PutDelta(),
		Gamma:      b.Gamma(),
		Vega:       b.Vega(),
		Theta:      b.ThetaCall(),
	}
	for _, sh := range shocks {
		res.Scenarios = append(res.Scenarios, b.Scenario(sh.PriceChange, sh.VolChange))
	}
	return res, nil
}

// ComputeVaR 单独做一次历史 VaR 计算
func ComputeVaR(in VaRInput) (VaRResult, error) {
	// 注意：这里把 []float64 装进 any 传给校验，nil 切片也算合法的数值数组
	m, err := histvar.New(in.MarketRate1, in.MarketRate2, in.Position1, in.Position2)
	if err != nil {
		return VaRResult{}, err
	}

	total, err := m.TotalPnL()
	if err != nil {
		return VaRResult{}, err
	}
	var1d, err := m.VaR1D()
	if err != nil {
		return VaRResult{}, err
	}

	n := histvar.MinScenarios
	if len(total) < n {
		n = len(total)
	}
	return VaRResult{
		Book:         in.Book,
		Pair:         in.Pair,
		Position1:    m.Position1(),
		Position2:    m.Position2(),
		Observations: len(in.MarketRate1),
		Tail:         append([]float64(nil), total[:n]...),
		VaR1D:        var1d,
	}, nil
}

func validateRequest(in Request) error {
	if in.Option == nil && in.VaR == nil {
		return ErrEmptyRequest
	}
	return nil
}

// dedup 保持不变
func dedup(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, s := range ss {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
