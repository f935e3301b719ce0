// 文件: pkg/marketdata/synthetic.go
// 模拟行情: 用几何布朗运动 (GBM) 生成两币种日频汇率
//
//	S_next = S * exp(-0.5*σ²*dt + σ*sqrt(dt)*Z),  Z ~ N(0,1),  dt = 1/365
//
// 无漂移。GBM 保证汇率永远为正，所以生成的序列一定能算 VaR。

package marketdata

import (
	"math"
	"math/rand"
	"time"
)

// SyntheticConfig 模拟参数
type SyntheticConfig struct {
	Pair   string
	Days   int     // 观测值个数
	Start1 float64 // 币种 1 最早一天的汇率
	Start2 float64 // 币种 2 最早一天的汇率
	Vol1   float64 // 币种 1 年化波动率
	Vol2   float64 // 币种 2 年化波动率
	Seed   int64   // 0 表示用当前时间
}

// DefaultSyntheticConfig 一年左右的日频数据，外汇典型波动率
func DefaultSyntheticConfig(pair string) SyntheticConfig {
	return SyntheticConfig{
		Pair:   pair,
		Days:   250,
		Start1: 1.10,
		Start2: 0.86,
		Vol1:   0.08,
		Vol2:   0.10,
	}
}

// Synthetic 生成模拟序列，下标 0 为最近一天
func Synthetic(cfg SyntheticConfig) *Series {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// 独立随机源，不和全局 rand 抢锁
	r := rand.New(rand.NewSource(seed))

	n := cfg.Days
	if n < 0 {
		n = 0
	}
	s := &Series{
		Pair: cfg.Pair,
		Ccy1: make([]float64, n),
		Ccy2: make([]float64, n),
	}

	const dt = 1.0 / 365
	p1, p2 := cfg.Start1, cfg.Start2
	// 从最早一天往最近一天走，倒序写入
	for i := n - 1; i >= 0; i-- {
		s.Ccy1[i] = p1
		s.Ccy2[i] = p2
		p1 *= step(r, cfg.Vol1, dt)
		p2 *= step(r, cfg.Vol2, dt)
	}
	return s
}

func step(r *rand.Rand, sigma, dt float64) float64 {
	z := r.NormFloat64()
	return math.Exp(-0.5*sigma*sigma*dt + sigma*math.Sqrt(dt)*z)
}
