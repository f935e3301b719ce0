// 文件: pkg/marketdata/series.go
// 两币种每日汇率序列
//
// 约定: 下标 0 为最近一天，越往后越早，与 VaR 模型的 PnL 公式一致。

package marketdata

import (
	"errors"
	"fmt"
)

// 数据源中的列名
const (
	ColumnCcy1 = "market_rate_ccy1"
	ColumnCcy2 = "market_rate_ccy2"
)

var (
	// ErrColumnMissing 表头里找不到需要的列
	ErrColumnMissing = errors.New("market data column missing")

	// ErrSeriesNotFound 仓库里没有这个 pair 的行情
	ErrSeriesNotFound = errors.New("market data series not found")

	// ErrBadValue 单元格不是数字
	ErrBadValue = errors.New("market data value is not a number")
)

// Series 两币种汇率序列
type Series struct {
	Pair string    `json:"pair,omitempty"`
	Ccy1 []float64 `json:"market_rate_ccy1"`
	Ccy2 []float64 `json:"market_rate_ccy2"`
}

// Len 观测值个数 (两列长度不一致时取较长的那列)
func (s *Series) Len() int {
	if len(s.Ccy1) > len(s.Ccy2) {
		return len(s.Ccy1)
	}
	return len(s.Ccy2)
}

// Head 截取最近 n 天；n<=0 或超过长度时返回全部
func (s *Series) Head(n int) *Series {
	out := &Series{Pair: s.Pair}
	out.Ccy1 = head(s.Ccy1, n)
	out.Ccy2 = head(s.Ccy2, n)
	return out
}

func head(v []float64, n int) []float64 {
	if n <= 0 || n > len(v) {
		n = len(v)
	}
	return append([]float64(nil), v[:n]...)
}

func (s *Series) String() string {
	return fmt.Sprintf("Series{pair=%s, ccy1=%d obs, ccy2=%d obs}", s.Pair, len(s.Ccy1), len(s.Ccy2))
}
