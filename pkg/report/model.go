// 文件: pkg/report/model.go
// 风险报告落库模型
//
// 金额/价格类字段用 decimal 存 DECIMAL 列，避免 float 入库后精度漂移。
// 期权和 VaR 两部分都是可选的，所以用 NullDecimal。

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"max.com/riskcalc/pkg/risk"
)

// ErrNonFinite 报告里有 NaN/Inf，DECIMAL 列无法表示
var ErrNonFinite = errors.New("report contains non-finite values")

// Kind 报告类型
type Kind string

const (
	KindOption Kind = "OPTION"
	KindVaR    Kind = "VAR"
	KindBoth   Kind = "OPTION_VAR"
)

// Record 风险报告
type Record struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	ReportID int64  `gorm:"column:report_id;uniqueIndex"` // 雪花ID
	Kind     Kind   `gorm:"column:kind;type:varchar(16);not null"`
	Book     string `gorm:"column:book;type:varchar(64);index"`
	Pair     string `gorm:"column:pair;type:varchar(32)"`

	// 期权
	TradeDate  string              `gorm:"column:trade_date;type:char(10)"`
	ExpiryDate string              `gorm:"column:expiry_date;type:char(10)"`
	Spot       decimal.NullDecimal `gorm:"column:spot;type:decimal(32,12)"`
	Strike     decimal.NullDecimal `gorm:"column:strike;type:decimal(32,12)"`
	Rate       decimal.NullDecimal `gorm:"column:rate;type:decimal(20,12)"`
	Volatility decimal.NullDecimal `gorm:"column:volatility;type:decimal(20,12)"`
	CallPrice  decimal.NullDecimal `gorm:"column:call_price;type:decimal(32,12)"`
	PutPrice   decimal.NullDecimal `gorm:"column:put_price;type:decimal(32,12)"`

	// VaR
	Position1    decimal.NullDecimal `gorm:"column:position_1;type:decimal(32,8)"`
	Position2    decimal.NullDecimal `gorm:"column:position_2;type:decimal(32,8)"`
	Observations int                 `gorm:"column:observations"`
	VaR1D        decimal.NullDecimal `gorm:"column:var_1d;type:decimal(32,8)"`

	Warnings string `gorm:"column:warnings;type:varchar(512)"`
	Payload  string `gorm:"column:payload;type:text"` // 完整报告 JSON

	CreatedAt int64 `gorm:"column:created_at;index"` // 毫秒时间戳
}

// TableName GORM 表名
func (Record) TableName() string {
	return "risk_reports"
}

// FromReport 引擎输出 → 落库模型
func FromReport(rep *risk.Report) (*Record, error) {
	if !rep.Finite() {
		return nil, fmt.Errorf("report %d: %w", rep.ID, ErrNonFinite)
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("marshal report %d: %w", rep.ID, err)
	}

	rec := &Record{
		ReportID:  rep.ID,
		Warnings:  strings.Join(rep.Warnings, "; "),
		Payload:   string(payload),
		CreatedAt: rep.CreatedAt.UnixMilli(),
	}

	switch {
	case rep.Option != nil && rep.VaR != nil:
		rec.Kind = KindBoth
	case rep.Option != nil:
		rec.Kind = KindOption
	default:
		rec.Kind = KindVaR
	}

	if o := rep.Option; o != nil {
		rec.TradeDate = o.TradeDate
		rec.ExpiryDate = o.ExpiryDate
		rec.Spot = dec(o.Spot)
		rec.Strike = dec(o.Strike)
		rec.Rate = dec(o.Rate)
		rec.Volatility = dec(o.Volatility)
		rec.CallPrice = dec(o.Call)
		rec.PutPrice = dec(o.Put)
	}
	if v := rep.VaR; v != nil {
		rec.Book = v.Book
		rec.Pair = v.Pair
		rec.Position1 = dec(v.Position1)
		rec.Position2 = dec(v.Position2)
		rec.Observations = v.Observations
		rec.VaR1D = dec(v.VaR1D)
	}
	return rec, nil
}

// Report 从 Payload 还原完整报告
func (r *Record) Report() (*risk.Report, error) {
	var rep risk.Report
	if err := json.Unmarshal([]byte(r.Payload), &rep); err != nil {
		return nil, fmt.Errorf("decode report %d: %w", r.ReportID, err)
	}
	return &rep, nil
}

// dec 调用方已保证是有限数 (decimal.NewFromFloat 遇到 NaN/Inf 会 panic)
func dec(f float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}
