package alert

import (
	"context"
	"errors"
	"math"
)

// AlertType 定义预警的生命周期类型
type AlertType string

const (
	AlertOnce   AlertType = "once"   // 触发一次后自动删除
	AlertAlways AlertType = "always" // 每次越限都触发，带冷却时间
)

var (
	ErrRuleIDRequired = errors.New("rule_id is required")
	ErrBookRequired   = errors.New("book is required")
	ErrInvalidLimit   = errors.New("limit must be a finite number")
	ErrInvalidType    = errors.New("type must be once or always")
)

// LimitRule VaR 限额规则
//
// VaR 是 PnL 口径 (亏损为负)，所以 Limit 一般是负数:
// VaR1D <= Limit 即"最坏情况下的亏损超过了限额"，触发预警。
type LimitRule struct {
	RuleID string    `json:"rule_id"`
	Book   string    `json:"book"`  // 账簿
	Limit  float64   `json:"limit"` // 触发阈值
	Type   AlertType `json:"type"`

	LastTriggeredAt int64 `json:"last_triggered_at,omitempty"` // 秒
	CreatedAt       int64 `json:"created_at,omitempty"`
}

// Validate 基础校验，空 Type 补成 AlertOnce
func (r *LimitRule) Validate() error {
	if r.RuleID == "" {
		return ErrRuleIDRequired
	}
	if r.Book == "" {
		return ErrBookRequired
	}
	if math.IsNaN(r.Limit) || math.IsInf(r.Limit, 0) {
		return ErrInvalidLimit
	}
	switch r.Type {
	case "":
		r.Type = AlertOnce
	case AlertOnce, AlertAlways:
	default:
		return ErrInvalidType
	}
	return nil
}

// Breached VaR 是否越限
func (r *LimitRule) Breached(var1d float64) bool {
	return var1d <= r.Limit
}

// Alert 触发后对外广播的事件
type Alert struct {
	RuleID      string  `json:"rule_id"`
	Book        string  `json:"book"`
	Limit       float64 `json:"limit"`
	VaR1D       float64 `json:"var_1d"`
	ReportID    int64   `json:"report_id,string"`
	TriggeredAt int64   `json:"triggered_at"` // 毫秒
}

// LimitManager 限额规则管理
// 内存实现用于测试和单机模式，Redis 实现用于多实例部署
type LimitManager interface {
	// Subscribe 新增或覆盖一条规则
	Subscribe(ctx context.Context, rule LimitRule) error

	// Unsubscribe 删除规则，不存在不报错
	Unsubscribe(ctx context.Context, ruleID string) error

	// Triggered 返回被本次 VaR 触发的规则
	// once 类型的规则触发后即被删除；always 类型受冷却时间约束
	Triggered(ctx context.Context, book string, var1d float64) ([]LimitRule, error)
}
