// 文件: pkg/risk/param/param.go
// 字段校验: 期权定价器与历史 VaR 共用的参数检查
//
// 所有字段在赋值时 (构造 + setter) 都走同一套校验，
// 校验失败返回统一的 ErrInvalidParameter，调用方用 errors.Is 判断。

package param

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout 日期格式 YYYY-MM-DD
const DateLayout = "2006-01-02"

var (
	// ErrInvalidParameter 参数非法 (类型错误或格式错误)
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Error 携带出错字段的校验错误
type Error struct {
	Field  string // 字段名，如 "trade_date"
	Reason string // 原因描述
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is 让 errors.Is(err, ErrInvalidParameter) 成立
func (e *Error) Is(target error) bool {
	return target == ErrInvalidParameter
}

func invalid(field, format string, args ...any) error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Date 校验日期字段: 必须是字符串，且能按 YYYY-MM-DD 解析
func Date(field string, v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, invalid(field, "should be a string, got %T", v)
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, invalid(field, "should be formatted as YYYY-MM-DD (e.g. '2024-10-15'), got %q", s)
	}
	return d, nil
}

// Number 校验数值字段: 接受所有整数/浮点类型以及 json.Number
// 只做类型检查，不做正负号或范围检查
func Number(field string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, invalid(field, "must be an integer or float, got %q", n.String())
		}
		return f, nil
	}
	return 0, invalid(field, "must be an integer or float, got %T", v)
}

// Series 校验行情序列: 必须是 []float64 (真正的数值数组)
// []any 之类的通用列表一律拒绝。返回副本，调用方之后修改原切片不会影响已保存的值。
func Series(field string, v any) ([]float64, error) {
	s, ok := v.([]float64)
	if !ok {
		return nil, invalid(field, "should be a numeric array ([]float64), got %T", v)
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out, nil
}
