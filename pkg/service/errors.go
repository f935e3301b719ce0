package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"max.com/riskcalc/pkg/alert"
	"max.com/riskcalc/pkg/marketdata"
	"max.com/riskcalc/pkg/report"
	"max.com/riskcalc/pkg/risk"
	"max.com/riskcalc/pkg/risk/histvar"
	"max.com/riskcalc/pkg/risk/param"
)

var (
	// ErrUnavailable 对应的存储没有配置
	ErrUnavailable = errors.New("backing store not configured")

	// ErrMalformed 请求体不是合法 JSON
	ErrMalformed = errors.New("malformed request body")
)

// 错误码
const (
	CodeInvalid      = "invalid_parameter"
	CodePrecondition = "precondition_failed"
	CodeNonFinite    = "non_finite_result"
	CodeNotFound     = "not_found"
	CodeUnavailable  = "unavailable"
	CodeInternal     = "internal"
)

// Classify 错误 → HTTP 状态码 + 错误码，HTTP 与 NATS 应答共用
func Classify(err error) (int, string) {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.Is(err, param.ErrInvalidParameter),
		errors.Is(err, risk.ErrEmptyRequest),
		errors.Is(err, ErrMalformed),
		errors.Is(err, alert.ErrRuleIDRequired),
		errors.Is(err, alert.ErrBookRequired),
		errors.Is(err, alert.ErrInvalidLimit),
		errors.Is(err, alert.ErrInvalidType),
		errors.As(err, &typeErr),
		errors.As(err, &syntaxErr):
		return http.StatusBadRequest, CodeInvalid
	case errors.Is(err, histvar.ErrLengthMismatch),
		errors.Is(err, histvar.ErrInsufficientHistory),
		errors.Is(err, ErrNoSeries),
		errors.Is(err, marketdata.ErrSeriesNotFound):
		return http.StatusUnprocessableEntity, CodePrecondition
	case errors.Is(err, report.ErrNonFinite):
		return http.StatusUnprocessableEntity, CodeNonFinite
	case errors.Is(err, report.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, CodeUnavailable
	}
	return http.StatusInternalServerError, CodeInternal
}

// ErrorBody 对外的错误结构
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorBody 按错误分类生成错误结构
func NewErrorBody(err error) *ErrorBody {
	_, code := Classify(err)
	return &ErrorBody{Code: code, Message: err.Error()}
}
