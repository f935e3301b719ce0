// 文件: pkg/api/handler.go
// HTTP 接口
//
//	POST   /api/v1/risk/option      期权定价
//	POST   /api/v1/risk/var         历史 VaR
//	POST   /api/v1/risk/evaluate    两者任选
//	GET    /api/v1/risk/reports     账簿最近的报告 (?book=&limit=)
//	GET    /api/v1/risk/reports/:id 查询报告
//	POST   /api/v1/marketdata       写入行情序列
//	POST   /api/v1/limits           新增限额规则
//	DELETE /api/v1/limits/:id       删除限额规则
//	GET    /healthz
//	GET    /metrics

package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"max.com/riskcalc/pkg/alert"
	"max.com/riskcalc/pkg/logger"
	"max.com/riskcalc/pkg/marketdata"
	"max.com/riskcalc/pkg/metrics"
	"max.com/riskcalc/pkg/report"
	"max.com/riskcalc/pkg/risk"
	"max.com/riskcalc/pkg/risk/options"
	"max.com/riskcalc/pkg/service"
)

const maxListLimit = 500

// RiskHandler 负责处理风险计算相关的 HTTP 请求
type RiskHandler struct {
	svc      *service.RiskService
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// NewRiskHandler gatherer 为 nil 时用默认 registry
func NewRiskHandler(svc *service.RiskService, m *metrics.Metrics, gatherer prometheus.Gatherer) *RiskHandler {
	if m == nil {
		m = metrics.New(nil)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &RiskHandler{svc: svc, metrics: m, gatherer: gatherer, log: logger.Component("http")}
}

// NewRouter 创建 gin 引擎并注册路由
func NewRouter(h *RiskHandler) *gin.Engine {
	// 数值保留为 json.Number，由参数校验统一判定类型
	binding.EnableDecoderUseNumber = true

	r := gin.New()
	r.Use(gin.Recovery(), h.observe())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

// RegisterRoutes 注册业务路由
func (h *RiskHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/risk")
	{
		api.POST("/option", h.PriceOption)
		api.POST("/var", h.ComputeVaR)
		api.POST("/evaluate", h.Evaluate)
		api.GET("/reports", h.ListReports)
		api.GET("/reports/:id", h.GetReport)
	}
	router.POST("/marketdata", h.SaveSeries)
	limits := router.Group("/limits")
	{
		limits.POST("", h.AddLimit)
		limits.DELETE("/:id", h.RemoveLimit)
	}
}

// observe 请求计数与耗时
func (h *RiskHandler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		h.metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		h.metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// =============================================================================
// 风险计算
// =============================================================================

// PriceOption 期权定价
func (h *RiskHandler) PriceOption(c *gin.Context) {
	var terms options.Terms
	if !h.bind(c, &terms) {
		return
	}
	h.evaluate(c, risk.Request{Option: &terms})
}

// ComputeVaR 历史 VaR
func (h *RiskHandler) ComputeVaR(c *gin.Context) {
	var in risk.VaRInput
	if !h.bind(c, &in) {
		return
	}
	h.evaluate(c, risk.Request{VaR: &in})
}

// Evaluate 期权 + VaR
func (h *RiskHandler) Evaluate(c *gin.Context) {
	var req risk.Request
	if !h.bind(c, &req) {
		return
	}
	h.evaluate(c, req)
}

func (h *RiskHandler) evaluate(c *gin.Context, req risk.Request) {
	rep, err := h.svc.Evaluate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	// NaN/Inf 无法 JSON 编码，只返回提示
	if !rep.Finite() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"id":       strconv.FormatInt(rep.ID, 10),
			"error":    service.NewErrorBody(fmt.Errorf("report %d: %w", rep.ID, report.ErrNonFinite)),
			"warnings": rep.Warnings,
		})
		return
	}
	c.JSON(http.StatusOK, rep)
}

// GetReport 查询报告
func (h *RiskHandler) GetReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrorBody{Code: service.CodeInvalid, Message: "invalid report id"}})
		return
	}
	rep, err := h.svc.GetReport(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// ListReports 账簿最近的报告
func (h *RiskHandler) ListReports(c *gin.Context) {
	book := c.Query("book")
	if book == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrorBody{Code: service.CodeInvalid, Message: "book is required"}})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrorBody{Code: service.CodeInvalid, Message: "invalid limit"}})
		return
	}
	reps, err := h.svc.ListReports(c.Request.Context(), book, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": book, "reports": reps})
}

// =============================================================================
// 行情与限额
// =============================================================================

// SaveSeries 写入行情序列
func (h *RiskHandler) SaveSeries(c *gin.Context) {
	var s marketdata.Series
	if !h.bind(c, &s) {
		return
	}
	if s.Pair == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrorBody{Code: service.CodeInvalid, Message: "pair is required"}})
		return
	}
	if err := h.svc.SaveSeries(c.Request.Context(), &s); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pair": s.Pair, "observations": s.Len()})
}

// AddLimit 新增限额规则
func (h *RiskHandler) AddLimit(c *gin.Context) {
	var rule alert.LimitRule
	if !h.bind(c, &rule) {
		return
	}
	if err := h.svc.AddLimit(c.Request.Context(), rule); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule_id": rule.RuleID})
}

// RemoveLimit 删除限额规则
func (h *RiskHandler) RemoveLimit(c *gin.Context) {
	if err := h.svc.RemoveLimit(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// 辅助
// =============================================================================

func (h *RiskHandler) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.fail(c, fmt.Errorf("%w: %w", service.ErrMalformed, err))
		return false
	}
	return true
}

func (h *RiskHandler) fail(c *gin.Context, err error) {
	status, _ := service.Classify(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": service.NewErrorBody(err)})
}
