// Package metrics 风险计算服务的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "riskcalc"

// Metrics 指标集合
type Metrics struct {
	// 计算次数，按类型 (option/var/both) 和结果 (ok 或错误码)
	EvaluationsTotal *prometheus.CounterVec
	// 单次计算耗时
	EvaluationDuration prometheus.Histogram
	// 最近一次 VaR，按账簿
	LastVaR *prometheus.GaugeVec
	// 限额预警触发次数，按账簿
	LimitBreachesTotal *prometheus.CounterVec
	// 报告落库/投递失败次数，按下游 (mysql/kafka/nats)
	SinkErrorsTotal *prometheus.CounterVec

	// HTTP 请求计数与耗时
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New 创建并注册到 reg；reg 为 nil 时只创建不注册
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total risk evaluations",
		}, []string{"kind", "status"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Risk evaluation duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),
		LastVaR: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "var_1d",
			Help:      "Most recent 1-day historical VaR per book",
		}, []string{"book"}),
		LimitBreachesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limit_breaches_total",
			Help:      "Total VaR limit breaches",
		}, []string{"book"}),
		SinkErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failures persisting or publishing reports",
		}, []string{"sink"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.EvaluationsTotal,
			m.EvaluationDuration,
			m.LastVaR,
			m.LimitBreachesTotal,
			m.SinkErrorsTotal,
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
		)
	}
	return m
}
