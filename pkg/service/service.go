// 文件: pkg/service/service.go
// 风险计算服务: 串起行情仓库、引擎、限额预警、报告落库与事件投递
//
// 除引擎外的依赖都可以为 nil，对应环节直接跳过。

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"max.com/riskcalc/pkg/alert"
	"max.com/riskcalc/pkg/kafka"
	"max.com/riskcalc/pkg/logger"
	"max.com/riskcalc/pkg/marketdata"
	"max.com/riskcalc/pkg/metrics"
	"max.com/riskcalc/pkg/report"
	"max.com/riskcalc/pkg/risk"
)

// ErrNoSeries VaR 请求既没带序列，也无法从仓库按 pair 加载
var ErrNoSeries = errors.New("no market data series for var request")

// EventSender 报告事件投递 (kafka.Producer)
type EventSender interface {
	Send(msg kafka.Message) error
}

// AlertPublisher 预警广播 (nats.Publisher)
type AlertPublisher interface {
	Publish(subject string, data any) error
}

// Options 服务参数
type Options struct {
	ReportTopic  string // Kafka 报告 topic
	AlertSubject string // NATS 预警 subject
	DefaultPair  string // VaR 请求没带 pair 时使用
	SeriesLimit  int    // 从仓库读取的最近天数，0 表示全部
}

// Deps 外部依赖
type Deps struct {
	Series  marketdata.Repository
	Reports report.Repository
	Limits  alert.LimitManager
	Events  EventSender
	Alerts  AlertPublisher
	Metrics *metrics.Metrics
}

// RiskService 风险计算服务
type RiskService struct {
	engine *risk.Engine
	deps   Deps
	opts   Options
	log    *slog.Logger
}

func NewRiskService(engine *risk.Engine, deps Deps, opts Options) *RiskService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}
	return &RiskService{
		engine: engine,
		deps:   deps,
		opts:   opts,
		log:    logger.Component("service"),
	}
}

// =============================================================================
// 计算
// =============================================================================

// Evaluate 完整流程:
// 1. VaR 没带序列时从仓库加载
// 2. 引擎计算
// 3. 检查 VaR 限额，越限则广播
// 4. 落库 + 投递报告事件 (失败只记录，不影响返回)
func (s *RiskService) Evaluate(ctx context.Context, req risk.Request) (*risk.Report, error) {
	start := time.Now()
	kind := requestKind(req)

	rep, err := s.evaluate(ctx, req)
	s.deps.Metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		_, code := Classify(err)
		s.deps.Metrics.EvaluationsTotal.WithLabelValues(kind, code).Inc()
		return nil, err
	}
	s.deps.Metrics.EvaluationsTotal.WithLabelValues(kind, "ok").Inc()

	if rep.VaR != nil && rep.VaR.Book != "" && rep.Finite() {
		s.deps.Metrics.LastVaR.WithLabelValues(rep.VaR.Book).Set(rep.VaR.VaR1D)
		s.checkLimits(ctx, rep)
	}

	s.persist(ctx, rep)
	s.publish(rep)
	return rep, nil
}

func (s *RiskService) evaluate(ctx context.Context, req risk.Request) (*risk.Report, error) {
	if req.VaR != nil && !req.VaR.HasSeries() {
		in, err := s.resolveSeries(ctx, *req.VaR)
		if err != nil {
			return nil, err
		}
		req.VaR = &in
	}

	rep, err := s.engine.Evaluate(req)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// resolveSeries 按 pair 从仓库加载序列，返回填好序列的副本
func (s *RiskService) resolveSeries(ctx context.Context, in risk.VaRInput) (risk.VaRInput, error) {
	pair := in.Pair
	if pair == "" {
		pair = s.opts.DefaultPair
	}
	if pair == "" || s.deps.Series == nil {
		return in, ErrNoSeries
	}

	series, err := s.deps.Series.Get(ctx, pair, s.opts.SeriesLimit)
	if err != nil {
		return in, fmt.Errorf("var: load series %s: %w", pair, err)
	}
	in.Pair = pair
	in.MarketRate1 = series.Ccy1
	in.MarketRate2 = series.Ccy2
	return in, nil
}

func (s *RiskService) checkLimits(ctx context.Context, rep *risk.Report) {
	if s.deps.Limits == nil {
		return
	}
	book, var1d := rep.VaR.Book, rep.VaR.VaR1D

	triggered, err := s.deps.Limits.Triggered(ctx, book, var1d)
	if err != nil {
		s.log.ErrorContext(ctx, "check limits failed", "book", book, "error", err)
		return
	}
	for _, rule := range triggered {
		s.deps.Metrics.LimitBreachesTotal.WithLabelValues(book).Inc()
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("var limit %s breached: %.2f <= %.2f", rule.RuleID, var1d, rule.Limit))
		s.log.WarnContext(ctx, "var limit breached",
			"book", book, "rule_id", rule.RuleID, "limit", rule.Limit, "var_1d", var1d, "report_id", rep.ID)

		if s.deps.Alerts == nil || s.opts.AlertSubject == "" {
			continue
		}
		evt := alert.Alert{
			RuleID:      rule.RuleID,
			Book:        book,
			Limit:       rule.Limit,
			VaR1D:       var1d,
			ReportID:    rep.ID,
			TriggeredAt: time.Now().UnixMilli(),
		}
		if err := s.deps.Alerts.Publish(s.opts.AlertSubject, evt); err != nil {
			s.deps.Metrics.SinkErrorsTotal.WithLabelValues("nats").Inc()
			s.log.ErrorContext(ctx, "publish alert failed", "rule_id", rule.RuleID, "error", err)
		}
	}
}

func (s *RiskService) persist(ctx context.Context, rep *risk.Report) {
	if s.deps.Reports == nil {
		return
	}
	rec, err := report.FromReport(rep)
	if err != nil {
		// 非有限数的报告不落库
		s.log.WarnContext(ctx, "report not persisted", "report_id", rep.ID, "error", err)
		return
	}
	if err := s.deps.Reports.Save(ctx, rec); err != nil {
		s.deps.Metrics.SinkErrorsTotal.WithLabelValues("mysql").Inc()
		s.log.ErrorContext(ctx, "save report failed", "report_id", rep.ID, "error", err)
	}
}

func (s *RiskService) publish(rep *risk.Report) {
	if s.deps.Events == nil || s.opts.ReportTopic == "" || !rep.Finite() {
		return
	}
	if err := s.deps.Events.Send(report.NewMessage(s.opts.ReportTopic, rep)); err != nil {
		s.deps.Metrics.SinkErrorsTotal.WithLabelValues("kafka").Inc()
		s.log.Error("send report event failed", "report_id", rep.ID, "error", err)
	}
}

func requestKind(req risk.Request) string {
	switch {
	case req.Option != nil && req.VaR != nil:
		return "both"
	case req.Option != nil:
		return "option"
	case req.VaR != nil:
		return "var"
	}
	return "empty"
}

// =============================================================================
// 行情、报告、限额
// =============================================================================

// SaveSeries 写入行情序列
func (s *RiskService) SaveSeries(ctx context.Context, series *marketdata.Series) error {
	if s.deps.Series == nil {
		return ErrUnavailable
	}
	return s.deps.Series.Save(ctx, series)
}

// GetReport 按报告 ID 查询
func (s *RiskService) GetReport(ctx context.Context, reportID int64) (*risk.Report, error) {
	if s.deps.Reports == nil {
		return nil, ErrUnavailable
	}
	rec, err := s.deps.Reports.GetByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return rec.Report()
}

// ListReports 账簿最近的报告，按时间倒序
func (s *RiskService) ListReports(ctx context.Context, book string, limit int) ([]*risk.Report, error) {
	if s.deps.Reports == nil {
		return nil, ErrUnavailable
	}
	recs, err := s.deps.Reports.ListByBook(ctx, book, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*risk.Report, 0, len(recs))
	for _, rec := range recs {
		rep, err := rec.Report()
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

// AddLimit 新增/覆盖限额规则
func (s *RiskService) AddLimit(ctx context.Context, rule alert.LimitRule) error {
	if s.deps.Limits == nil {
		return ErrUnavailable
	}
	return s.deps.Limits.Subscribe(ctx, rule)
}

// RemoveLimit 删除限额规则
func (s *RiskService) RemoveLimit(ctx context.Context, ruleID string) error {
	if s.deps.Limits == nil {
		return ErrUnavailable
	}
	return s.deps.Limits.Unsubscribe(ctx, ruleID)
}
