package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"max.com/riskcalc/pkg/alert"
	"max.com/riskcalc/pkg/kafka"
	"max.com/riskcalc/pkg/marketdata"
	"max.com/riskcalc/pkg/metrics"
	"max.com/riskcalc/pkg/report"
	"max.com/riskcalc/pkg/risk"
	"max.com/riskcalc/pkg/risk/histvar"
	"max.com/riskcalc/pkg/risk/options"
	"max.com/riskcalc/pkg/risk/param"
)

// =============================================================================
// fakes
// =============================================================================

type memReports struct {
	mu   sync.Mutex
	recs map[int64]*report.Record
	err  error
}

func newMemReports() *memReports { return &memReports{recs: make(map[int64]*report.Record)} }

func (r *memReports) Save(_ context.Context, rec *report.Record) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.ReportID] = rec
	return nil
}

func (r *memReports) GetByReportID(_ context.Context, id int64) (*report.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return nil, report.ErrNotFound
	}
	return rec, nil
}

func (r *memReports) ListByBook(context.Context, string, int) ([]*report.Record, error) {
	return nil, nil
}

func (r *memReports) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

type fakeEvents struct {
	msgs []kafka.Message
}

func (f *fakeEvents) Send(m kafka.Message) error {
	f.msgs = append(f.msgs, m)
	return nil
}

type published struct {
	subject string
	data    any
}

type fakeAlerts struct {
	got []published
}

func (f *fakeAlerts) Publish(subject string, data any) error {
	f.got = append(f.got, published{subject, data})
	return nil
}

// =============================================================================
// fixtures
// =============================================================================

const pair = "EURUSD/GBPUSD"

var (
	rates1 = []float64{1.1050, 1.1012, 1.0987, 1.1031, 1.0944, 1.0990}
	rates2 = []float64{0.8571, 0.8602, 0.8590, 0.8555, 0.8611, 0.8589}
)

type fixture struct {
	svc     *RiskService
	reports *memReports
	events  *fakeEvents
	alerts  *fakeAlerts
	limits  *alert.MemoryLimitManager
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	series := marketdata.NewMemoryRepository()
	require.NoError(t, series.Save(context.Background(), &marketdata.Series{Pair: pair, Ccy1: rates1, Ccy2: rates2}))

	f := &fixture{
		reports: newMemReports(),
		events:  &fakeEvents{},
		alerts:  &fakeAlerts{},
		limits:  alert.NewMemoryLimitManager(time.Minute),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.svc = NewRiskService(risk.NewEngine(), Deps{
		Series:  series,
		Reports: f.reports,
		Limits:  f.limits,
		Events:  f.events,
		Alerts:  f.alerts,
		Metrics: f.metrics,
	}, Options{
		ReportTopic:  "risk.reports",
		AlertSubject: "risk.alerts",
	})
	return f
}

func optionTerms() *options.Terms {
	return &options.Terms{
		TradeDate: "2022-11-23", ExpiryDate: "2023-05-10",
		Spot: 19, Strike: 17, Rate: 0.005, Volatility: 0.3,
	}
}

func expectedVaR(t *testing.T) float64 {
	m, err := histvar.New(rates1, rates2, 153084.81, 95891.51)
	require.NoError(t, err)
	v, err := m.VaR1D()
	require.NoError(t, err)
	return v
}

// =============================================================================
// tests
// =============================================================================

func TestEvaluate_InlineSeries(t *testing.T) {
	f := newFixture(t)

	rep, err := f.svc.Evaluate(context.Background(), risk.Request{
		Option: optionTerms(),
		VaR: &risk.VaRInput{
			Book: "fx", MarketRate1: rates1, MarketRate2: rates2,
			Position1: 153084.81, Position2: 95891.51,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, expectedVaR(t), rep.VaR.VaR1D)
	assert.NotNil(t, rep.Option)

	// 落库 + 投递
	assert.Equal(t, 1, f.reports.len())
	require.Len(t, f.events.msgs, 1)
	assert.Equal(t, "risk.reports", f.events.msgs[0].Topic())
	assert.Equal(t, "fx", f.events.msgs[0].Key())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EvaluationsTotal.WithLabelValues("both", "ok")))
	assert.Equal(t, rep.VaR.VaR1D, testutil.ToFloat64(f.metrics.LastVaR.WithLabelValues("fx")))
}

func TestEvaluate_SeriesFromRepository(t *testing.T) {
	f := newFixture(t)
	in := &risk.VaRInput{Pair: pair, Position1: 153084.81, Position2: 95891.51}

	rep, err := f.svc.Evaluate(context.Background(), risk.Request{VaR: in})
	require.NoError(t, err)
	assert.Equal(t, expectedVaR(t), rep.VaR.VaR1D)
	assert.Equal(t, pair, rep.VaR.Pair)

	// 调用方的请求不被修改
	assert.Nil(t, in.MarketRate1)
}

func TestEvaluate_DefaultPairAndLimit(t *testing.T) {
	f := newFixture(t)
	f.svc.opts.DefaultPair = pair
	f.svc.opts.SeriesLimit = 4

	rep, err := f.svc.Evaluate(context.Background(), risk.Request{VaR: &risk.VaRInput{Position1: 1, Position2: 1}})
	require.NoError(t, err)
	assert.Equal(t, 4, rep.VaR.Observations)
}

func TestEvaluate_NoSeries(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Evaluate(context.Background(), risk.Request{VaR: &risk.VaRInput{Position1: 1, Position2: 1}})
	assert.ErrorIs(t, err, ErrNoSeries)

	_, err = f.svc.Evaluate(context.Background(), risk.Request{VaR: &risk.VaRInput{Pair: "NONE", Position1: 1, Position2: 1}})
	assert.ErrorIs(t, err, marketdata.ErrSeriesNotFound)

	assert.Equal(t, 0, f.reports.len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EvaluationsTotal.WithLabelValues("var", CodePrecondition)))
}

func TestEvaluate_LimitBreach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var1d := expectedVaR(t)
	require.NoError(t, f.svc.AddLimit(ctx, alert.LimitRule{RuleID: "soft", Book: "fx", Limit: var1d + 1}))
	require.NoError(t, f.svc.AddLimit(ctx, alert.LimitRule{RuleID: "hard", Book: "fx", Limit: var1d - 1}))

	rep, err := f.svc.Evaluate(ctx, risk.Request{VaR: &risk.VaRInput{
		Book: "fx", Pair: pair, Position1: 153084.81, Position2: 95891.51,
	}})
	require.NoError(t, err)

	require.Len(t, f.alerts.got, 1)
	assert.Equal(t, "risk.alerts", f.alerts.got[0].subject)
	evt := f.alerts.got[0].data.(alert.Alert)
	assert.Equal(t, "soft", evt.RuleID)
	assert.Equal(t, rep.ID, evt.ReportID)
	assert.Len(t, rep.Warnings, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LimitBreachesTotal.WithLabelValues("fx")))
}

func TestEvaluate_NonFiniteNotPersisted(t *testing.T) {
	f := newFixture(t)
	terms := optionTerms()
	terms.ExpiryDate = terms.TradeDate

	rep, err := f.svc.Evaluate(context.Background(), risk.Request{Option: terms})
	require.NoError(t, err)
	assert.False(t, rep.Finite())
	assert.Equal(t, 0, f.reports.len())
	assert.Empty(t, f.events.msgs)
}

func TestEvaluate_SinkFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.reports.err = errors.New("db down")

	_, err := f.svc.Evaluate(context.Background(), risk.Request{Option: optionTerms()})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SinkErrorsTotal.WithLabelValues("mysql")))
}

func TestGetReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.svc.Evaluate(ctx, risk.Request{Option: optionTerms()})
	require.NoError(t, err)

	got, err := f.svc.GetReport(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.Option.Call, got.Option.Call)

	_, err = f.svc.GetReport(ctx, 1)
	assert.ErrorIs(t, err, report.ErrNotFound)
}

func TestUnavailable(t *testing.T) {
	svc := NewRiskService(risk.NewEngine(), Deps{}, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, svc.SaveSeries(ctx, &marketdata.Series{Pair: "x"}), ErrUnavailable)
	_, err := svc.GetReport(ctx, 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = svc.ListReports(ctx, "fx-desk", 10)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, svc.AddLimit(ctx, alert.LimitRule{}), ErrUnavailable)
	assert.ErrorIs(t, svc.RemoveLimit(ctx, "x"), ErrUnavailable)

	// 没有任何下游也能算
	_, err = svc.Evaluate(ctx, risk.Request{Option: optionTerms()})
	assert.NoError(t, err)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&param.Error{Field: "sigma", Reason: "x"}, http.StatusBadRequest, CodeInvalid},
		{risk.ErrEmptyRequest, http.StatusBadRequest, CodeInvalid},
		{ErrMalformed, http.StatusBadRequest, CodeInvalid},
		{alert.ErrInvalidType, http.StatusBadRequest, CodeInvalid},
		{histvar.ErrLengthMismatch, http.StatusUnprocessableEntity, CodePrecondition},
		{histvar.ErrInsufficientHistory, http.StatusUnprocessableEntity, CodePrecondition},
		{ErrNoSeries, http.StatusUnprocessableEntity, CodePrecondition},
		{report.ErrNonFinite, http.StatusUnprocessableEntity, CodeNonFinite},
		{report.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{ErrUnavailable, http.StatusServiceUnavailable, CodeUnavailable},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, c := range cases {
		status, code := Classify(c.err)
		assert.Equal(t, c.status, status, c.err.Error())
		assert.Equal(t, c.code, code, c.err.Error())
	}
}

// =============================================================================
// 消息入口
// =============================================================================

func TestHandleNATS(t *testing.T) {
	f := newFixture(t)
	body := `{"option":{"trade_date":"2022-11-23","expiry_date":"2023-05-10","spot":19,"strike":17,"rate":0.005,"volatility":0.3}}`

	out, err := f.svc.HandleNATS(context.Background(), "risk.evaluate", []byte(body))
	require.NoError(t, err)

	var reply Reply
	require.NoError(t, json.Unmarshal(out, &reply))
	require.Nil(t, reply.Error)
	require.NotNil(t, reply.Report)
	assert.InDelta(t, 2.697, reply.Report.Option.Call, 1e-3)
}

func TestHandleNATS_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]string{
		`{`: CodeInvalid,
		`{"option":{"trade_date":"2022-11-23","expiry_date":"2023-05-10","spot":"19","strike":17,"rate":0.005,"volatility":0.3}}`: CodeInvalid,
		`{"var":{"market_rate_1":["a"],"position_1":1,"position_2":1}}`:                                                           CodeInvalid,
		`{"var":{"market_rate_1":[1,2,3],"market_rate_2":[1,2],"position_1":1,"position_2":1}}`:                                  CodePrecondition,
		`{"option":{"trade_date":"2022-11-23","expiry_date":"2022-11-23","spot":19,"strike":17,"rate":0.005,"volatility":0.3}}`: CodeNonFinite,
		`{}`: CodeInvalid,
	}
	for body, code := range cases {
		out, err := f.svc.HandleNATS(ctx, "risk.evaluate", []byte(body))
		assert.Error(t, err, body)

		var reply Reply
		require.NoError(t, json.Unmarshal(out, &reply), body)
		require.NotNil(t, reply.Error, body)
		assert.Equal(t, code, reply.Error.Code, body)
		assert.Nil(t, reply.Report, body)
	}
}

func TestHandleKafka(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body := []byte(`{"var":{"book":"fx","pair":"EURUSD/GBPUSD","position_1":153084.81,"position_2":95891.51}}`)
	require.NoError(t, f.svc.HandleKafka(ctx, kafka.Record{Topic: "risk.requests", Offset: 7, Value: body}))
	require.Len(t, f.events.msgs, 1)

	err := f.svc.HandleKafka(ctx, kafka.Record{Offset: 8, Value: []byte("not json")})
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "offset 8")
}
