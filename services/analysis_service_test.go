package services

import (
	"context"
	"testing"
	"time"

	"mfanalytics/analytics"
	"mfanalytics/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var benchReturns = []float64{0.01, -0.005, 0.012, -0.008, 0.01, -0.004, 0.006, -0.002}

type analysisFixture struct {
	provider  *fakeProvider
	publisher *recordingPublisher
	store     ScreenStore
	service   AnalysisServiceI
}

func newAnalysisFixture(t *testing.T) analysisFixture {
	t.Helper()
	p := newFakeProvider()
	p.add(147666, "Benchmark Index Fund", benchReturns...)

	strong := make([]float64, len(benchReturns))
	weak := make([]float64, len(benchReturns))
	for i, r := range benchReturns {
		if r > 0 {
			strong[i] = 2 * r
		} else {
			strong[i] = 0.5 * r
		}
		weak[i] = -r
	}
	p.add(1, "Alpha Equity Fund", strong...)
	p.add(2, "Beta Equity Fund", weak...)
	p.add(3, "Gamma Equity Fund", 0.01)

	recorder := metrics.NewNop()
	universe := NewUniverseService(p, recorder)
	require.NoError(t, universe.Init(context.Background()))

	pub := &recordingPublisher{}
	store := NewMemoryScreenStore()
	svc := NewAnalysisService(NewFundService(p, 4, recorder), universe, pub, store, recorder, AnalysisSettings{
		RiskFreeRate:   analytics.DefaultRiskFreeRate,
		BenchmarkCode:  "147666",
		DefaultYears:   3,
		MaxScreenFunds: 10,
	})
	svc.(*analysisService).now = func() time.Time { return testNow }
	return analysisFixture{provider: p, publisher: pub, store: store, service: svc}
}

func TestSelectFunds_ByKeyword(t *testing.T) {
	f := newAnalysisFixture(t)

	res, err := f.service.SelectFunds(context.Background(), SelectRequest{
		Keyword:    "equity",
		Thresholds: analytics.DefaultThresholds(),
		Save:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, "147666", res.Benchmark.Code)
	assert.NotEmpty(t, res.ID)
	require.Len(t, res.Table.Rows, 2)
	assert.Equal(t, "1", res.Table.Rows[0].Fund.Code)
	require.NotNil(t, res.Table.Rows[0].Capture)
	assert.InDelta(t, 200.0, res.Table.Rows[0].Capture.UpCapturePct, 1e-6)
	assert.InDelta(t, 50.0, res.Table.Rows[0].Capture.DownCapturePct, 1e-6)

	require.Len(t, res.Table.Excluded, 1)
	assert.Equal(t, "3", res.Table.Excluded[0].Fund.Code)
	assert.Equal(t, analytics.ReasonInsufficientData, res.Table.Excluded[0].Reason)

	require.Len(t, res.Shortlist, 1)
	assert.Equal(t, "1", res.Shortlist[0].Fund.Code)

	saved, err := f.store.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, "equity", saved.Keyword)
	assert.Equal(t, []analytics.FundIdentity{{Code: "1", Name: "Alpha Equity Fund"}}, saved.Shortlist)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, []string{"1"}, f.publisher.events[0].Shortlisted)
	assert.Equal(t, 3, f.publisher.events[0].Evaluated)
}

func TestSelectFunds_Errors(t *testing.T) {
	f := newAnalysisFixture(t)

	_, err := f.service.SelectFunds(context.Background(), SelectRequest{})
	assert.ErrorIs(t, err, analytics.ErrInvalidRequest)

	_, err = f.service.SelectFunds(context.Background(), SelectRequest{Keyword: "no such fund"})
	assert.ErrorIs(t, err, analytics.ErrInvalidRequest)

	_, err = f.service.SelectFunds(context.Background(), SelectRequest{Codes: []string{"1"}, BenchmarkCode: "404"})
	assert.ErrorIs(t, err, ErrBenchmarkUnavailable)
	assert.Empty(t, f.publisher.events)
}

func TestSelectFunds_NothingPasses(t *testing.T) {
	f := newAnalysisFixture(t)
	th := analytics.DefaultThresholds()
	th.MinSharpe = 1e9

	res, err := f.service.SelectFunds(context.Background(), SelectRequest{Codes: []string{"1", "2"}, Thresholds: th})
	require.NoError(t, err)
	assert.NotNil(t, res.Shortlist)
	assert.Empty(t, res.Shortlist)
	assert.Len(t, res.Table.Rows, 2)
}

func TestRiskTable(t *testing.T) {
	f := newAnalysisFixture(t)
	rf := 0.04

	table, err := f.service.RiskTable(context.Background(), []string{"1", "2", "404"}, WindowSpec{Years: 1}, &rf)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Nil(t, table.Rows[0].Capture)
	require.Len(t, table.Excluded, 1)
	assert.Equal(t, analytics.ReasonFetchFailed, table.Excluded[0].Reason)

	_, err = f.service.RiskTable(context.Background(), nil, WindowSpec{}, nil)
	assert.ErrorIs(t, err, analytics.ErrInvalidRequest)
}

func TestRollingVolatility(t *testing.T) {
	f := newAnalysisFixture(t)

	report, err := f.service.RollingVolatility(context.Background(), "1", 3)
	require.NoError(t, err)
	// 9 NAV points give 8 returns and 6 full windows of 3.
	assert.Len(t, report.Points, 6)
	assert.Equal(t, 3, report.WindowDays)

	_, err = f.service.RollingVolatility(context.Background(), "1", 20)
	assert.ErrorIs(t, err, analytics.ErrInsufficientData)

	_, err = f.service.RollingVolatility(context.Background(), "1", 1)
	assert.ErrorIs(t, err, analytics.ErrInvalidRequest)
}

func TestHistoryAndComparisons(t *testing.T) {
	f := newAnalysisFixture(t)

	history, err := f.service.History(context.Background(), "1", WindowSpec{})
	require.NoError(t, err)
	require.Equal(t, 9, history.Len())
	assert.Equal(t, analytics.Day(testNow), history.Points[0].Date)

	cmp, err := f.service.CompareNAV(context.Background(), []string{"1", "3"}, WindowSpec{Start: "2024-06-27"})
	require.NoError(t, err)
	assert.Len(t, cmp.Rows, 2)
	assert.Len(t, cmp.Rows[0].NAV, 2)

	returns, err := f.service.CompareReturns(context.Background(), []string{"1", "404"}, 1)
	require.NoError(t, err)
	require.Len(t, returns.Funds, 1)
	assert.InDelta(t, returns.Funds[0].AbsoluteReturnPct, returns.Funds[0].AnnualisedReturnPct, 1e-9)
	require.Len(t, returns.Excluded, 1)
}

func TestWindowSpecResolve(t *testing.T) {
	w, err := WindowSpec{}.Resolve(testNow, 0)
	require.NoError(t, err)
	assert.True(t, w.IsZero())

	w, err = WindowSpec{}.Resolve(testNow, 3)
	require.NoError(t, err)
	assert.Equal(t, 2021, w.Start.Year())

	w, err = WindowSpec{Start: "2023-01-01", End: "2023-12-31"}.Resolve(testNow, 3)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), w.End)

	_, err = WindowSpec{Start: "2024-02-01", End: "2024-01-01"}.Resolve(testNow, 3)
	assert.ErrorIs(t, err, analytics.ErrInvalidRequest)

	_, err = WindowSpec{Start: "01/02/2024"}.Resolve(testNow, 3)
	assert.ErrorIs(t, err, analytics.ErrInvalidRequest)
}

func TestRescreenAll(t *testing.T) {
	f := newAnalysisFixture(t)
	res, err := f.service.SelectFunds(context.Background(), SelectRequest{
		Keyword:    "equity",
		Thresholds: analytics.DefaultThresholds(),
		Save:       true,
	})
	require.NoError(t, err)

	summary := RescreenAll(context.Background(), f.store, f.service)
	assert.Equal(t, RescreenSummary{Updated: 1}, summary)

	saved, err := f.store.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Shortlist, 1)
	assert.Len(t, f.publisher.events, 2)
	assert.Equal(t, res.ID, f.publisher.events[1].ScreenID)
}

func TestRescreenAll_CodesOnlyScreen(t *testing.T) {
	f := newAnalysisFixture(t)
	res, err := f.service.SelectFunds(context.Background(), SelectRequest{
		Codes:      []string{"1", "2"},
		Thresholds: analytics.DefaultThresholds(),
		Save:       true,
	})
	require.NoError(t, err)

	before, err := f.store.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Empty(t, before.Keyword)
	assert.Equal(t, []string{"1", "2"}, before.Codes)

	summary := RescreenAll(context.Background(), f.store, f.service)
	assert.Equal(t, RescreenSummary{Updated: 1}, summary)

	after, err := f.store.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Evaluated)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, []string{"1"}, f.publisher.events[1].Shortlisted)
}
