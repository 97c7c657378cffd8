package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mfanalytics/analytics"
	"mfanalytics/metrics"
	"mfanalytics/types"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrBenchmarkUnavailable = errors.New("benchmark unavailable")

// WindowSpec is a user supplied analysis window: explicit dates or a
// trailing number of years.
type WindowSpec struct {
	Start string `json:"start,omitempty" bson:"start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	End   string `json:"end,omitempty" bson:"end,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Years int    `json:"years,omitempty" bson:"years,omitempty" validate:"omitempty,min=1,max=30"`
}

// Resolve turns the request window into a concrete one relative to now. With
// neither dates nor years set it falls back to defaultYears, or to the
// unbounded window when defaultYears is zero.
func (ws WindowSpec) Resolve(now time.Time, defaultYears int) (analytics.Window, error) {
	if ws.Start != "" || ws.End != "" {
		start, end := time.Time{}, analytics.Day(now)
		var err error
		if ws.Start != "" {
			if start, err = time.Parse(time.DateOnly, ws.Start); err != nil {
				return analytics.Window{}, fmt.Errorf("%w: start: %v", analytics.ErrInvalidRequest, err)
			}
		}
		if ws.End != "" {
			if end, err = time.Parse(time.DateOnly, ws.End); err != nil {
				return analytics.Window{}, fmt.Errorf("%w: end: %v", analytics.ErrInvalidRequest, err)
			}
		}
		return analytics.NewWindow(start, end)
	}
	if ws.Years > 0 {
		return analytics.LastYears(now, ws.Years)
	}
	if defaultYears > 0 {
		return analytics.LastYears(now, defaultYears)
	}
	return analytics.Window{}, nil
}

type AnalysisSettings struct {
	RiskFreeRate   float64
	BenchmarkCode  string
	DefaultYears   int
	MaxScreenFunds int
}

type SelectRequest struct {
	Keyword       string
	Codes         []string
	BenchmarkCode string
	Window        WindowSpec
	RiskFreeRate  *float64
	Thresholds    analytics.Thresholds
	Save          bool
	ScreenID      string
}

type SelectionResult struct {
	ID           string                  `json:"id"`
	Keyword      string                  `json:"keyword"`
	Benchmark    analytics.FundIdentity  `json:"benchmark"`
	RiskFreeRate float64                 `json:"riskFreeRate"`
	Thresholds   analytics.Thresholds    `json:"thresholds"`
	Table        analytics.Table         `json:"table"`
	Shortlist    []analytics.FundMetrics `json:"shortlist"`
}

type RollingVolatilityReport struct {
	Fund       analytics.FundIdentity  `json:"fund"`
	Window     analytics.Window        `json:"window"`
	WindowDays int                     `json:"windowDays"`
	Points     []analytics.ReturnPoint `json:"points"`
}

type NavComparisonResult struct {
	analytics.NavComparison
	Excluded []analytics.Exclusion `json:"excluded"`
}

type AnalysisServiceI interface {
	History(ctx context.Context, code string, spec WindowSpec) (analytics.NavSeries, error)
	CompareNAV(ctx context.Context, codes []string, spec WindowSpec) (NavComparisonResult, error)
	CompareReturns(ctx context.Context, codes []string, years int) (analytics.ReturnComparison, error)
	RiskTable(ctx context.Context, codes []string, spec WindowSpec, riskFreeRate *float64) (analytics.Table, error)
	RollingVolatility(ctx context.Context, code string, windowDays int) (RollingVolatilityReport, error)
	SelectFunds(ctx context.Context, req SelectRequest) (SelectionResult, error)
}

type analysisService struct {
	funds     FundServiceI
	universe  UniverseServiceI
	publisher EventPublisher
	store     ScreenStore
	metrics   *metrics.Recorder
	settings  AnalysisSettings
	now       func() time.Time
}

func NewAnalysisService(funds FundServiceI, universe UniverseServiceI, publisher EventPublisher, store ScreenStore, recorder *metrics.Recorder, settings AnalysisSettings) AnalysisServiceI {
	return &analysisService{
		funds:     funds,
		universe:  universe,
		publisher: publisher,
		store:     store,
		metrics:   recorder,
		settings:  settings,
		now:       time.Now,
	}
}

func (as *analysisService) riskFree(override *float64) float64 {
	if override != nil {
		return *override
	}
	return as.settings.RiskFreeRate
}

func (as *analysisService) History(ctx context.Context, code string, spec WindowSpec) (analytics.NavSeries, error) {
	w, err := spec.Resolve(as.now(), 0)
	if err != nil {
		return analytics.NavSeries{}, err
	}
	s, err := as.funds.LoadSeries(ctx, code)
	if err != nil {
		return analytics.NavSeries{}, err
	}
	return s.Restrict(w).Descending(), nil
}

func (as *analysisService) CompareNAV(ctx context.Context, codes []string, spec WindowSpec) (NavComparisonResult, error) {
	if len(codes) == 0 {
		return NavComparisonResult{}, fmt.Errorf("%w: no funds to compare", analytics.ErrInvalidRequest)
	}
	w, err := spec.Resolve(as.now(), as.settings.DefaultYears)
	if err != nil {
		return NavComparisonResult{}, err
	}
	series, excluded := as.funds.LoadMany(ctx, codes)
	return NavComparisonResult{NavComparison: analytics.AlignNAV(series, w), Excluded: excluded}, nil
}

func (as *analysisService) CompareReturns(ctx context.Context, codes []string, years int) (analytics.ReturnComparison, error) {
	if len(codes) == 0 {
		return analytics.ReturnComparison{}, fmt.Errorf("%w: no funds to compare", analytics.ErrInvalidRequest)
	}
	w, err := analytics.LastYears(as.now(), years)
	if err != nil {
		return analytics.ReturnComparison{}, err
	}
	series, excluded := as.funds.LoadMany(ctx, codes)
	if len(series) == 0 {
		return analytics.ReturnComparison{Window: w, Years: years, Funds: []analytics.FundReturns{}, Excluded: excluded}, nil
	}
	cmp, err := analytics.CompareReturns(series, w, years)
	if err != nil {
		return analytics.ReturnComparison{}, err
	}
	cmp.Excluded = append(excluded, cmp.Excluded...)
	return cmp, nil
}

func (as *analysisService) RiskTable(ctx context.Context, codes []string, spec WindowSpec, riskFreeRate *float64) (analytics.Table, error) {
	span := sentry.StartSpan(ctx, "[DAO] RiskTable")
	defer span.Finish()
	start := time.Now()
	defer as.metrics.Since("risk_table", start)

	if len(codes) == 0 {
		return analytics.Table{}, fmt.Errorf("%w: no funds requested", analytics.ErrInvalidRequest)
	}
	w, err := spec.Resolve(as.now(), as.settings.DefaultYears)
	if err != nil {
		return analytics.Table{}, err
	}

	series, excluded := as.funds.LoadMany(span.Context(), codes)
	if len(series) == 0 {
		return analytics.Table{Window: w, Rows: []analytics.FundMetrics{}, Excluded: excluded}, nil
	}
	table, err := analytics.Aggregate(analytics.AggregateRequest{
		Funds:        series,
		Window:       w,
		RiskFreeRate: as.riskFree(riskFreeRate),
	})
	if err != nil {
		return analytics.Table{}, err
	}
	as.recordExclusions(table.Excluded)
	table.Excluded = append(excluded, table.Excluded...)
	return table, nil
}

// RollingVolatility looks back five calendar days per trading day of the
// rolling window so that several windows fit in the sample.
func (as *analysisService) RollingVolatility(ctx context.Context, code string, windowDays int) (RollingVolatilityReport, error) {
	if windowDays < 2 {
		return RollingVolatilityReport{}, fmt.Errorf("%w: window must be at least 2 days", analytics.ErrInvalidRequest)
	}
	w, err := analytics.LastDays(as.now(), windowDays*5)
	if err != nil {
		return RollingVolatilityReport{}, err
	}
	s, err := as.funds.LoadSeries(ctx, code)
	if err != nil {
		return RollingVolatilityReport{}, err
	}
	returns, err := analytics.DailyReturns(s.Restrict(w))
	if err != nil {
		return RollingVolatilityReport{}, err
	}
	points, err := analytics.RollingVolatility(returns, windowDays)
	if err != nil {
		return RollingVolatilityReport{}, err
	}
	return RollingVolatilityReport{Fund: s.Fund, Window: w, WindowDays: windowDays, Points: points}, nil
}

// SelectFunds resolves the candidate funds, measures them against the
// benchmark over one window and keeps those clearing every threshold.
func (as *analysisService) SelectFunds(ctx context.Context, req SelectRequest) (SelectionResult, error) {
	span := sentry.StartSpan(ctx, "[DAO] SelectFunds")
	defer span.Finish()
	start := time.Now()
	defer as.metrics.Since("select_funds", start)

	codes, err := as.candidates(req)
	if err != nil {
		span.Status = sentry.SpanStatusInvalidArgument
		return SelectionResult{}, err
	}
	now := as.now()
	w, err := req.Window.Resolve(now, as.settings.DefaultYears)
	if err != nil {
		span.Status = sentry.SpanStatusInvalidArgument
		return SelectionResult{}, err
	}

	benchCode := req.BenchmarkCode
	if benchCode == "" {
		benchCode = as.settings.BenchmarkCode
	}
	bench, err := as.funds.LoadSeries(span.Context(), benchCode)
	if err != nil {
		span.Status = sentry.SpanStatusUnavailable
		return SelectionResult{}, fmt.Errorf("%w: %s: %v", ErrBenchmarkUnavailable, benchCode, err)
	}

	rf := as.riskFree(req.RiskFreeRate)
	series, excluded := as.funds.LoadMany(span.Context(), codes)
	table := analytics.Table{Window: w, Rows: []analytics.FundMetrics{}, Excluded: []analytics.Exclusion{}}
	if len(series) > 0 {
		table, err = analytics.Aggregate(analytics.AggregateRequest{
			Funds:        series,
			Benchmark:    &bench,
			Window:       w,
			RiskFreeRate: rf,
		})
		if err != nil {
			return SelectionResult{}, err
		}
		as.recordExclusions(table.Excluded)
	}
	table.Excluded = append(excluded, table.Excluded...)

	result := SelectionResult{
		ID:           req.ScreenID,
		Keyword:      req.Keyword,
		Benchmark:    bench.Fund,
		RiskFreeRate: rf,
		Thresholds:   req.Thresholds,
		Table:        table,
		Shortlist:    analytics.Screen(table.Rows, req.Thresholds),
	}
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	as.metrics.RecordShortlist(len(result.Shortlist))

	if req.Save {
		if err := as.store.Save(span.Context(), as.savedScreen(req, result, benchCode, now)); err != nil {
			sentry.CaptureException(err)
			zap.L().Error("Error saving screen", zap.String("id", result.ID), zap.Error(err))
		}
	}
	as.publish(span.Context(), req, result, len(codes), now)

	span.Status = sentry.SpanStatusOK
	return result, nil
}

func (as *analysisService) candidates(req SelectRequest) ([]string, error) {
	if len(req.Codes) > 0 {
		return req.Codes, nil
	}
	if req.Keyword == "" {
		return nil, fmt.Errorf("%w: keyword or codes required", analytics.ErrInvalidRequest)
	}
	matches, err := as.universe.Search(req.Keyword)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no schemes match %q", analytics.ErrInvalidRequest, req.Keyword)
	}
	if len(matches) > as.settings.MaxScreenFunds && as.settings.MaxScreenFunds > 0 {
		zap.L().Warn("Screen candidates truncated",
			zap.String("keyword", req.Keyword),
			zap.Int("matches", len(matches)),
			zap.Int("limit", as.settings.MaxScreenFunds))
		matches = matches[:as.settings.MaxScreenFunds]
	}
	codes := make([]string, len(matches))
	for i, m := range matches {
		codes[i] = m.Code
	}
	return codes, nil
}

func (as *analysisService) savedScreen(req SelectRequest, result SelectionResult, benchCode string, now time.Time) SavedScreen {
	shortlist := make([]analytics.FundIdentity, len(result.Shortlist))
	for i, m := range result.Shortlist {
		shortlist[i] = m.Fund
	}
	return SavedScreen{
		ID:            result.ID,
		Keyword:       req.Keyword,
		Codes:         req.Codes,
		BenchmarkCode: benchCode,
		Window:        req.Window,
		RiskFreeRate:  result.RiskFreeRate,
		Thresholds:    req.Thresholds,
		Shortlist:     shortlist,
		Excluded:      result.Table.Excluded,
		Evaluated:     len(result.Table.Rows) + len(result.Table.Excluded),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (as *analysisService) publish(ctx context.Context, req SelectRequest, result SelectionResult, evaluated int, now time.Time) {
	shortlisted := make([]string, len(result.Shortlist))
	for i, m := range result.Shortlist {
		shortlisted[i] = m.Fund.Code
	}
	event := types.ScreeningEvent{
		EventID:      uuid.New().String(),
		ScreenID:     result.ID,
		Keyword:      req.Keyword,
		Benchmark:    result.Benchmark.Code,
		WindowStart:  result.Table.Window.Start,
		WindowEnd:    result.Table.Window.End,
		Evaluated:    evaluated,
		Shortlisted:  shortlisted,
		Excluded:     len(result.Table.Excluded),
		CompletedAt:  now,
		RiskFreeRate: result.RiskFreeRate,
	}
	if err := as.publisher.SendMessage(ctx, event); err != nil {
		sentry.CaptureException(err)
		zap.L().Error("Error publishing screening event", zap.String("eventId", event.EventID), zap.Error(err))
	}
}

func (as *analysisService) recordExclusions(excluded []analytics.Exclusion) {
	for _, ex := range excluded {
		as.metrics.RecordExclusion(string(ex.Reason))
		zap.L().Info("Fund excluded", zap.String("scheme", ex.Fund.Code), zap.String("reason", string(ex.Reason)), zap.String("detail", ex.Detail))
	}
}
