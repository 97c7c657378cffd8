package services

import (
	"context"
	"fmt"
	"time"

	"mfanalytics/analytics"
	"mfanalytics/metrics"
	"mfanalytics/types"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type NavHistoryFetcher interface {
	SchemeHistory(ctx context.Context, code string) (types.SchemeHistory, error)
}

type FundServiceI interface {
	LoadSeries(ctx context.Context, code string) (analytics.NavSeries, error)
	LoadMany(ctx context.Context, codes []string) ([]analytics.NavSeries, []analytics.Exclusion)
}

type fundService struct {
	fetcher     NavHistoryFetcher
	concurrency int
	metrics     *metrics.Recorder
}

func NewFundService(fetcher NavHistoryFetcher, concurrency int, recorder *metrics.Recorder) FundServiceI {
	if concurrency < 1 {
		concurrency = 1
	}
	return &fundService{fetcher: fetcher, concurrency: concurrency, metrics: recorder}
}

// FetchError marks a failure to obtain data from the NAV provider.
type FetchError struct {
	Code string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch NAV history for %s: %v", e.Code, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (fs *fundService) LoadSeries(ctx context.Context, code string) (analytics.NavSeries, error) {
	span := sentry.StartSpan(ctx, "[DAO] LoadSeries")
	defer span.Finish()
	span.SetTag("scheme", code)

	history, err := fs.fetcher.SchemeHistory(span.Context(), code)
	if err != nil {
		span.Status = sentry.SpanStatusUnavailable
		fs.metrics.RecordProviderError("mfapi")
		return analytics.NavSeries{}, &FetchError{Code: code, Err: err}
	}

	rows := make([]analytics.RawNavRecord, len(history.Data))
	for i, d := range history.Data {
		rows[i] = analytics.RawNavRecord{Date: d.Date, NAV: d.Nav}
	}
	fund := analytics.FundIdentity{Code: code, Name: history.Meta.SchemeName}

	res, err := analytics.Normalize(fund, rows)
	if len(res.Skipped) > 0 {
		zap.L().Warn("Skipped malformed NAV rows",
			zap.String("scheme", code),
			zap.Int("skipped", len(res.Skipped)),
			zap.Error(res.Skipped[0]))
	}
	if err != nil {
		span.Status = sentry.SpanStatusFailedPrecondition
		return analytics.NavSeries{}, err
	}
	span.Status = sentry.SpanStatusOK
	return res.Series, nil
}

// LoadMany fetches every code concurrently. Funds that fail are returned as
// exclusions; the loaded series keep the order of codes.
func (fs *fundService) LoadMany(ctx context.Context, codes []string) ([]analytics.NavSeries, []analytics.Exclusion) {
	start := time.Now()
	defer fs.metrics.Since("load_many", start)

	results := make([]analytics.NavSeries, len(codes))
	errs := make([]error, len(codes))

	var g errgroup.Group
	g.SetLimit(fs.concurrency)
	for i, code := range codes {
		g.Go(func() error {
			results[i], errs[i] = fs.LoadSeries(ctx, code)
			return nil
		})
	}
	_ = g.Wait()

	loaded := make([]analytics.NavSeries, 0, len(codes))
	excluded := []analytics.Exclusion{}
	for i, code := range codes {
		if errs[i] == nil {
			loaded = append(loaded, results[i])
			continue
		}
		ex := analytics.Exclude(analytics.FundIdentity{Code: code}, errs[i])
		if _, ok := errs[i].(*FetchError); ok {
			ex.Reason = analytics.ReasonFetchFailed
		}
		fs.metrics.RecordExclusion(string(ex.Reason))
		zap.L().Info("Fund excluded", zap.String("scheme", code), zap.String("reason", string(ex.Reason)), zap.Error(errs[i]))
		excluded = append(excluded, ex)
	}
	return loaded, excluded
}
