package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"mfanalytics/analytics"
	"mfanalytics/metrics"
	"mfanalytics/types"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

var ErrHoldingsUnavailable = errors.New("holdings provider not configured")

type HoldingsProvider interface {
	SearchFunds(ctx context.Context, term string) ([]types.HoldingsFund, error)
	Holdings(ctx context.Context, fundID string) (types.HoldingsResponse, error)
}

type HoldingsReport struct {
	Fund      string                    `json:"fund"`
	Breakdown analytics.Breakdown       `json:"breakdown"`
	Holdings  []analytics.HoldingRecord `json:"holdings"`
	Skipped   []*analytics.RecordError  `json:"skipped,omitempty"`
}

type OverlapReport struct {
	FundA   string                  `json:"fundA"`
	FundB   string                  `json:"fundB"`
	Overlap analytics.OverlapResult `json:"overlap"`
}

// Upload is a named file handed over by the HTTP layer.
type Upload struct {
	Name   string
	Reader io.Reader
}

type HoldingsServiceI interface {
	Search(ctx context.Context, term string) ([]types.HoldingsFund, error)
	Breakdown(ctx context.Context, fundID string) (HoldingsReport, error)
	Overlap(ctx context.Context, fundA, fundB string) (OverlapReport, error)
	BreakdownFromFile(ctx context.Context, file Upload) (HoldingsReport, error)
	OverlapFromFiles(ctx context.Context, fileA, fileB Upload) (OverlapReport, error)
}

type holdingsService struct {
	provider HoldingsProvider
	metrics  *metrics.Recorder
}

// NewHoldingsService accepts a nil provider; only the file based operations
// are available then.
func NewHoldingsService(provider HoldingsProvider, recorder *metrics.Recorder) HoldingsServiceI {
	return &holdingsService{provider: provider, metrics: recorder}
}

func (hs *holdingsService) Search(ctx context.Context, term string) ([]types.HoldingsFund, error) {
	if hs.provider == nil {
		return nil, ErrHoldingsUnavailable
	}
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("%w: search term required", analytics.ErrInvalidRequest)
	}
	funds, err := hs.provider.SearchFunds(ctx, term)
	if err != nil {
		hs.metrics.RecordProviderError("holdings")
		return nil, err
	}
	return funds, nil
}

func (hs *holdingsService) load(ctx context.Context, fundID string) (string, []analytics.HoldingRecord, []*analytics.RecordError, error) {
	if hs.provider == nil {
		return "", nil, nil, ErrHoldingsUnavailable
	}
	span := sentry.StartSpan(ctx, "[DAO] LoadHoldings")
	defer span.Finish()

	res, err := hs.provider.Holdings(span.Context(), fundID)
	if err != nil {
		span.Status = sentry.SpanStatusUnavailable
		hs.metrics.RecordProviderError("holdings")
		return "", nil, nil, fmt.Errorf("fetch holdings for %s: %w", fundID, err)
	}

	raw := make([]analytics.RawHolding, len(res.Holdings))
	for i, h := range res.Holdings {
		raw[i] = analytics.RawHolding{
			SecurityName:     string(h.SecurityName),
			ISIN:             string(h.ISIN),
			Weighting:        string(h.Weighting),
			NumberOfShares:   string(h.NumberOfShare),
			Sector:           string(h.Sector),
			HoldingType:      string(h.HoldingType),
			Assessment:       string(h.Assessment),
			TotalReturn1Year: string(h.TotalReturn1Year),
			ESGRiskScore:     string(h.SusEsgRiskScore),
		}
	}
	records, skipped := hs.parse(fundID, raw)
	span.Status = sentry.SpanStatusOK

	name := res.Name
	if name == "" {
		name = fundID
	}
	return name, records, skipped, nil
}

func (hs *holdingsService) parse(source string, raw []analytics.RawHolding) ([]analytics.HoldingRecord, []*analytics.RecordError) {
	records, skipped := analytics.ParseHoldings(raw)
	if len(skipped) > 0 {
		zap.L().Warn("Skipped malformed holdings rows",
			zap.String("source", source),
			zap.Int("skipped", len(skipped)),
			zap.Error(skipped[0]))
	}
	return records, skipped
}

func (hs *holdingsService) Breakdown(ctx context.Context, fundID string) (HoldingsReport, error) {
	name, records, skipped, err := hs.load(ctx, fundID)
	if err != nil {
		return HoldingsReport{}, err
	}
	return HoldingsReport{Fund: name, Breakdown: analytics.NewBreakdown(records), Holdings: records, Skipped: skipped}, nil
}

func (hs *holdingsService) Overlap(ctx context.Context, fundA, fundB string) (OverlapReport, error) {
	nameA, a, _, err := hs.load(ctx, fundA)
	if err != nil {
		return OverlapReport{}, err
	}
	nameB, b, _, err := hs.load(ctx, fundB)
	if err != nil {
		return OverlapReport{}, err
	}
	return OverlapReport{FundA: nameA, FundB: nameB, Overlap: analytics.Overlap(a, b)}, nil
}

func (hs *holdingsService) fromFile(file Upload) ([]analytics.HoldingRecord, []*analytics.RecordError, error) {
	raw, err := ParseDisclosure(file.Name, file.Reader)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("%w: no holdings table found in %s", analytics.ErrInsufficientData, file.Name)
	}
	records, skipped := hs.parse(file.Name, raw)
	return records, skipped, nil
}

func (hs *holdingsService) BreakdownFromFile(ctx context.Context, file Upload) (HoldingsReport, error) {
	span := sentry.StartSpan(ctx, "[DAO] BreakdownFromFile")
	defer span.Finish()

	records, skipped, err := hs.fromFile(file)
	if err != nil {
		span.Status = sentry.SpanStatusInvalidArgument
		return HoldingsReport{}, err
	}
	span.Status = sentry.SpanStatusOK
	return HoldingsReport{Fund: file.Name, Breakdown: analytics.NewBreakdown(records), Holdings: records, Skipped: skipped}, nil
}

func (hs *holdingsService) OverlapFromFiles(ctx context.Context, fileA, fileB Upload) (OverlapReport, error) {
	span := sentry.StartSpan(ctx, "[DAO] OverlapFromFiles")
	defer span.Finish()

	a, _, err := hs.fromFile(fileA)
	if err != nil {
		span.Status = sentry.SpanStatusInvalidArgument
		return OverlapReport{}, err
	}
	b, _, err := hs.fromFile(fileB)
	if err != nil {
		span.Status = sentry.SpanStatusInvalidArgument
		return OverlapReport{}, err
	}
	span.Status = sentry.SpanStatusOK
	return OverlapReport{FundA: fileA.Name, FundB: fileB.Name, Overlap: analytics.Overlap(a, b)}, nil
}
