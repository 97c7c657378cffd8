package analytics

import (
	"fmt"
	"sort"
	"time"
)

type FundMetrics struct {
	Fund    FundIdentity   `json:"fund"`
	Risk    RiskSummary    `json:"risk"`
	Capture *CaptureResult `json:"capture,omitempty"`
}

// Exclusion records why a fund is missing from a table.
type Exclusion struct {
	Fund   FundIdentity `json:"fund"`
	Reason ReasonCode   `json:"reason"`
	Detail string       `json:"detail"`
}

func Exclude(fund FundIdentity, err error) Exclusion {
	return Exclusion{Fund: fund, Reason: ReasonFor(err), Detail: err.Error()}
}

type Table struct {
	Window   Window        `json:"window"`
	Rows     []FundMetrics `json:"rows"`
	Excluded []Exclusion   `json:"excluded"`
}

type AggregateRequest struct {
	Funds        []NavSeries
	Benchmark    *NavSeries
	Window       Window
	RiskFreeRate float64
}

// Aggregate builds one metrics row per fund over a shared window. A fund is
// listed only when every metric could be computed for it; otherwise it is
// listed in Excluded. Rows keep the order of req.Funds.
func Aggregate(req AggregateRequest) (Table, error) {
	if len(req.Funds) == 0 {
		return Table{}, fmt.Errorf("%w: no funds to aggregate", ErrInvalidRequest)
	}

	table := Table{Window: req.Window, Rows: []FundMetrics{}, Excluded: []Exclusion{}}

	var bench ReturnSeries
	var benchErr error
	if req.Benchmark != nil {
		bench, benchErr = DailyReturns(req.Benchmark.Restrict(req.Window))
		if benchErr == nil && len(bench.Points) == 0 {
			benchErr = fmt.Errorf("%w: benchmark %s has no returns in window %s", ErrInsufficientData, req.Benchmark.Fund.Code, req.Window)
		}
		if benchErr != nil {
			benchErr = fmt.Errorf("benchmark: %w", benchErr)
		}
	}

	seen := make(map[string]bool, len(req.Funds))
	for _, fund := range req.Funds {
		if seen[fund.Fund.Code] {
			table.Excluded = append(table.Excluded, Exclusion{
				Fund:   fund.Fund,
				Reason: ReasonDuplicateFund,
				Detail: fmt.Sprintf("fund %s listed more than once", fund.Fund.Code),
			})
			continue
		}
		seen[fund.Fund.Code] = true

		row, err := fundMetrics(fund.Restrict(req.Window), req, bench, benchErr)
		if err != nil {
			table.Excluded = append(table.Excluded, Exclude(fund.Fund, err))
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func fundMetrics(s NavSeries, req AggregateRequest, bench ReturnSeries, benchErr error) (FundMetrics, error) {
	risk, err := Summarize(s, req.RiskFreeRate)
	if err != nil {
		return FundMetrics{}, err
	}
	row := FundMetrics{Fund: s.Fund, Risk: risk}
	if req.Benchmark == nil {
		return row, nil
	}
	if benchErr != nil {
		return FundMetrics{}, benchErr
	}
	returns, err := DailyReturns(s)
	if err != nil {
		return FundMetrics{}, err
	}
	capture, err := CaptureRatios(returns, bench)
	if err != nil {
		return FundMetrics{}, fmt.Errorf("capture ratios: %w", err)
	}
	row.Capture = &capture
	return row, nil
}

// NavComparison is a date-aligned NAV table. A fund without a NAV on a date
// has no entry for that date.
type NavComparison struct {
	Window Window         `json:"window"`
	Funds  []FundIdentity `json:"funds"`
	Rows   []AlignedNav   `json:"rows"`
}

type AlignedNav struct {
	Date time.Time          `json:"date"`
	NAV  map[string]float64 `json:"nav"`
}

func AlignNAV(series []NavSeries, w Window) NavComparison {
	cmp := NavComparison{Window: w, Funds: make([]FundIdentity, 0, len(series)), Rows: []AlignedNav{}}
	rows := make(map[dayKey]*AlignedNav)
	for _, s := range series {
		cmp.Funds = append(cmp.Funds, s.Fund)
		for _, p := range s.Restrict(w).Points {
			k := keyOf(p.Date)
			row, ok := rows[k]
			if !ok {
				row = &AlignedNav{Date: p.Date, NAV: make(map[string]float64, len(series))}
				rows[k] = row
			}
			row.NAV[s.Fund.Code] = p.NAV
		}
	}
	for _, row := range rows {
		cmp.Rows = append(cmp.Rows, *row)
	}
	sort.Slice(cmp.Rows, func(i, j int) bool { return cmp.Rows[i].Date.Before(cmp.Rows[j].Date) })
	return cmp
}

type FundReturns struct {
	Fund                FundIdentity  `json:"fund"`
	Cumulative          []ReturnPoint `json:"cumulative"`
	AbsoluteReturnPct   float64       `json:"absoluteReturnPct"`
	AnnualisedReturnPct float64       `json:"annualisedReturnPct"`
}

type ReturnComparison struct {
	Window   Window        `json:"window"`
	Years    int           `json:"years"`
	Funds    []FundReturns `json:"funds"`
	Excluded []Exclusion   `json:"excluded"`
}

// CompareReturns reports cumulative return paths and the whole-year CAGR of
// each fund over w.
func CompareReturns(series []NavSeries, w Window, years int) (ReturnComparison, error) {
	if len(series) == 0 {
		return ReturnComparison{}, fmt.Errorf("%w: no funds to compare", ErrInvalidRequest)
	}
	if years <= 0 {
		return ReturnComparison{}, fmt.Errorf("%w: years must be positive, got %d", ErrInvalidRequest, years)
	}
	cmp := ReturnComparison{Window: w, Years: years, Funds: []FundReturns{}, Excluded: []Exclusion{}}
	for _, s := range series {
		restricted := s.Restrict(w)
		fr, err := fundReturns(restricted, years)
		if err != nil {
			cmp.Excluded = append(cmp.Excluded, Exclude(s.Fund, err))
			continue
		}
		cmp.Funds = append(cmp.Funds, fr)
	}
	return cmp, nil
}

func fundReturns(s NavSeries, years int) (FundReturns, error) {
	cumulative, err := CumulativeReturnSeries(s)
	if err != nil {
		return FundReturns{}, err
	}
	abs, err := CumulativeReturnPct(s)
	if err != nil {
		return FundReturns{}, err
	}
	cagr, err := AnnualisedReturnPctForYears(s, years)
	if err != nil {
		return FundReturns{}, err
	}
	return FundReturns{Fund: s.Fund, Cumulative: cumulative, AbsoluteReturnPct: abs, AnnualisedReturnPct: cagr}, nil
}
