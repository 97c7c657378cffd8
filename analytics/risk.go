package analytics

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	TradingDaysPerYear = 252
	DaysPerYear        = 365.25

	// DefaultRiskFreeRate is an annual rate expressed as a fraction.
	DefaultRiskFreeRate = 0.06

	zeroVolatility = 1e-12
)

var annualisation = math.Sqrt(TradingDaysPerYear)

type RiskSummary struct {
	StartDate           time.Time `json:"startDate"`
	EndDate             time.Time `json:"endDate"`
	StartNAV            float64   `json:"startNav"`
	EndNAV              float64   `json:"endNav"`
	CumulativeReturnPct float64   `json:"cumulativeReturnPct"`
	VolatilityPct       float64   `json:"volatilityPct"`
	AnnualisedReturnPct float64   `json:"annualisedReturnPct"`
	SharpeRatio         float64   `json:"sharpeRatio"`
}

// VolatilityPct is the sample standard deviation of daily returns scaled to
// a year of trading days, in percent.
func VolatilityPct(r ReturnSeries) (float64, error) {
	if len(r.Points) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 returns, got %d", ErrInsufficientData, len(r.Points))
	}
	return stat.StdDev(r.Values(), nil) * annualisation * 100, nil
}

// RollingVolatility computes VolatilityPct over each trailing window of
// windowDays returns. Points before the first full window are dropped.
func RollingVolatility(r ReturnSeries, windowDays int) ([]ReturnPoint, error) {
	if windowDays < 2 {
		return []ReturnPoint{}, fmt.Errorf("%w: rolling window must span at least 2 returns, got %d", ErrInsufficientData, windowDays)
	}
	if windowDays > len(r.Points) {
		return []ReturnPoint{}, fmt.Errorf("%w: rolling window of %d exceeds %d returns", ErrInsufficientData, windowDays, len(r.Points))
	}

	values := r.Values()
	out := make([]ReturnPoint, 0, len(values)-windowDays+1)
	for end := windowDays; end <= len(values); end++ {
		std := stat.StdDev(values[end-windowDays:end], nil)
		out = append(out, ReturnPoint{Date: r.Points[end-1].Date, Value: std * annualisation * 100})
	}
	return out, nil
}

// SharpeRatio annualises mean daily return and volatility and takes the
// excess over riskFreeRate per unit of volatility.
func SharpeRatio(r ReturnSeries, riskFreeRate float64) (float64, error) {
	if len(r.Points) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 returns, got %d", ErrInsufficientData, len(r.Points))
	}
	values := r.Values()
	mean, std := stat.MeanStdDev(values, nil)
	vol := std * annualisation
	if vol < zeroVolatility {
		return 0, fmt.Errorf("%w: zero volatility", ErrDivisionByZero)
	}
	return (mean*TradingDaysPerYear - riskFreeRate) / vol, nil
}

func Summarize(s NavSeries, riskFreeRate float64) (RiskSummary, error) {
	if len(s.Points) == 0 {
		return RiskSummary{}, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}
	sum := RiskSummary{
		StartDate: s.First().Date,
		EndDate:   s.Last().Date,
		StartNAV:  s.First().NAV,
		EndNAV:    s.Last().NAV,
	}

	var err error
	if sum.CumulativeReturnPct, err = CumulativeReturnPct(s); err != nil {
		return RiskSummary{}, fmt.Errorf("cumulative return: %w", err)
	}
	if sum.AnnualisedReturnPct, err = AnnualisedReturnPct(s); err != nil {
		return RiskSummary{}, fmt.Errorf("annualised return: %w", err)
	}
	returns, err := DailyReturns(s)
	if err != nil {
		return RiskSummary{}, fmt.Errorf("daily returns: %w", err)
	}
	if sum.VolatilityPct, err = VolatilityPct(returns); err != nil {
		return RiskSummary{}, fmt.Errorf("volatility: %w", err)
	}
	if sum.SharpeRatio, err = SharpeRatio(returns, riskFreeRate); err != nil {
		return RiskSummary{}, fmt.Errorf("sharpe ratio: %w", err)
	}
	return sum, nil
}
