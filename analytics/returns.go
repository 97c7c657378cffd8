package analytics

import (
	"fmt"
	"math"
	"time"
)

type ReturnPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ReturnSeries holds simple daily returns. The first NAV point of the source
// series has no return, so a series of n points yields n-1 returns.
type ReturnSeries struct {
	Fund   FundIdentity  `json:"fund"`
	Points []ReturnPoint `json:"points"`
}

func (r ReturnSeries) Len() int { return len(r.Points) }

func (r ReturnSeries) Values() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Value
	}
	return out
}

func DailyReturns(s NavSeries) (ReturnSeries, error) {
	out := ReturnSeries{Fund: s.Fund, Points: []ReturnPoint{}}
	for i := 1; i < len(s.Points); i++ {
		prev := s.Points[i-1].NAV
		if prev == 0 {
			return ReturnSeries{Fund: s.Fund, Points: []ReturnPoint{}},
				fmt.Errorf("%w: zero NAV on %s", ErrDivisionByZero, s.Points[i-1].Date.Format(time.DateOnly))
		}
		out.Points = append(out.Points, ReturnPoint{Date: s.Points[i].Date, Value: s.Points[i].NAV/prev - 1})
	}
	return out, nil
}

// CumulativeReturnPct is (last/first - 1) * 100.
func CumulativeReturnPct(s NavSeries) (float64, error) {
	if len(s.Points) == 0 {
		return 0, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}
	first := s.First().NAV
	if first == 0 {
		return 0, fmt.Errorf("%w: zero starting NAV", ErrDivisionByZero)
	}
	return (s.Last().NAV/first - 1) * 100, nil
}

// CumulativeReturnSeries gives the cumulative return percent at every point
// relative to the first point.
func CumulativeReturnSeries(s NavSeries) ([]ReturnPoint, error) {
	if len(s.Points) == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}
	first := s.First().NAV
	if first == 0 {
		return nil, fmt.Errorf("%w: zero starting NAV", ErrDivisionByZero)
	}
	out := make([]ReturnPoint, len(s.Points))
	for i, p := range s.Points {
		out[i] = ReturnPoint{Date: p.Date, Value: (p.NAV/first - 1) * 100}
	}
	return out, nil
}

// AnnualisedReturnPct is the CAGR over the elapsed calendar time between the
// first and last points, using a 365.25 day year.
func AnnualisedReturnPct(s NavSeries) (float64, error) {
	if len(s.Points) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 NAV points, got %d", ErrInsufficientData, len(s.Points))
	}
	first, last := s.First(), s.Last()
	days := last.Date.Sub(first.Date).Hours() / 24
	if days <= 0 {
		return 0, fmt.Errorf("%w: no elapsed days between first and last NAV", ErrDivisionByZero)
	}
	if first.NAV == 0 {
		return 0, fmt.Errorf("%w: zero starting NAV", ErrDivisionByZero)
	}
	return (math.Pow(last.NAV/first.NAV, DaysPerYear/days) - 1) * 100, nil
}

// AnnualisedReturnPctForYears is the CAGR over a fixed horizon of whole years.
func AnnualisedReturnPctForYears(s NavSeries, years int) (float64, error) {
	if years <= 0 {
		return 0, fmt.Errorf("%w: horizon of %d years", ErrDivisionByZero, years)
	}
	if len(s.Points) == 0 {
		return 0, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}
	first := s.First().NAV
	if first == 0 {
		return 0, fmt.Errorf("%w: zero starting NAV", ErrDivisionByZero)
	}
	return (math.Pow(s.Last().NAV/first, 1/float64(years)) - 1) * 100, nil
}
