package analytics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"mfanalytics/utils/helpers"
)

// NavDateLayout is the provider's day-month-year date format.
const NavDateLayout = "02-01-2006"

type FundIdentity struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type NavPoint struct {
	Date time.Time `json:"date"`
	NAV  float64   `json:"nav"`
}

type NavSeries struct {
	Fund   FundIdentity `json:"fund"`
	Points []NavPoint   `json:"points"`
}

// RawNavRecord is one unparsed row of provider NAV history.
type RawNavRecord struct {
	Date string `json:"date"`
	NAV  string `json:"nav"`
}

type NormalizeResult struct {
	Series  NavSeries
	Skipped []*RecordError
}

func (s NavSeries) Len() int { return len(s.Points) }

func (s NavSeries) First() NavPoint { return s.Points[0] }

func (s NavSeries) Last() NavPoint { return s.Points[len(s.Points)-1] }

// Restrict returns the points whose dates fall inside w. The result does not
// share its backing array with s.
func (s NavSeries) Restrict(w Window) NavSeries {
	out := NavSeries{Fund: s.Fund, Points: make([]NavPoint, 0, len(s.Points))}
	for _, p := range s.Points {
		if w.Contains(p.Date) {
			out.Points = append(out.Points, p)
		}
	}
	return out
}

// Descending returns a copy ordered newest first.
func (s NavSeries) Descending() NavSeries {
	out := NavSeries{Fund: s.Fund, Points: make([]NavPoint, len(s.Points))}
	for i, p := range s.Points {
		out.Points[len(s.Points)-1-i] = p
	}
	return out
}

// Normalize parses raw provider rows into an ascending series. Unparseable
// rows are skipped and reported; a later row with an already seen date
// replaces the earlier one.
func Normalize(fund FundIdentity, rows []RawNavRecord) (NormalizeResult, error) {
	res := NormalizeResult{Series: NavSeries{Fund: fund}}
	byDay := make(map[time.Time]int, len(rows))

	for i, row := range rows {
		date, err := time.Parse(NavDateLayout, strings.TrimSpace(row.Date))
		if err != nil {
			res.Skipped = append(res.Skipped, &RecordError{Row: i, Field: "date", Value: row.Date, Err: err})
			continue
		}
		nav, err := helpers.ParseNumber(row.NAV)
		if err != nil {
			res.Skipped = append(res.Skipped, &RecordError{Row: i, Field: "nav", Value: row.NAV, Err: err})
			continue
		}
		if !nav.IsPositive() {
			res.Skipped = append(res.Skipped, &RecordError{Row: i, Field: "nav", Value: row.NAV, Err: errors.New("nav must be positive")})
			continue
		}

		p := NavPoint{Date: date, NAV: nav.InexactFloat64()}
		if idx, ok := byDay[date]; ok {
			res.Series.Points[idx] = p
			continue
		}
		byDay[date] = len(res.Series.Points)
		res.Series.Points = append(res.Series.Points, p)
	}

	if len(res.Series.Points) == 0 {
		return res, fmt.Errorf("%w: no valid NAV rows for fund %s (%d skipped)", ErrInsufficientData, fund.Code, len(res.Skipped))
	}

	sort.Slice(res.Series.Points, func(i, j int) bool {
		return res.Series.Points[i].Date.Before(res.Series.Points[j].Date)
	})
	return res, nil
}
