package analytics

import (
	"time"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return base.AddDate(0, 0, i) }

func series(code string, navs ...float64) NavSeries {
	s := NavSeries{Fund: FundIdentity{Code: code, Name: "Fund " + code}}
	for i, v := range navs {
		s.Points = append(s.Points, NavPoint{Date: day(i), NAV: v})
	}
	return s
}

func returns(code string, values ...float64) ReturnSeries {
	r := ReturnSeries{Fund: FundIdentity{Code: code}}
	for i, v := range values {
		r.Points = append(r.Points, ReturnPoint{Date: day(i + 1), Value: v})
	}
	return r
}

// navsFor builds a NAV path starting at 100 that produces the given returns.
func navsFor(rets ...float64) []float64 {
	navs := []float64{100}
	for _, r := range rets {
		navs = append(navs, navs[len(navs)-1]*(1+r))
	}
	return navs
}
