package analytics

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

type CaptureResult struct {
	UpCapturePct   float64 `json:"upCapturePct"`
	DownCapturePct float64 `json:"downCapturePct"`
	UpDays         int     `json:"upDays"`
	DownDays       int     `json:"downDays"`
}

type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{y, m, d}
}

// CaptureRatios compares fund and benchmark daily returns on the dates both
// have. Up days are days the benchmark rose, down days the days it fell;
// flat benchmark days belong to neither side.
func CaptureRatios(fund, benchmark ReturnSeries) (CaptureResult, error) {
	bench := make(map[dayKey]float64, len(benchmark.Points))
	for _, p := range benchmark.Points {
		bench[keyOf(p.Date)] = p.Value
	}

	var upFund, upBench, downFund, downBench []float64
	matched := 0
	for _, p := range fund.Points {
		b, ok := bench[keyOf(p.Date)]
		if !ok {
			continue
		}
		matched++
		switch {
		case b > 0:
			upFund = append(upFund, p.Value)
			upBench = append(upBench, b)
		case b < 0:
			downFund = append(downFund, p.Value)
			downBench = append(downBench, b)
		}
	}

	if matched == 0 {
		return CaptureResult{}, fmt.Errorf("%w: fund %s and benchmark %s share no dates", ErrJoinMismatch, fund.Fund.Code, benchmark.Fund.Code)
	}
	if len(upBench) == 0 {
		return CaptureResult{}, fmt.Errorf("%w: no benchmark up days", ErrEmptyPartition)
	}
	if len(downBench) == 0 {
		return CaptureResult{}, fmt.Errorf("%w: no benchmark down days", ErrEmptyPartition)
	}

	return CaptureResult{
		UpCapturePct:   stat.Mean(upFund, nil) / stat.Mean(upBench, nil) * 100,
		DownCapturePct: stat.Mean(downFund, nil) / stat.Mean(downBench, nil) * 100,
		UpDays:         len(upBench),
		DownDays:       len(downBench),
	}, nil
}
