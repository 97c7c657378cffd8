package analytics

type Thresholds struct {
	MinSharpe              float64 `json:"minSharpe"`
	MinAnnualisedReturnPct float64 `json:"minAnnualisedReturnPct"`
	MinUpCapturePct        float64 `json:"minUpCapturePct"`
	MaxDownCapturePct      float64 `json:"maxDownCapturePct"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSharpe:              0.1,
		MinAnnualisedReturnPct: 6.0,
		MinUpCapturePct:        30.0,
		MaxDownCapturePct:      100.0,
	}
}

// Match reports whether a row clears every threshold. Rows without capture
// ratios never match.
func (t Thresholds) Match(m FundMetrics) bool {
	if m.Capture == nil {
		return false
	}
	return m.Risk.SharpeRatio >= t.MinSharpe &&
		m.Risk.AnnualisedReturnPct >= t.MinAnnualisedReturnPct &&
		m.Capture.UpCapturePct >= t.MinUpCapturePct &&
		m.Capture.DownCapturePct <= t.MaxDownCapturePct
}

func Screen(rows []FundMetrics, t Thresholds) []FundMetrics {
	out := []FundMetrics{}
	for _, row := range rows {
		if t.Match(row) {
			out = append(out, row)
		}
	}
	return out
}
