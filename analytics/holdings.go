package analytics

import (
	"errors"
	"sort"
	"strings"

	"mfanalytics/utils/helpers"
)

const Unclassified = "Unclassified"

// RawHolding is one unparsed holdings row, from a provider or a disclosure file.
type RawHolding struct {
	SecurityName     string `json:"securityName"`
	ISIN             string `json:"isin"`
	Weighting        string `json:"weighting"`
	NumberOfShares   string `json:"numberOfShare"`
	Sector           string `json:"sector"`
	HoldingType      string `json:"holdingType"`
	Assessment       string `json:"assessment"`
	TotalReturn1Year string `json:"totalReturn1Year"`
	ESGRiskScore     string `json:"susEsgRiskScore"`
}

type HoldingRecord struct {
	SecurityName     string   `json:"securityName"`
	ISIN             string   `json:"isin,omitempty"`
	Weighting        float64  `json:"weighting"`
	NumberOfShares   float64  `json:"numberOfShare"`
	Sector           string   `json:"sector"`
	HoldingType      string   `json:"holdingType"`
	Assessment       string   `json:"assessment"`
	TotalReturn1Year *float64 `json:"totalReturn1Year,omitempty"`
	ESGRiskScore     *float64 `json:"susEsgRiskScore,omitempty"`
}

// ParseHoldings converts raw rows, skipping and reporting rows with a
// missing name or weighting or an unreadable number.
func ParseHoldings(rows []RawHolding) ([]HoldingRecord, []*RecordError) {
	records := make([]HoldingRecord, 0, len(rows))
	var skipped []*RecordError

	for i, row := range rows {
		name := strings.TrimSpace(row.SecurityName)
		if name == "" {
			skipped = append(skipped, &RecordError{Row: i, Field: "securityName", Value: row.SecurityName, Err: errors.New("missing security name")})
			continue
		}
		weighting, err := helpers.ParseNumber(row.Weighting)
		if err != nil {
			skipped = append(skipped, &RecordError{Row: i, Field: "weighting", Value: row.Weighting, Err: err})
			continue
		}
		rec := HoldingRecord{
			SecurityName: name,
			ISIN:         helpers.NormalizeISIN(row.ISIN),
			Weighting:    weighting.InexactFloat64(),
			Sector:       strings.TrimSpace(row.Sector),
			HoldingType:  strings.TrimSpace(row.HoldingType),
			Assessment:   strings.TrimSpace(row.Assessment),
		}

		shares, err := helpers.ParseOptionalNumber(row.NumberOfShares)
		if err != nil {
			skipped = append(skipped, &RecordError{Row: i, Field: "numberOfShare", Value: row.NumberOfShares, Err: err})
			continue
		}
		if shares != nil {
			rec.NumberOfShares = *shares
		}
		if rec.TotalReturn1Year, err = helpers.ParseOptionalNumber(row.TotalReturn1Year); err != nil {
			skipped = append(skipped, &RecordError{Row: i, Field: "totalReturn1Year", Value: row.TotalReturn1Year, Err: err})
			continue
		}
		if rec.ESGRiskScore, err = helpers.ParseOptionalNumber(row.ESGRiskScore); err != nil {
			skipped = append(skipped, &RecordError{Row: i, Field: "susEsgRiskScore", Value: row.ESGRiskScore, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}

type GroupWeight struct {
	Group     string  `json:"group"`
	Weighting float64 `json:"weighting"`
	Holdings  int     `json:"holdings"`
}

type GroupCount struct {
	Group string `json:"group"`
	Count int    `json:"count"`
}

type Breakdown struct {
	BySector      []GroupWeight `json:"bySector"`
	ByHoldingType []GroupWeight `json:"byHoldingType"`
	ByAssessment  []GroupCount  `json:"byAssessment"`
	Holdings      int           `json:"holdings"`
}

func groupKey(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return Unclassified
	}
	return s
}

func sumBy(records []HoldingRecord, key func(HoldingRecord) string) []GroupWeight {
	index := map[string]int{}
	out := []GroupWeight{}
	for _, r := range records {
		k := groupKey(key(r))
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, GroupWeight{Group: k})
		}
		out[i].Weighting += r.Weighting
		out[i].Holdings++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weighting != out[j].Weighting {
			return out[i].Weighting > out[j].Weighting
		}
		return out[i].Group < out[j].Group
	})
	return out
}

// SectorWeights sums weighting per sector.
func SectorWeights(records []HoldingRecord) []GroupWeight {
	return sumBy(records, func(r HoldingRecord) string { return r.Sector })
}

// HoldingTypeWeights sums weighting per holding type.
func HoldingTypeWeights(records []HoldingRecord) []GroupWeight {
	return sumBy(records, func(r HoldingRecord) string { return r.HoldingType })
}

// AssessmentCounts counts securities per assessment label.
func AssessmentCounts(records []HoldingRecord) []GroupCount {
	index := map[string]int{}
	out := []GroupCount{}
	for _, r := range records {
		k := groupKey(r.Assessment)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, GroupCount{Group: k})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Group < out[j].Group
	})
	return out
}

func NewBreakdown(records []HoldingRecord) Breakdown {
	return Breakdown{
		BySector:      SectorWeights(records),
		ByHoldingType: HoldingTypeWeights(records),
		ByAssessment:  AssessmentCounts(records),
		Holdings:      len(records),
	}
}

type CommonHolding struct {
	SecurityName string  `json:"securityName"`
	ISIN         string  `json:"isin,omitempty"`
	WeightingA   float64 `json:"weightingA"`
	WeightingB   float64 `json:"weightingB"`
}

type OverlapResult struct {
	Common             []CommonHolding `json:"common"`
	WeightedOverlapA   float64         `json:"weightedOverlapA"`
	WeightedOverlapB   float64         `json:"weightedOverlapB"`
	CountOverlapPctA   float64         `json:"countOverlapPctA"`
	CountOverlapPctB   float64         `json:"countOverlapPctB"`
	MinWeightedOverlap float64         `json:"minWeightedOverlap"`
}

func matchKey(r HoldingRecord) string {
	if r.ISIN != "" {
		return "isin:" + r.ISIN
	}
	return "name:" + helpers.NormalizeSecurityName(r.SecurityName)
}

type overlapAgg struct {
	rec    HoldingRecord
	weight float64
}

type overlapSide struct {
	byKey  map[string]*overlapAgg
	byName map[string]string
	order  []string
}

func collectOverlapSide(records []HoldingRecord) overlapSide {
	side := overlapSide{
		byKey:  make(map[string]*overlapAgg, len(records)),
		byName: make(map[string]string, len(records)),
	}
	for _, r := range records {
		k := matchKey(r)
		if cur, ok := side.byKey[k]; ok {
			cur.weight += r.Weighting
			continue
		}
		side.byKey[k] = &overlapAgg{rec: r, weight: r.Weighting}
		side.order = append(side.order, k)
		name := helpers.NormalizeSecurityName(r.SecurityName)
		if _, ok := side.byName[name]; !ok && name != "" {
			side.byName[name] = k
		}
	}
	return side
}

// match finds the line in s for r: by ISIN when both carry one, otherwise
// by normalised name.
func (s overlapSide) match(r HoldingRecord) (string, bool) {
	if r.ISIN != "" {
		if _, ok := s.byKey["isin:"+r.ISIN]; ok {
			return "isin:" + r.ISIN, true
		}
	}
	k, ok := s.byName[helpers.NormalizeSecurityName(r.SecurityName)]
	if !ok {
		return "", false
	}
	if r.ISIN != "" && s.byKey[k].rec.ISIN != "" {
		return "", false
	}
	return k, true
}

// Overlap finds securities held by both funds, matched by ISIN when both
// sides have one and by normalised name otherwise. Repeated lines for one
// security are summed.
func Overlap(a, b []HoldingRecord) OverlapResult {
	sideA := collectOverlapSide(a)
	sideB := collectOverlapSide(b)
	orderA, orderB := sideA.order, sideB.order

	res := OverlapResult{Common: []CommonHolding{}}
	used := make(map[string]bool, len(orderB))
	for _, k := range orderA {
		ha := sideA.byKey[k]
		kb, ok := sideB.match(ha.rec)
		if !ok || used[kb] {
			continue
		}
		used[kb] = true
		hb := sideB.byKey[kb]
		isin := ha.rec.ISIN
		if isin == "" {
			isin = hb.rec.ISIN
		}
		res.Common = append(res.Common, CommonHolding{
			SecurityName: ha.rec.SecurityName,
			ISIN:         isin,
			WeightingA:   ha.weight,
			WeightingB:   hb.weight,
		})
		res.WeightedOverlapA += ha.weight
		res.WeightedOverlapB += hb.weight
		res.MinWeightedOverlap += min(ha.weight, hb.weight)
	}

	if len(orderA) > 0 {
		res.CountOverlapPctA = float64(len(res.Common)) / float64(len(orderA)) * 100
	}
	if len(orderB) > 0 {
		res.CountOverlapPctB = float64(len(res.Common)) / float64(len(orderB)) * 100
	}
	return res
}
