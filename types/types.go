package types

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Scheme is one entry of the provider's scheme list.
type Scheme struct {
	Code int    `json:"schemeCode"`
	Name string `json:"schemeName"`
}

func (s Scheme) CodeString() string {
	return strconv.Itoa(s.Code)
}

type SchemeMeta struct {
	FundHouse      string `json:"fund_house"`
	SchemeType     string `json:"scheme_type"`
	SchemeCategory string `json:"scheme_category"`
	SchemeCode     int    `json:"scheme_code"`
	SchemeName     string `json:"scheme_name"`
}

type NavRecord struct {
	Date string `json:"date"`
	Nav  string `json:"nav"`
}

// SchemeHistory is the provider's full NAV history response.
type SchemeHistory struct {
	Meta   SchemeMeta  `json:"meta"`
	Data   []NavRecord `json:"data"`
	Status string      `json:"status"`
}

// FlexString accepts a JSON string, number or null.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

type HoldingRow struct {
	SecurityName     FlexString `json:"securityName"`
	ISIN             FlexString `json:"isin"`
	Weighting        FlexString `json:"weighting"`
	NumberOfShare    FlexString `json:"numberOfShare"`
	Sector           FlexString `json:"sector"`
	HoldingType      FlexString `json:"holdingType"`
	Assessment       FlexString `json:"assessment"`
	TotalReturn1Year FlexString `json:"totalReturn1Year"`
	SusEsgRiskScore  FlexString `json:"susEsgRiskScore"`
}

type HoldingsResponse struct {
	Name     string       `json:"name"`
	Holdings []HoldingRow `json:"holdings"`
}

type HoldingsFund struct {
	ID   string `json:"fundShareClassId"`
	Name string `json:"name"`
}

// ScreeningEvent is published after every fund selection run.
type ScreeningEvent struct {
	EventID      string    `json:"eventId"`
	ScreenID     string    `json:"screenId,omitempty"`
	Keyword      string    `json:"keyword"`
	Benchmark    string    `json:"benchmark"`
	WindowStart  time.Time `json:"windowStart"`
	WindowEnd    time.Time `json:"windowEnd"`
	Evaluated    int       `json:"evaluated"`
	Shortlisted  []string  `json:"shortlisted"`
	Excluded     int       `json:"excluded"`
	CompletedAt  time.Time `json:"completedAt"`
	RiskFreeRate float64   `json:"riskFreeRate"`
}
