package helpers

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	instrumentHeader = regexp.MustCompile(`(?i)(name of (the )?instrument|security\s*name|name of (the )?security)`)
	totalRow         = regexp.MustCompile(`(?i)^(grand\s*)?(sub\s*)?total\b`)
	nameNoise        = regexp.MustCompile(`(?i)\b(ltd|limited|the|inc|corp|corporation|co)\b\.?`)
	nonAlnum         = regexp.MustCompile(`[^a-z0-9 ]+`)
	spaces           = regexp.MustCompile(`\s+`)
)

var ErrEmptyNumber = errors.New("empty number")

// Helper function to match header titles
func MatchHeader(cellValue string, patterns []string) bool {
	normalizedValue := NormalizeString(cellValue)
	for _, pattern := range patterns {
		matched, _ := regexp.MatchString(pattern, normalizedValue)
		if matched {
			return true
		}
	}
	return false
}

// Helper function to normalize strings
func NormalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CheckInstrumentName reports whether a cell looks like the header of the
// security name column in a portfolio disclosure.
func CheckInstrumentName(input string) bool {
	return instrumentHeader.MatchString(input)
}

// IsTotalRow reports whether a cell closes a holdings table ("Total", "Sub Total", "Grand Total").
func IsTotalRow(input string) bool {
	return totalRow.MatchString(strings.TrimSpace(input))
}

// NormalizeSecurityName reduces a security name to a comparable key.
func NormalizeSecurityName(name string) string {
	s := strings.ToLower(name)
	s = nameNoise.ReplaceAllString(s, " ")
	s = nonAlnum.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func NormalizeISIN(isin string) string {
	return strings.ToUpper(strings.TrimSpace(isin))
}

func cleanNumber(s string) string {
	r := strings.NewReplacer(",", "", "%", "", "₹", "", "Rs.", "", " ", "")
	return strings.TrimSpace(r.Replace(s))
}

// ParseNumber parses a provider number such as "1,234.50" or "3.2%". The
// percent sign is stripped, not applied.
func ParseNumber(s string) (decimal.Decimal, error) {
	cleaned := cleanNumber(s)
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, ErrEmptyNumber
	}
	return decimal.NewFromString(cleaned)
}

// ParseOptionalNumber returns nil for an empty cell.
func ParseOptionalNumber(s string) (*float64, error) {
	d, err := ParseNumber(s)
	if errors.Is(err, ErrEmptyNumber) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f := d.InexactFloat64()
	return &f, nil
}

// Round rounds to the given number of decimal places for presentation.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
