package services

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"mfanalytics/analytics"
	"mfanalytics/utils/helpers"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var ErrUnsupportedFile = errors.New("unsupported file type")

const (
	colName        = "name"
	colISIN        = "isin"
	colSector      = "sector"
	colShares      = "shares"
	colWeighting   = "weighting"
	colHoldingType = "holdingType"
	colAssessment  = "assessment"
	colReturn      = "return1y"
	colESG         = "esg"
)

// headerPatterns are checked in order; the first match names the column.
var headerPatterns = []struct {
	key      string
	patterns []string
}{
	{colName, []string{`name\s*of\s*(the)?\s*(instrument|security)`, `security\s*name`}},
	{colISIN, []string{`isin`}},
	{colWeighting, []string{`%.*nav`, `%.*net\s*assets`, `weight`}},
	{colSector, []string{`rating\s*/\s*industry`, `industry\s*/\s*rating`, `industry`, `sector`}},
	{colShares, []string{`quantity`, `no\.?\s*of\s*shares`, `number\s*of\s*shares`}},
	{colHoldingType, []string{`holding\s*type`, `asset\s*(type|class)`}},
	{colAssessment, []string{`assessment`}},
	{colReturn, []string{`1\s*y(ea)?r?.*return`, `total\s*return`}},
	{colESG, []string{`esg`}},
}

// ParseDisclosure reads holdings from an uploaded portfolio disclosure,
// choosing the parser by file extension.
func ParseDisclosure(filename string, r io.Reader) ([]analytics.RawHolding, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return ParseXLSXHoldings(r)
	case ".html", ".htm":
		return ParseHTMLHoldings(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}
}

func ParseXLSXHoldings(r io.Reader) ([]analytics.RawHolding, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing XLSX file: %w", err)
	}
	defer f.Close()

	var holdings []analytics.RawHolding
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			zap.L().Error("Error reading rows from sheet", zap.String("sheet", sheet), zap.Error(err))
			continue
		}
		holdings = append(holdings, extractHoldingRows(rows)...)
	}
	return holdings, nil
}

func ParseHTMLHoldings(r io.Reader) ([]analytics.RawHolding, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	var holdings []analytics.RawHolding
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			rows = append(rows, cells)
		})
		holdings = append(holdings, extractHoldingRows(rows)...)
	})
	return holdings, nil
}

func buildHeaderMap(row []string) map[string]int {
	headerMap := make(map[string]int)
	for i, cell := range row {
		normalizedHeader := helpers.NormalizeString(cell)
		if normalizedHeader == "" {
			continue
		}
		for _, hp := range headerPatterns {
			if _, taken := headerMap[hp.key]; taken {
				continue
			}
			if helpers.MatchHeader(normalizedHeader, hp.patterns) {
				headerMap[hp.key] = i
				break
			}
		}
	}
	return headerMap
}

func cellAt(row []string, headerMap map[string]int, key string) string {
	i, ok := headerMap[key]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// extractHoldingRows scans a sheet or table for the holdings header and
// reads rows below it. A named row with no weighting is a section heading
// and becomes the holding type of the rows that follow when the file has no
// holding type column. Reading stops at a grand total.
func extractHoldingRows(rows [][]string) []analytics.RawHolding {
	var holdings []analytics.RawHolding
	var headerMap map[string]int
	section := ""

	for _, row := range rows {
		if len(row) == 0 {
			continue
		}

		if headerMap == nil {
			for _, cell := range row {
				if helpers.CheckInstrumentName(cell) {
					headerMap = buildHeaderMap(row)
					break
				}
			}
			if headerMap != nil {
				if _, ok := headerMap[colWeighting]; !ok {
					headerMap = nil
				}
			}
			continue
		}

		name := cellAt(row, headerMap, colName)
		if name == "" {
			continue
		}
		if helpers.IsTotalRow(name) {
			if strings.Contains(helpers.NormalizeString(name), "grand") {
				break
			}
			continue
		}

		weighting := cellAt(row, headerMap, colWeighting)
		if weighting == "" {
			section = name
			continue
		}

		holdingType := cellAt(row, headerMap, colHoldingType)
		if _, ok := headerMap[colHoldingType]; !ok {
			holdingType = section
		}

		holdings = append(holdings, analytics.RawHolding{
			SecurityName:     name,
			ISIN:             cellAt(row, headerMap, colISIN),
			Weighting:        weighting,
			NumberOfShares:   cellAt(row, headerMap, colShares),
			Sector:           cellAt(row, headerMap, colSector),
			HoldingType:      holdingType,
			Assessment:       cellAt(row, headerMap, colAssessment),
			TotalReturn1Year: cellAt(row, headerMap, colReturn),
			ESGRiskScore:     cellAt(row, headerMap, colESG),
		})
	}
	return holdings
}
