package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"mfanalytics/analytics"
	"mfanalytics/utils/helpers"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/getsentry/sentry-go"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetMetrics   = "Metrics"
	sheetShortlist = "Shortlist"
	sheetExcluded  = "Excluded"
)

var metricsHeader = []interface{}{
	"Scheme Code", "Scheme Name", "Start Date", "End Date", "Start NAV", "End NAV",
	"Cumulative Return %", "Annualised Return %", "Volatility %", "Sharpe Ratio",
	"Up Capture %", "Down Capture %", "Up Days", "Down Days",
}

type ExportServiceI interface {
	SelectionWorkbook(result SelectionResult) ([]byte, error)
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

type exportService struct {
	cld *cloudinary.Cloudinary
}

// NewExportService uploads to Cloudinary when cloudinaryURL is set.
func NewExportService(cloudinaryURL string) (ExportServiceI, error) {
	es := &exportService{}
	if cloudinaryURL == "" {
		return es, nil
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("error initializing Cloudinary: %w", err)
	}
	es.cld = cld
	return es, nil
}

func metricsRow(m analytics.FundMetrics) []interface{} {
	row := []interface{}{
		m.Fund.Code, m.Fund.Name,
		m.Risk.StartDate.Format(time.DateOnly), m.Risk.EndDate.Format(time.DateOnly),
		m.Risk.StartNAV, m.Risk.EndNAV,
		helpers.Round(m.Risk.CumulativeReturnPct, 2),
		helpers.Round(m.Risk.AnnualisedReturnPct, 2),
		helpers.Round(m.Risk.VolatilityPct, 2),
		helpers.Round(m.Risk.SharpeRatio, 2),
	}
	if m.Capture != nil {
		row = append(row,
			helpers.Round(m.Capture.UpCapturePct, 2),
			helpers.Round(m.Capture.DownCapturePct, 2),
			m.Capture.UpDays, m.Capture.DownDays)
	}
	return row
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// SelectionWorkbook renders a selection run as an xlsx workbook with the
// full table, the shortlist and the exclusions on separate sheets.
func (es *exportService) SelectionWorkbook(result SelectionResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetMetrics); err != nil {
		return nil, err
	}
	for _, sheet := range []string{sheetShortlist, sheetExcluded} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}

	all := [][]interface{}{metricsHeader}
	for _, m := range result.Table.Rows {
		all = append(all, metricsRow(m))
	}
	shortlist := [][]interface{}{metricsHeader}
	for _, m := range result.Shortlist {
		shortlist = append(shortlist, metricsRow(m))
	}
	excluded := [][]interface{}{{"Scheme Code", "Scheme Name", "Reason", "Detail"}}
	for _, ex := range result.Table.Excluded {
		excluded = append(excluded, []interface{}{ex.Fund.Code, ex.Fund.Name, string(ex.Reason), ex.Detail})
	}

	for sheet, rows := range map[string][][]interface{}{sheetMetrics: all, sheetShortlist: shortlist, sheetExcluded: excluded} {
		if err := writeRows(f, sheet, rows); err != nil {
			return nil, fmt.Errorf("write sheet %s: %w", sheet, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Upload stores the workbook and returns its URL, or "" when no Cloudinary
// account is configured.
func (es *exportService) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if es.cld == nil {
		return "", nil
	}
	span := sentry.StartSpan(ctx, "[DB] Upload XLSX File")
	defer span.Finish()

	uploadResult, err := es.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     name,
		Folder:       "mf_exports",
		ResourceType: "raw",
	})
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		sentry.CaptureException(err)
		return "", fmt.Errorf("error uploading file to Cloudinary: %w", err)
	}
	span.Status = sentry.SpanStatusOK
	zap.L().Info("File uploaded to Cloudinary", zap.String("url", uploadResult.SecureURL))
	return uploadResult.SecureURL, nil
}
