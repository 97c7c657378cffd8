package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mfanalytics/analytics"
	"mfanalytics/clients/http_client"
	"mfanalytics/services"
	"mfanalytics/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUniverse struct {
	funds []analytics.FundIdentity
	err   error
}

func (f *fakeUniverse) Init(ctx context.Context) error    { return f.err }
func (f *fakeUniverse) Refresh(ctx context.Context) error { return f.err }
func (f *fakeUniverse) Lookup(code string) (analytics.FundIdentity, bool) {
	for _, fund := range f.funds {
		if fund.Code == code {
			return fund, true
		}
	}
	return analytics.FundIdentity{}, false
}
func (f *fakeUniverse) Search(keyword string) ([]analytics.FundIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.funds, nil
}
func (f *fakeUniverse) Size() int              { return len(f.funds) }
func (f *fakeUniverse) RefreshedAt() time.Time { return time.Time{} }

type fakeAnalysis struct {
	lastSelect services.SelectRequest
	lastCodes  []string
	lastYears  int
	lastRF     *float64
	lastWindow int
	err        error
}

func (f *fakeAnalysis) History(ctx context.Context, code string, spec services.WindowSpec) (analytics.NavSeries, error) {
	if f.err != nil {
		return analytics.NavSeries{}, f.err
	}
	return analytics.NavSeries{Fund: analytics.FundIdentity{Code: code}}, nil
}

func (f *fakeAnalysis) CompareNAV(ctx context.Context, codes []string, spec services.WindowSpec) (services.NavComparisonResult, error) {
	f.lastCodes = codes
	return services.NavComparisonResult{}, f.err
}

func (f *fakeAnalysis) CompareReturns(ctx context.Context, codes []string, years int) (analytics.ReturnComparison, error) {
	f.lastCodes, f.lastYears = codes, years
	return analytics.ReturnComparison{Years: years}, f.err
}

func (f *fakeAnalysis) RiskTable(ctx context.Context, codes []string, spec services.WindowSpec, rf *float64) (analytics.Table, error) {
	f.lastCodes, f.lastRF = codes, rf
	return analytics.Table{Rows: []analytics.FundMetrics{}}, f.err
}

func (f *fakeAnalysis) RollingVolatility(ctx context.Context, code string, windowDays int) (services.RollingVolatilityReport, error) {
	f.lastWindow = windowDays
	return services.RollingVolatilityReport{WindowDays: windowDays}, f.err
}

func (f *fakeAnalysis) SelectFunds(ctx context.Context, req services.SelectRequest) (services.SelectionResult, error) {
	f.lastSelect = req
	if f.err != nil {
		return services.SelectionResult{}, f.err
	}
	return services.SelectionResult{ID: "sel-1", Keyword: req.Keyword, Thresholds: req.Thresholds}, nil
}

type fakeExport struct {
	url string
}

func (f *fakeExport) SelectionWorkbook(result services.SelectionResult) ([]byte, error) {
	return []byte("xlsx:" + result.ID), nil
}

func (f *fakeExport) Upload(ctx context.Context, name string, data []byte) (string, error) {
	return f.url, nil
}

type fakeHoldingsService struct {
	uploaded []string
	err      error
}

func (f *fakeHoldingsService) Search(ctx context.Context, term string) ([]types.HoldingsFund, error) {
	return []types.HoldingsFund{{ID: "F1", Name: term}}, f.err
}

func (f *fakeHoldingsService) Breakdown(ctx context.Context, fundID string) (services.HoldingsReport, error) {
	return services.HoldingsReport{Fund: fundID}, f.err
}

func (f *fakeHoldingsService) Overlap(ctx context.Context, a, b string) (services.OverlapReport, error) {
	return services.OverlapReport{FundA: a, FundB: b}, f.err
}

func (f *fakeHoldingsService) BreakdownFromFile(ctx context.Context, file services.Upload) (services.HoldingsReport, error) {
	body, _ := io.ReadAll(file.Reader)
	f.uploaded = append(f.uploaded, file.Name+"="+string(body))
	return services.HoldingsReport{Fund: file.Name}, f.err
}

func (f *fakeHoldingsService) OverlapFromFiles(ctx context.Context, a, b services.Upload) (services.OverlapReport, error) {
	f.uploaded = append(f.uploaded, a.Name, b.Name)
	return services.OverlapReport{FundA: a.Name, FundB: b.Name}, f.err
}

func do(t *testing.T, method, path string, handler gin.HandlerFunc, route string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.Handle(method, route, handler)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{fmt.Errorf("%w: bad", analytics.ErrInvalidRequest), http.StatusBadRequest},
		{services.ErrUnsupportedFile, http.StatusBadRequest},
		{&http_client.StatusError{URL: "x", StatusCode: 404}, http.StatusNotFound},
		{&services.FetchError{Code: "1", Err: &http_client.StatusError{URL: "x", StatusCode: 404}}, http.StatusNotFound},
		{services.ErrScreenNotFound, http.StatusNotFound},
		{fmt.Errorf("volatility: %w", analytics.ErrInsufficientData), http.StatusUnprocessableEntity},
		{analytics.ErrJoinMismatch, http.StatusUnprocessableEntity},
		{services.ErrUniverseNotReady, http.StatusServiceUnavailable},
		{services.ErrHoldingsUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: 147666", services.ErrBenchmarkUnavailable), http.StatusBadGateway},
		{&services.FetchError{Code: "1", Err: errors.New("timeout")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusFor(tt.err), tt.err.Error())
	}
}

func TestFundController_Search(t *testing.T) {
	universe := &fakeUniverse{funds: []analytics.FundIdentity{{Code: "1", Name: "Alpha Flexi Cap"}}}
	c := NewFundController(universe, &fakeAnalysis{})

	w := do(t, http.MethodGet, "/funds/search?q=flexi", c.Search, "/funds/search", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alpha Flexi Cap")

	w = do(t, http.MethodGet, "/funds/search", c.Search, "/funds/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	universe.err = services.ErrUniverseNotReady
	w = do(t, http.MethodGet, "/funds/search?q=flexi", c.Search, "/funds/search", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFundController_History(t *testing.T) {
	analysis := &fakeAnalysis{}
	c := NewFundController(&fakeUniverse{}, analysis)

	w := do(t, http.MethodGet, "/funds/120503/nav", c.History, "/funds/:code/nav", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "120503")

	analysis.err = &services.FetchError{Code: "9", Err: &http_client.StatusError{URL: "x", StatusCode: 404}}
	w = do(t, http.MethodGet, "/funds/9/nav", c.History, "/funds/:code/nav", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthController_Ready(t *testing.T) {
	universe := &fakeUniverse{}
	c := NewHealthController(universe)

	w := do(t, http.MethodGet, "/ready", c.Ready, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	universe.funds = []analytics.FundIdentity{{Code: "1"}}
	w = do(t, http.MethodGet, "/ready", c.Ready, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalysisController_ReturnsDefaultsYears(t *testing.T) {
	analysis := &fakeAnalysis{}
	c := NewAnalysisController(analysis, &fakeExport{})

	w := do(t, http.MethodPost, "/returns", c.CompareReturns, "/returns", gin.H{"codes": []string{"1", "2"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, analysis.lastYears)
	assert.Equal(t, []string{"1", "2"}, analysis.lastCodes)

	w = do(t, http.MethodPost, "/returns", c.CompareReturns, "/returns", gin.H{"codes": []string{"1"}, "years": 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, analysis.lastYears)
}

func TestAnalysisController_ReturnsRejectsZeroYears(t *testing.T) {
	analysis := &fakeAnalysis{}
	c := NewAnalysisController(analysis, &fakeExport{})

	for _, years := range []int{0, -1, 11} {
		w := do(t, http.MethodPost, "/returns", c.CompareReturns, "/returns", gin.H{"codes": []string{"1"}, "years": years})
		assert.Equal(t, http.StatusBadRequest, w.Code, "years %d", years)
	}
	assert.Nil(t, analysis.lastCodes)
}

func TestAnalysisController_Validation(t *testing.T) {
	c := NewAnalysisController(&fakeAnalysis{}, &fakeExport{})

	w := do(t, http.MethodPost, "/risk", c.RiskTable, "/risk", gin.H{"codes": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, http.MethodPost, "/risk", c.RiskTable, "/risk", gin.H{"codes": []string{"abc"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, http.MethodPost, "/risk", c.RiskTable, "/risk", gin.H{
		"codes":  []string{"1"},
		"window": gin.H{"start": "01-01-2024"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, http.MethodPost, "/select", c.SelectFunds, "/select", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalysisController_RiskPassesRate(t *testing.T) {
	analysis := &fakeAnalysis{}
	c := NewAnalysisController(analysis, &fakeExport{})

	w := do(t, http.MethodPost, "/risk", c.RiskTable, "/risk", gin.H{"codes": []string{"1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, analysis.lastRF)

	w = do(t, http.MethodPost, "/risk", c.RiskTable, "/risk", gin.H{"codes": []string{"1"}, "riskFreeRate": 0.04})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, analysis.lastRF)
	assert.Equal(t, 0.04, *analysis.lastRF)
}

func TestAnalysisController_RollingVolatilityWindow(t *testing.T) {
	analysis := &fakeAnalysis{}
	c := NewAnalysisController(analysis, &fakeExport{})
	route := "/analysis/:code/rolling-volatility"

	w := do(t, http.MethodGet, "/analysis/1/rolling-volatility", c.RollingVolatility, route, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 30, analysis.lastWindow)

	w = do(t, http.MethodGet, "/analysis/1/rolling-volatility?window=60", c.RollingVolatility, route, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 60, analysis.lastWindow)

	for _, bad := range []string{"4", "121", "x"} {
		w = do(t, http.MethodGet, "/analysis/1/rolling-volatility?window="+bad, c.RollingVolatility, route, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestAnalysisController_SelectThresholdDefaults(t *testing.T) {
	analysis := &fakeAnalysis{}
	c := NewAnalysisController(analysis, &fakeExport{})

	w := do(t, http.MethodPost, "/select", c.SelectFunds, "/select", gin.H{"keyword": "flexi cap"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, analytics.DefaultThresholds(), analysis.lastSelect.Thresholds)
	assert.Equal(t, "flexi cap", analysis.lastSelect.Keyword)

	w = do(t, http.MethodPost, "/select", c.SelectFunds, "/select", gin.H{
		"keyword":        "flexi cap",
		"minSharpe":      0,
		"maxDownCapture": 90,
		"save":           true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, analysis.lastSelect.Thresholds.MinSharpe)
	assert.Equal(t, 90.0, analysis.lastSelect.Thresholds.MaxDownCapturePct)
	assert.Equal(t, 6.0, analysis.lastSelect.Thresholds.MinAnnualisedReturnPct)
	assert.True(t, analysis.lastSelect.Save)
}

func TestAnalysisController_SelectBenchmarkFailure(t *testing.T) {
	analysis := &fakeAnalysis{err: fmt.Errorf("%w: 147666", services.ErrBenchmarkUnavailable)}
	c := NewAnalysisController(analysis, &fakeExport{})

	w := do(t, http.MethodPost, "/select", c.SelectFunds, "/select", gin.H{"keyword": "flexi"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAnalysisController_Export(t *testing.T) {
	c := NewAnalysisController(&fakeAnalysis{}, &fakeExport{url: "https://cdn.example/report.xlsx"})

	w := do(t, http.MethodPost, "/select/export", c.ExportSelection, "/select/export", gin.H{"codes": []string{"1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sel-1.xlsx")
	assert.Equal(t, "https://cdn.example/report.xlsx", w.Header().Get("X-Report-URL"))
	assert.Equal(t, "xlsx:sel-1", w.Body.String())

	c = NewAnalysisController(&fakeAnalysis{}, &fakeExport{})
	w = do(t, http.MethodPost, "/select/export", c.ExportSelection, "/select/export", gin.H{"codes": []string{"1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Report-URL"))
}

func TestHoldingsController_Overlap(t *testing.T) {
	c := NewHoldingsController(&fakeHoldingsService{})

	w := do(t, http.MethodGet, "/overlap?a=F1&b=F2", c.Overlap, "/overlap", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fundA":"F1"`)

	w = do(t, http.MethodGet, "/overlap?a=F1", c.Overlap, "/overlap", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c = NewHoldingsController(&fakeHoldingsService{err: services.ErrHoldingsUnavailable})
	w = do(t, http.MethodGet, "/overlap?a=F1&b=F2", c.Overlap, "/overlap", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func multipartRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("contents of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHoldingsController_Upload(t *testing.T) {
	svc := &fakeHoldingsService{}
	r := gin.New()
	r.POST("/upload", NewHoldingsController(svc).Upload)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, map[string]string{"file": "fund.xlsx"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"fund.xlsx=contents of fund.xlsx"}, svc.uploaded)

	svc.uploaded = nil
	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, map[string]string{"file1": "a.xlsx", "file2": "b.html"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a.xlsx", "b.html"}, svc.uploaded)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, map[string]string{"file1": "a.xlsx"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScreenController(t *testing.T) {
	store := services.NewMemoryScreenStore()
	require.NoError(t, store.Save(context.Background(), services.SavedScreen{ID: "s1", Keyword: "flexi", CreatedAt: time.Now()}))
	analysis := &fakeAnalysis{}
	c := NewScreenController(store, analysis)

	w := do(t, http.MethodGet, "/screens/s1", c.Get, "/screens/:id", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"keyword":"flexi"`)

	w = do(t, http.MethodGet, "/screens/missing", c.Get, "/screens/:id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, http.MethodGet, "/screens?limit=0", c.List, "/screens", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, http.MethodGet, "/screens", c.List, "/screens", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = do(t, http.MethodPost, "/screens/rescreen", c.Rescreen, "/screens/rescreen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":1,"errors":0}`, w.Body.String())
	assert.Equal(t, "s1", analysis.lastSelect.ScreenID)
}
