package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mfanalytics/analytics"
	"mfanalytics/services"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type compareRequest struct {
	Codes  []string            `json:"codes" validate:"required,min=1,max=20,dive,numeric"`
	Window services.WindowSpec `json:"window"`
}

type returnsRequest struct {
	Codes []string `json:"codes" validate:"required,min=1,max=20,dive,numeric"`
	Years *int     `json:"years" default:"1" validate:"required,min=1,max=10"`
}

type riskRequest struct {
	Codes        []string            `json:"codes" validate:"required,min=1,max=50,dive,numeric"`
	Window       services.WindowSpec `json:"window"`
	RiskFreeRate *float64            `json:"riskFreeRate" validate:"omitempty,gte=0,lt=1"`
}

type selectRequest struct {
	Keyword             string              `json:"keyword" validate:"required_without=Codes"`
	Codes               []string            `json:"codes" validate:"omitempty,max=200,dive,numeric"`
	Benchmark           string              `json:"benchmark" validate:"omitempty,numeric"`
	Window              services.WindowSpec `json:"window"`
	RiskFreeRate        *float64            `json:"riskFreeRate" validate:"omitempty,gte=0,lt=1"`
	MinSharpe           *float64            `json:"minSharpe" default:"0.1"`
	MinAnnualisedReturn *float64            `json:"minAnnualisedReturn" default:"6"`
	MinUpCapture        *float64            `json:"minUpCapture" default:"30"`
	MaxDownCapture      *float64            `json:"maxDownCapture" default:"100"`
	Save                bool                `json:"save"`
}

func (r selectRequest) toService() services.SelectRequest {
	return services.SelectRequest{
		Keyword:       r.Keyword,
		Codes:         r.Codes,
		BenchmarkCode: r.Benchmark,
		Window:        r.Window,
		RiskFreeRate:  r.RiskFreeRate,
		Thresholds: analytics.Thresholds{
			MinSharpe:              *r.MinSharpe,
			MinAnnualisedReturnPct: *r.MinAnnualisedReturn,
			MinUpCapturePct:        *r.MinUpCapture,
			MaxDownCapturePct:      *r.MaxDownCapture,
		},
		Save: r.Save,
	}
}

type AnalysisControllerI interface {
	CompareNAV(ctx *gin.Context)
	CompareReturns(ctx *gin.Context)
	RiskTable(ctx *gin.Context)
	RollingVolatility(ctx *gin.Context)
	SelectFunds(ctx *gin.Context)
	ExportSelection(ctx *gin.Context)
}

type analysisController struct {
	analysis services.AnalysisServiceI
	export   services.ExportServiceI
}

func NewAnalysisController(analysis services.AnalysisServiceI, export services.ExportServiceI) AnalysisControllerI {
	return &analysisController{analysis: analysis, export: export}
}

func (a *analysisController) CompareNAV(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] CompareNAV", sentry.WithTransactionName("CompareNAV"))
	defer span.Finish()

	var req compareRequest
	if err := bindRequest(ctx, &req); err != nil {
		respondError(ctx, span, err)
		return
	}
	res, err := a.analysis.CompareNAV(span.Context(), req.Codes, req.Window)
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, res)
}

func (a *analysisController) CompareReturns(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] CompareReturns", sentry.WithTransactionName("CompareReturns"))
	defer span.Finish()

	var req returnsRequest
	if err := bindRequest(ctx, &req); err != nil {
		respondError(ctx, span, err)
		return
	}
	res, err := a.analysis.CompareReturns(span.Context(), req.Codes, *req.Years)
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, res)
}

func (a *analysisController) RiskTable(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] RiskTable", sentry.WithTransactionName("RiskTable"))
	defer span.Finish()

	var req riskRequest
	if err := bindRequest(ctx, &req); err != nil {
		respondError(ctx, span, err)
		return
	}
	table, err := a.analysis.RiskTable(span.Context(), req.Codes, req.Window, req.RiskFreeRate)
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, table)
}

func (a *analysisController) RollingVolatility(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] RollingVolatility", sentry.WithTransactionName("RollingVolatility"))
	defer span.Finish()

	windowDays, err := strconv.Atoi(ctx.DefaultQuery("window", "30"))
	if err != nil || windowDays < 5 || windowDays > 120 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "window must be a number of days between 5 and 120"})
		return
	}
	report, err := a.analysis.RollingVolatility(span.Context(), ctx.Param("code"), windowDays)
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, report)
}

func (a *analysisController) selectFunds(ctx *gin.Context, span *sentry.Span) (services.SelectionResult, bool) {
	var req selectRequest
	if err := bindRequest(ctx, &req); err != nil {
		respondError(ctx, span, err)
		return services.SelectionResult{}, false
	}
	res, err := a.analysis.SelectFunds(span.Context(), req.toService())
	if err != nil {
		respondError(ctx, span, err)
		return services.SelectionResult{}, false
	}
	return res, true
}

func (a *analysisController) SelectFunds(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] SelectFunds", sentry.WithTransactionName("SelectFunds"))
	defer span.Finish()

	res, ok := a.selectFunds(ctx, span)
	if !ok {
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, res)
}

// ExportSelection runs a selection and returns it as an xlsx attachment.
// When uploads are configured the stored copy's URL is sent in X-Report-URL.
func (a *analysisController) ExportSelection(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] ExportSelection", sentry.WithTransactionName("ExportSelection"))
	defer span.Finish()

	res, ok := a.selectFunds(ctx, span)
	if !ok {
		return
	}
	data, err := a.export.SelectionWorkbook(res)
	if err != nil {
		respondError(ctx, span, err)
		return
	}

	name := fmt.Sprintf("fund-selection-%s-%s", time.Now().Format("20060102"), res.ID)
	url, err := a.export.Upload(span.Context(), name, data)
	if err != nil {
		zap.L().Error("Error uploading export", zap.String("name", name), zap.Error(err))
	}
	if url != "" {
		ctx.Header("X-Report-URL", url)
	}

	span.Status = sentry.SpanStatusOK
	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
	ctx.Data(http.StatusOK, xlsxContentType, data)
}
