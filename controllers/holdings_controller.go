package controllers

import (
	"net/http"

	"mfanalytics/services"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

type HoldingsControllerI interface {
	Search(ctx *gin.Context)
	Breakdown(ctx *gin.Context)
	Overlap(ctx *gin.Context)
	Upload(ctx *gin.Context)
}

type holdingsController struct {
	holdings services.HoldingsServiceI
}

func NewHoldingsController(holdings services.HoldingsServiceI) HoldingsControllerI {
	return &holdingsController{holdings: holdings}
}

func (h *holdingsController) Search(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] SearchHoldingsFunds", sentry.WithTransactionName("SearchHoldingsFunds"))
	defer span.Finish()

	q := ctx.Query("q")
	if q == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	funds, err := h.holdings.Search(span.Context(), q)
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, gin.H{"funds": funds, "count": len(funds)})
}

func (h *holdingsController) Breakdown(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] HoldingsBreakdown", sentry.WithTransactionName("HoldingsBreakdown"))
	defer span.Finish()

	report, err := h.holdings.Breakdown(span.Context(), ctx.Param("fundId"))
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, report)
}

func (h *holdingsController) Overlap(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] HoldingsOverlap", sentry.WithTransactionName("HoldingsOverlap"))
	defer span.Finish()

	a, b := ctx.Query("a"), ctx.Query("b")
	if a == "" || b == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "query parameters a and b are required"})
		return
	}
	report, err := h.holdings.Overlap(span.Context(), a, b)
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, report)
}

// Upload accepts a portfolio disclosure as "file" for a breakdown, or two
// disclosures as "file1" and "file2" for an overlap report.
func (h *holdingsController) Upload(ctx *gin.Context) {
	defer sentry.Recover()
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] UploadHoldings", sentry.WithTransactionName("UploadHoldings"))
	defer span.Finish()

	form, err := ctx.MultipartForm()
	if err != nil {
		span.Status = sentry.SpanStatusFailedPrecondition
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Error parsing form data"})
		return
	}

	if files := form.File["file"]; len(files) > 0 {
		src, err := files[0].Open()
		if err != nil {
			respondError(ctx, span, err)
			return
		}
		defer src.Close()

		report, err := h.holdings.BreakdownFromFile(span.Context(), services.Upload{Name: files[0].Filename, Reader: src})
		if err != nil {
			respondError(ctx, span, err)
			return
		}
		span.Status = sentry.SpanStatusOK
		ctx.JSON(http.StatusOK, report)
		return
	}

	files1, files2 := form.File["file1"], form.File["file2"]
	if len(files1) == 0 || len(files2) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "No files found"})
		return
	}
	srcA, err := files1[0].Open()
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	defer srcA.Close()
	srcB, err := files2[0].Open()
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	defer srcB.Close()

	report, err := h.holdings.OverlapFromFiles(span.Context(),
		services.Upload{Name: files1[0].Filename, Reader: srcA},
		services.Upload{Name: files2[0].Filename, Reader: srcB})
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, report)
}
