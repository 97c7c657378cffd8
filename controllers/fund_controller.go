package controllers

import (
	"net/http"

	"mfanalytics/services"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

type FundControllerI interface {
	Search(ctx *gin.Context)
	History(ctx *gin.Context)
	RefreshUniverse(ctx *gin.Context)
}

type fundController struct {
	universe services.UniverseServiceI
	analysis services.AnalysisServiceI
}

func NewFundController(universe services.UniverseServiceI, analysis services.AnalysisServiceI) FundControllerI {
	return &fundController{universe: universe, analysis: analysis}
}

func (f *fundController) Search(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] SearchFunds", sentry.WithTransactionName("SearchFunds"))
	defer span.Finish()

	q := ctx.Query("q")
	if q == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	funds, err := f.universe.Search(q)
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, gin.H{"funds": funds, "count": len(funds)})
}

// History returns NAVs newest first, optionally limited to start/end query dates.
func (f *fundController) History(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] NavHistory", sentry.WithTransactionName("NavHistory"))
	defer span.Finish()

	spec := services.WindowSpec{Start: ctx.Query("start"), End: ctx.Query("end")}
	series, err := f.analysis.History(span.Context(), ctx.Param("code"), spec)
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, series)
}

func (f *fundController) RefreshUniverse(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] RefreshUniverse", sentry.WithTransactionName("RefreshUniverse"))
	defer span.Finish()

	if err := f.universe.Refresh(span.Context()); err != nil {
		span.Status = sentry.SpanStatusUnavailable
		sentry.CaptureException(err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, gin.H{"schemes": f.universe.Size(), "refreshedAt": f.universe.RefreshedAt()})
}
