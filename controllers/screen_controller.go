package controllers

import (
	"net/http"
	"strconv"

	"mfanalytics/services"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

type ScreenControllerI interface {
	List(ctx *gin.Context)
	Get(ctx *gin.Context)
	Rescreen(ctx *gin.Context)
}

type screenController struct {
	store    services.ScreenStore
	analysis services.AnalysisServiceI
}

func NewScreenController(store services.ScreenStore, analysis services.AnalysisServiceI) ScreenControllerI {
	return &screenController{store: store, analysis: analysis}
}

func (s *screenController) List(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] ListScreens", sentry.WithTransactionName("ListScreens"))
	defer span.Finish()

	limit, err := strconv.ParseInt(ctx.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit < 1 || limit > 500 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}
	screens, err := s.store.List(span.Context(), limit)
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, gin.H{"screens": screens, "count": len(screens)})
}

func (s *screenController) Get(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] GetScreen", sentry.WithTransactionName("GetScreen"))
	defer span.Finish()

	screen, err := s.store.Get(span.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, span, err)
		return
	}
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, screen)
}

func (s *screenController) Rescreen(ctx *gin.Context) {
	span := sentry.StartSpan(ctx.Request.Context(), "[GIN] Rescreen", sentry.WithTransactionName("Rescreen"))
	defer span.Finish()

	summary := services.RescreenAll(span.Context(), s.store, s.analysis)
	span.Status = sentry.SpanStatusOK
	ctx.JSON(http.StatusOK, summary)
}
