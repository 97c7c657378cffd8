package controllers

import (
	"errors"
	"net/http"

	"mfanalytics/analytics"
	"mfanalytics/clients/http_client"
	"mfanalytics/services"

	"github.com/creasty/defaults"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

// bindRequest decodes the JSON body, fills unset fields from their default
// tags and validates the result.
func bindRequest(ctx *gin.Context, req interface{}) error {
	if err := ctx.ShouldBindJSON(req); err != nil {
		return err
	}
	if err := defaults.Set(req); err != nil {
		return err
	}
	return validate.StructCtx(ctx.Request.Context(), req)
}

func statusFor(err error) int {
	var fetchErr *services.FetchError
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs),
		errors.Is(err, analytics.ErrInvalidRequest),
		errors.Is(err, services.ErrUnsupportedFile):
		return http.StatusBadRequest
	case errors.Is(err, http_client.ErrNotFound),
		errors.Is(err, services.ErrScreenNotFound):
		return http.StatusNotFound
	case errors.Is(err, analytics.ErrInsufficientData),
		errors.Is(err, analytics.ErrDivisionByZero),
		errors.Is(err, analytics.ErrEmptyPartition),
		errors.Is(err, analytics.ErrJoinMismatch),
		errors.Is(err, analytics.ErrMalformedRecord):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrUniverseNotReady),
		errors.Is(err, services.ErrHoldingsUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrBenchmarkUnavailable),
		errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(ctx *gin.Context, span *sentry.Span, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		span.Status = sentry.SpanStatusInternalError
		sentry.CaptureException(err)
		zap.L().Error("Request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
	} else {
		span.Status = sentry.SpanStatusInvalidArgument
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}
