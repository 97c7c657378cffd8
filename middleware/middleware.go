package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"mfanalytics/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// RecoveryMiddleware catches panics and prevents the server from crashing
func RecoveryMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("Panic recovered",
					zap.Any("panic", r),
					zap.String("requestId", ctx.GetString(RequestIDHeader)),
					zap.String("stack", string(debug.Stack())))
				ctx.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error. Please try again later.",
				})
				ctx.Abort()
			}
		}()
		ctx.Next()
	}
}

// RequestLogger tags each request with an id and logs it once it completes.
func RequestLogger(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		id := ctx.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		ctx.Set(RequestIDHeader, id)
		ctx.Header(RequestIDHeader, id)

		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		recorder.Since("http "+ctx.Request.Method+" "+route, start)

		fields := []zap.Field{
			zap.String("requestId", id),
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if ctx.Writer.Status() >= http.StatusInternalServerError {
			zap.L().Error("Request completed", fields...)
			return
		}
		zap.L().Info("Request completed", fields...)
	}
}
