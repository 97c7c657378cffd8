package routes

import (
	"mfanalytics/controllers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Controllers struct {
	Health   controllers.HealthControllerI
	Funds    controllers.FundControllerI
	Analysis controllers.AnalysisControllerI
	Holdings controllers.HoldingsControllerI
	Screens  controllers.ScreenControllerI
}

func Routes(r *gin.Engine, c Controllers) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api")

	{
		v1.GET("/keepServerRunning", c.Health.IsRunning)
		v1.GET("/ready", c.Health.Ready)
	}

	funds := v1.Group("/funds")
	{
		funds.GET("/search", c.Funds.Search)
		funds.GET("/:code/nav", c.Funds.History)
	}
	v1.POST("/universe/refresh", c.Funds.RefreshUniverse)

	analysis := v1.Group("/analysis")
	{
		analysis.POST("/compare-nav", c.Analysis.CompareNAV)
		analysis.POST("/returns", c.Analysis.CompareReturns)
		analysis.POST("/risk", c.Analysis.RiskTable)
		analysis.GET("/:code/rolling-volatility", c.Analysis.RollingVolatility)
		analysis.POST("/select", c.Analysis.SelectFunds)
		analysis.POST("/select/export", c.Analysis.ExportSelection)
	}

	holdings := v1.Group("/holdings")
	{
		holdings.GET("/search", c.Holdings.Search)
		holdings.GET("/overlap", c.Holdings.Overlap)
		holdings.GET("/:fundId/breakdown", c.Holdings.Breakdown)
		holdings.POST("/upload", c.Holdings.Upload)
	}

	screens := v1.Group("/screens")
	{
		screens.GET("", c.Screens.List)
		screens.GET("/:id", c.Screens.Get)
		screens.POST("/rescreen", c.Screens.Rescreen)
	}
}
