package controllers

import (
	"net/http"

	"mfanalytics/services"

	"github.com/gin-gonic/gin"
)

type HealthControllerI interface {
	IsRunning(ctx *gin.Context)
	Ready(ctx *gin.Context)
}

type healthController struct {
	universe services.UniverseServiceI
}

func NewHealthController(universe services.UniverseServiceI) HealthControllerI {
	return &healthController{universe: universe}
}

func (h *healthController) IsRunning(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"message": "Server is running"})
}

// Ready reports whether the scheme universe has been loaded.
func (h *healthController) Ready(ctx *gin.Context) {
	size := h.universe.Size()
	if size == 0 {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "schemes": 0})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"ready":       true,
		"schemes":     size,
		"refreshedAt": h.universe.RefreshedAt(),
	})
}
