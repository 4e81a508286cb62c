package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/craterhub/downloads-accounting/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes (all internal, API key required)
	v1 := router.Group("/api/v1", middleware.APIKeyAuth(authCfg))
	{
		v1.POST("/downloads", handler.RecordDownload)
		v1.POST("/downloads/flush", handler.TriggerFlush)
		v1.GET("/downloads/stats", handler.GetStats)
	}
}
