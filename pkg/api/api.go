// Package api exposes the sign orchestrator over HTTP with gin.
package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes registers all API endpoints on the given Gin router using ServerContext.
// Middleware for metrics and rate limiting is installed when the context carries them.
func RegisterAPIRoutes(r *gin.Engine, serverCtx *ServerContext) {
	if serverCtx.Metrics != nil {
		r.Use(serverCtx.Metrics.MetricsMiddleware())
		RegisterMetricsEndpoint(r, serverCtx.Metrics)
		serverCtx.Metrics.RecordTestMode(serverCtx.Orchestrator.TestMode())
	}
	if serverCtx.RateLimiter != nil {
		r.Use(serverCtx.RateLimiter.Middleware())
	}

	RegisterHealthEndpoints(r, serverCtx)

	r.GET("/status", StatusHandler(serverCtx))
	r.GET("/capability", CapabilityHandler(serverCtx))
	r.GET("/provider", ProviderHandler(serverCtx))
	r.GET("/algorithms", AlgorithmsHandler(serverCtx))

	r.GET("/certificates", CertificatesHandler(serverCtx))
	r.GET("/selection", GetSelectionHandler(serverCtx))
	r.PUT("/selection", PutSelectionHandler(serverCtx))
	r.POST("/selection/default", DefaultSelectionHandler(serverCtx))

	r.POST("/sign", SignHandler(serverCtx))
	r.POST("/sign/file", SignFileHandler(serverCtx))
	r.GET("/events/latest", LatestOutcomeHandler(serverCtx))

	r.GET("/test-mode", TestModeHandler(serverCtx))
	r.POST("/test-mode/toggle", ToggleTestModeHandler(serverCtx))
}
