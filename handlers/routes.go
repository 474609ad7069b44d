package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"go-sequence-shortener/metrics"
)

// RegisterRoutes sets up all the routes for the URL shortener service.
func RegisterRoutes(r *gin.Engine, handler URLHandlerInterface, logger *zap.Logger) {
	metrics.Init()

	r.Use(RequestIDMiddleware(), LoggerMiddleware(logger), MetricsMiddleware(), CORSMiddleware())

	// Every root-level path segment is a potential short URL.
	api := r.Group("/api")
	{
		api.GET("/metrics", gin.WrapH(promhttp.Handler()))
		api.GET("/health", handler.HealthCheck)
		api.GET("/all", handler.ListAll)
		api.POST("/shorten", handler.Shorten)
	}

	// Redirection route (not under /api as it's user-facing)
	r.GET("/:short_url", handler.RedirectURL)
}
