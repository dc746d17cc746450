package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/mvtypes-go/internal/config"
	"github.com/jengzang/mvtypes-go/internal/handler"
	"github.com/jengzang/mvtypes-go/internal/metrics"
	"github.com/jengzang/mvtypes-go/internal/middleware"
)

// SetupRouter wires the HTTP surface of the classifier
func SetupRouter(cfg *config.Config, classifyHandler *handler.ClassifyHandler, convertHandler *handler.ConvertHandler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(metrics.Middleware())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", middleware.RunIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "mvtypes classifier is running",
		})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	if cfg.JWTSecret != "" {
		api.Use(middleware.JWTAuth(cfg.JWTSecret))
	}
	{
		runs := middleware.NewRunLimiter(cfg.MaxRuns)
		api.POST("/classify", runs.Middleware(), classifyHandler.Classify)

		convert := api.Group("/convert")
		{
			convert.POST("/gpx", convertHandler.ConvertGPX)
		}
	}

	return r
}
