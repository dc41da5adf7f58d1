package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/docsync/internal/middleware"
)

// SetupRoutes configures the application routes. Global middleware (logging,
// recovery, CORS) is expected to be applied to router before this call.
// A nil authMW leaves the API open; a nil metrics handler skips /metrics.
func SetupRoutes(
	router *gin.Engine,
	registry *Registry,
	logger *zap.Logger,
	authMW *middleware.AuthMiddleware,
	metrics http.Handler,
) {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := NewCollectionHandler(registry, logger)

	apiV1 := router.Group("/api/v1")
	if authMW != nil {
		apiV1.Use(authMW.VerifyToken())
	}
	{
		collections := apiV1.Group("/collections")
		collections.GET("", handler.ListCollections)
		collections.GET("/:name", handler.GetRecords)
		collections.GET("/:name/cache", handler.GetCached)
		collections.GET("/:name/query", handler.StreamQuery)
		collections.POST("/:name", handler.CreateRecord)
		collections.DELETE("/:name/:id", handler.DeleteRecord)
		collections.GET("/:name/assets/:id", handler.GetAsset)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "collections": len(registry.Names())})
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	logger.Info("API routes configured", zap.Strings("collections", registry.Names()), zap.Bool("auth", authMW != nil))
}
