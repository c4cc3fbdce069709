package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vendgate/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(auth *handlers.AuthHandler, alloc *handlers.AllocationHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.POST("/login", auth.Login)
	r.POST("/logout", auth.Logout)

	r.GET("/devices", alloc.ListDevices)
	r.POST("/devices/:deviceId/allocation/open", alloc.Open)
	r.GET("/devices/:deviceId/allocation", alloc.State)
	r.PUT("/devices/:deviceId/allocation/items/:productId", alloc.SetQuantity)
	r.POST("/devices/:deviceId/allocation/submit", alloc.Submit)
	r.DELETE("/devices/:deviceId/allocation", alloc.Close)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
