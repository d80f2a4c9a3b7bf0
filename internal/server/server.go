package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cutoutlab/bg-removal-service/config"
	"github.com/cutoutlab/bg-removal-service/internal/handler"
)

// New builds the gin engine with recovery, request logging, CORS and the
// relay's routes. Panics anywhere below become a generic 500 instead of
// killing the process.
func New(cfg *config.Config, h *handler.Handler, logger *slog.Logger) *gin.Engine {
	gin.SetMode(cfg.Server.GinMode)

	engine := gin.New()
	engine.Use(recoveryMiddleware(logger))
	engine.Use(loggingMiddleware(logger))
	engine.Use(cors.New(corsConfig(cfg)))

	engine.GET("/", h.Status)

	api := engine.Group("/api")
	api.GET("/health", h.Health)
	api.POST("/remove-bg", h.RemoveBackground)

	engine.NoRoute(h.NotFound)

	return engine
}

// Start runs the engine on the configured address, blocking until the
// listener fails.
func Start(cfg *config.Config, engine *gin.Engine) error {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return engine.Run(addr)
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// Outside production any origin may call the relay, which keeps local
	// frontends working without extra configuration.
	if !cfg.IsProduction() {
		corsCfg.AllowOriginFunc = func(origin string) bool { return true }
	}

	return corsCfg
}

func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func recoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", "panic", recovered, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
		})
	})
}
