package routes

import (
	"net/http"

	"identityapp/internal/adapter/http/handler"
	"identityapp/internal/adapter/http/middleware"
	"identityapp/internal/core/port"
	"identityapp/internal/core/telemetry"
	"identityapp/pkg/config"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "identityapp"

// Photo uploads are capped by the service; this leaves room for multipart
// framing before gin spills to disk.
const maxMultipartMemory = 2 << 20

type HandlersConfig struct {
	AuthHandler *handler.AuthHandler
	UserHandler *handler.UserHandler
	Identity    port.IdentityService
}

func SetupRouter(handlers HandlersConfig, metrics *telemetry.AppMetrics, logger *config.Logger) *gin.Engine {
	return SetupRouterWithConfig(handlers, metrics, logger, config.GetDefaultConfig())
}

func SetupRouterWithConfig(handlers HandlersConfig, metrics *telemetry.AppMetrics, logger *config.Logger, cfg *config.AppConfig) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = maxMultipartMemory

	httpsEnforcer := config.NewHTTPSEnforcer(logger.Zap(), cfg.EnforceHTTPS)
	router.Use(httpsEnforcer.HTTPSMiddleware())

	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.CurrentMiddleware())
	router.Use(middleware.LoggingMiddleware(logger))

	if cfg.RateLimitEnabled {
		rateLimiter := config.NewRateLimiter(logger.Zap(), metrics)
		rateLimiter.ApplyConfig(cfg.RateLimitConfigs)
		router.Use(rateLimiter.RateLimitMiddleware())
	}

	if metrics != nil {
		router.Use(middleware.MetricsMiddleware(metrics))
	}

	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	setupRoutes(router, handlers)

	return router
}

// SetupRouterForTests mounts the routes without tracing, logging or rate limiting.
func SetupRouterForTests(handlers HandlersConfig) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = maxMultipartMemory

	router.Use(gin.Recovery())
	router.Use(middleware.CurrentMiddleware())
	router.Use(corsMiddleware())

	setupRoutes(router, handlers)

	return router
}

func setupRoutes(router *gin.Engine, handlers HandlersConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if handlers.AuthHandler != nil {
		public := router.Group("/")
		{
			public.POST("/register", handlers.AuthHandler.Register)
			public.POST("/login", handlers.AuthHandler.Login)
			public.DELETE("/logout", handlers.AuthHandler.Logout)
		}
	}

	if handlers.UserHandler != nil && handlers.Identity != nil {
		protected := router.Group("/users")
		protected.Use(middleware.SessionMiddleware(handlers.Identity))
		{
			protected.GET("/:id", handlers.UserHandler.GetProfile)
			protected.PUT("/:id", handlers.UserHandler.UpdateProfile)
			protected.POST("/:id/photo", handlers.UserHandler.ReplacePhoto)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
