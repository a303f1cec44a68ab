package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/service"
	"github.com/andreval74/xcafe/internal/storage"
	"github.com/andreval74/xcafe/internal/websocket"
	"github.com/andreval74/xcafe/pkg/config"
	"github.com/andreval74/xcafe/pkg/middleware"
)

// NewRouter wires middleware and routes. hub may be nil.
func NewRouter(cfg *config.Config, services *service.Services, store storage.Store, hub *websocket.Hub, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	handlers := NewHandlers(services, store, hub, logger)
	limiter := middleware.NewAuthRateLimiter(cfg.AuthRateLimit, logger)
	auth := middleware.AuthMiddleware(services.Credential, services.Revocation, logger)

	router.GET("/status", handlers.Status)
	router.GET("/health", handlers.Status)

	// Auth is carried in the websocket handshake, not HTTP headers
	router.GET("/ws/events", handlers.EventsWebSocket)

	// =========================================================================
	// PUBLIC ROUTES (unauthenticated)
	// =========================================================================
	public := router.Group("/api")
	{
		public.GET("/health", handlers.Health)
		public.GET("/stats", handlers.Stats)
		public.GET("/system/status", handlers.SystemStatus)
		public.POST("/auth/verify", middleware.AuthRateLimitMiddleware(limiter), handlers.Authenticate)
	}

	// =========================================================================
	// PROTECTED ROUTES (credential required)
	// =========================================================================
	protected := router.Group("/api")
	protected.Use(auth)
	{
		protected.GET("/auth/me", handlers.Me)
		protected.POST("/auth/logout", handlers.Logout)

		protected.POST("/system/setup", middleware.RequireRoles(domain.RoleFirstAdminCandidate), handlers.SetupSystem)
		protected.POST("/system/reset", middleware.RequireRoles(domain.RoleSuperAdmin), handlers.ResetSystem)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRoles(domain.AdminRoles...))
		{
			admin.GET("/list", handlers.ListAdmins)

			managers := admin.Group("")
			managers.Use(middleware.RequireRoles(domain.RoleSuperAdmin, domain.RoleAdmin))
			{
				managers.POST("/register", handlers.RegisterAdmin)
				managers.POST("/:address/active", handlers.SetAdminActive)
				managers.PUT("/:address/permissions", handlers.UpdateAdminPermissions)
			}

			admin.POST("/change-wallet", middleware.RequireRoles(domain.RoleSuperAdmin), handlers.ChangeWallet)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}
