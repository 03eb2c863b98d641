package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tortshark/backend/internal/api/handlers"
	"github.com/tortshark/backend/internal/api/middleware"
	"github.com/tortshark/backend/internal/auth"
	"github.com/tortshark/backend/internal/logger"
	"github.com/tortshark/backend/internal/services"
	"github.com/tortshark/backend/internal/websocket"
)

type Server struct {
	router   *gin.Engine
	services *services.Container
}

func NewServer(svc *services.Container) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(logger.GinMiddleware())
	router.Use(logger.GinRecovery())
	router.Use(middleware.CORS(svc.Config.CORSOrigin))

	server := &Server{
		router:   router,
		services: svc,
	}
	server.setupRoutes()
	return server
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	// Live sync progress for the dashboard
	s.router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(s.services.WSHub, c.Writer, c.Request)
	})

	v1 := s.router.Group("/api/v1")
	{
		// Auth routes (public)
		authGroup := v1.Group("/auth")
		{
			authHandler := handlers.NewAuthHandler(s.services)
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := v1.Group("")
		protected.Use(auth.Middleware(s.services.Auth))
		{
			// Platform connections
			connections := protected.Group("/connections")
			{
				connectionHandler := handlers.NewConnectionHandler(s.services)
				connections.GET("", connectionHandler.List)
				connections.POST("/google", connectionHandler.ConnectGoogle)
				connections.POST("/:platform/refresh", connectionHandler.Refresh)
				connections.DELETE("/:platform", connectionHandler.Revoke)
				connections.GET("/google/accounts", connectionHandler.Accounts)
			}

			// External platform campaign listings
			platforms := protected.Group("/platforms")
			{
				connectionHandler := handlers.NewConnectionHandler(s.services)
				platforms.GET("/:platform/campaigns", connectionHandler.ExternalCampaigns)
			}

			// Internal campaigns
			campaigns := protected.Group("/campaigns")
			{
				campaignHandler := handlers.NewCampaignHandler(s.services)
				campaigns.GET("", campaignHandler.List)
				campaigns.POST("", campaignHandler.Create)
				campaigns.GET("/:id", campaignHandler.Get)
				campaigns.PUT("/:id", campaignHandler.Update)
				campaigns.DELETE("/:id", campaignHandler.Delete)
				campaigns.GET("/:id/stats", campaignHandler.Stats)
				campaigns.GET("/:id/summary", campaignHandler.Summary)
				campaigns.GET("/:id/mappings", campaignHandler.Mappings)
			}

			// Mappings
			mappings := protected.Group("/mappings")
			{
				mappingHandler := handlers.NewMappingHandler(s.services)
				mappings.POST("", mappingHandler.Create)
				mappings.DELETE("/:id", mappingHandler.Unlink)
			}

			// Sync runs
			sync := protected.Group("/sync")
			{
				syncHandler := handlers.NewSyncHandler(s.services)
				sync.POST("", syncHandler.Enqueue)
				sync.POST("/backfill", syncHandler.Backfill)
				sync.POST("/spend", syncHandler.SpendNow)
				sync.GET("/runs", syncHandler.ListRuns)
				sync.GET("/runs/:id", syncHandler.GetRun)
			}

			// Case buyers
			buyers := protected.Group("/buyers")
			{
				buyerHandler := handlers.NewBuyerHandler(s.services)
				buyers.GET("", buyerHandler.List)
				buyers.GET("/waterfall", buyerHandler.Waterfall)
				buyers.POST("", buyerHandler.Create)
				buyers.PUT("/:id", buyerHandler.Update)
				buyers.DELETE("/:id", buyerHandler.Delete)
				buyers.POST("/reorder", buyerHandler.Reorder)
			}

			// Dashboard
			dashboardHandler := handlers.NewDashboardHandler(s.services)
			protected.GET("/dashboard", dashboardHandler.Overview)
			protected.GET("/leaderboard", dashboardHandler.Leaderboard)
			protected.GET("/changelog", dashboardHandler.ChangeLog)
		}
	}
}
