package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/tm-signals/signals_service/internal/api/handlers"
	"github.com/tm-signals/signals_service/internal/api/middleware"
	"github.com/tm-signals/signals_service/internal/infrastructure/di"
	"github.com/tm-signals/signals_service/pkg/ratelimit"
	"github.com/tm-signals/signals_service/pkg/tracing"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()
	cfg := container.Config

	// Global middleware - order matters
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware("/metrics", "/api/health"))
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimit(cfg.Server.RateLimitPerMin))

	healthHandler := handlers.NewHealthHandler(container.Health)
	marketHandler := handlers.NewMarketHandler(container.MarketData, container.Signals, container.Market, container.Logger)
	analyticsHandler := handlers.NewAnalyticsHandler(container.Analytics, container.Logger)
	paperHandler := handlers.NewPaperHandler(container.Ledger, container.Logger)
	adminHandler := handlers.NewAdminHandler(container.Scheduler)

	// Ops (no auth required)
	router.GET("/metrics", handlers.Metrics())
	router.GET("/version", handlers.VersionHandler())

	// Swagger documentation (development only)
	if !cfg.IsProduction() {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	cache := container.ResponseCache.Cache(cfg.Server.ResponseCacheDuration())

	api := router.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		// Market data passthrough
		api.GET("/tokens", cache, marketHandler.GetTokens)
		api.GET("/tokens/top", cache, marketHandler.GetTopTokens)
		api.GET("/tokens/recommended", cache, analyticsHandler.Recommended)
		api.GET("/trading-signals", cache, marketHandler.GetTradingSignals)
		api.GET("/trader-grades", cache, marketHandler.GetTraderGrades)
		api.GET("/market-metrics", cache, marketHandler.GetMarketMetrics)
		api.GET("/price", cache, marketHandler.GetPrice)
		api.POST("/ai/ask", marketHandler.AskAgent)

		// Derived signals
		api.GET("/signals/:symbol", cache, marketHandler.GetSignal)
		api.GET("/market/overview", cache, marketHandler.GetOverview)

		// Stateless portfolio analytics
		portfolio := api.Group("/portfolio")
		{
			portfolio.POST("/analyze", analyticsHandler.Analyze)
			portfolio.POST("/optimize", analyticsHandler.Optimize)
		}

		api.GET("/stream/digests", handlers.StreamDigests(container.Hub))

		// Paper trading (bearer token, subject = owner)
		paper := api.Group("/paper")
		paper.Use(
			middleware.Authentication(container.Tokens, container.Logger),
			ratelimit.Middleware(container.TradeLimiter, middleware.OwnerID, container.ZapLog),
		)
		{
			paper.POST("/portfolio", paperHandler.Create)
			paper.GET("/portfolio", paperHandler.Summary)
			paper.POST("/portfolio/reset", paperHandler.Reset)
			paper.POST("/buy", paperHandler.Buy)
			paper.POST("/sell", paperHandler.Sell)
			paper.GET("/performance", paperHandler.Performance)
			paper.GET("/transactions", paperHandler.Transactions)
		}

		admin := api.Group("/admin")
		admin.Use(
			middleware.Authentication(container.Tokens, container.Logger),
			middleware.RequireOwner(cfg.Server.AdminOwners),
		)
		{
			admin.GET("/scheduler", adminHandler.SchedulerStatus)
			admin.POST("/scheduler/run/:kind", adminHandler.RunDigest)
		}
	}

	return router
}
