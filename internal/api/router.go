// Package api assembles the HTTP surface of the trading service.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trading/internal/accounts"
	"github.com/ksred/klear-trading/internal/auth"
	"github.com/ksred/klear-trading/internal/config"
	"github.com/ksred/klear-trading/internal/positions"
	"github.com/ksred/klear-trading/internal/pricing"
	"github.com/ksred/klear-trading/internal/trading"
	"github.com/ksred/klear-trading/pkg/middleware"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Server holds the router and the rate limiter whose cleanup loop the
// caller runs
type Server struct {
	Router  *gin.Engine
	Limiter *middleware.RateLimiter
}

// New wires services and routes over db
func New(cfg *config.Config, db *gorm.DB) *Server {
	authService := auth.NewService(cfg.Auth)
	tradingService := trading.NewService(db, cfg.Trading, pricing.NewOracle(cfg.Pricing))

	s := &Server{
		Router:  gin.New(),
		Limiter: middleware.NewRateLimiter(cfg.RateLimit),
	}
	s.Router.Use(gin.Recovery(), requestLogger())

	setupRoutes(s.Router, authService, s.Limiter,
		auth.NewGinHandlers(authService),
		trading.NewGinHandlers(tradingService),
		positions.NewGinHandlers(positions.NewService(db)),
		accounts.NewGinHandlers(accounts.NewService(db)),
	)
	return s
}

// requestLogger logs one line per request through zerolog
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request handled")
	}
}

// setupRoutes configures all API endpoints. Only /auth/token is public;
// everything else needs a bearer token, and position deletion needs the
// admin role.
func setupRoutes(
	router *gin.Engine,
	authService *auth.Service,
	limiter *middleware.RateLimiter,
	authHandlers *auth.GinHandlers,
	tradingHandlers *trading.GinHandlers,
	positionHandlers *positions.GinHandlers,
	accountHandlers *accounts.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth", limiter.Middleware())
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		protected := v1.Group("", middleware.JWTAuth(authService), limiter.Middleware())

		orders := protected.Group("/orders")
		{
			orders.POST("", tradingHandlers.CreateOrderHandler())
			orders.GET("/:id", tradingHandlers.GetOrderHandler())
			orders.PUT("/:id", tradingHandlers.UpdateOrderHandler())
			orders.DELETE("/:id/cancel", tradingHandlers.CancelOrderHandler())
			orders.GET("/account/:accountId", tradingHandlers.GetOrdersByAccountHandler())
			orders.GET("/account/:accountId/status/:status", tradingHandlers.GetOrdersByStatusHandler())
			orders.GET("/account/:accountId/date-range", tradingHandlers.GetOrdersByDateRangeHandler())
			orders.GET("/account/:accountId/stats", tradingHandlers.GetOrderStatsHandler())
			orders.GET("/account/:accountId/symbol/:symbol", tradingHandlers.GetOrdersBySymbolHandler())
		}

		positionRoutes := protected.Group("/positions")
		{
			positionRoutes.GET("/account/:accountId", positionHandlers.GetPositionsByAccountHandler())
			positionRoutes.POST("/account/:accountId/mark", positionHandlers.MarkPositionsHandler())
			positionRoutes.GET("/:id", positionHandlers.GetPositionHandler())
			positionRoutes.DELETE("/:id", middleware.RequireRole(auth.RoleAdmin), positionHandlers.DeletePositionHandler())
		}

		accountRoutes := protected.Group("/accounts")
		{
			accountRoutes.POST("", accountHandlers.OpenAccountHandler())
			accountRoutes.GET("/:id", accountHandlers.GetAccountHandler())
			accountRoutes.GET("/user/:userId", accountHandlers.GetAccountsByUserHandler())
			accountRoutes.PUT("/:id", accountHandlers.UpdateAccountHandler())
			accountRoutes.DELETE("/:id", accountHandlers.DeleteAccountHandler())
		}
	}
}
