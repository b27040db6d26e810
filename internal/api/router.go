package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/coin-tracker/internal/api/handlers"
	"github.com/thanhnp/coin-tracker/internal/api/middleware"
	"github.com/thanhnp/coin-tracker/internal/auth"
	"github.com/thanhnp/coin-tracker/internal/balance"
	"github.com/thanhnp/coin-tracker/internal/metrics"
	"github.com/thanhnp/coin-tracker/internal/registry"
	"github.com/thanhnp/coin-tracker/internal/sync"
)

// Router wraps the Gin router with handlers
type Router struct {
	engine           *gin.Engine
	auth             *auth.Service
	userHandler      *handlers.UserHandler
	addressHandler   *handlers.AddressHandler
	portfolioHandler *handlers.PortfolioHandler
	log              *slog.Logger
}

// NewRouter creates a new Router with all handlers
func NewRouter(
	authService *auth.Service,
	reg *registry.Registry,
	syncer *sync.Synchronizer,
	agg *balance.Aggregator,
	scheduler handlers.Scheduler,
	readLimit int,
	logger *slog.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:           gin.New(),
		auth:             authService,
		userHandler:      handlers.NewUserHandler(authService),
		addressHandler:   handlers.NewAddressHandler(reg, syncer, scheduler, readLimit, logger),
		portfolioHandler: handlers.NewPortfolioHandler(reg, agg),
		log:              logger,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// setupMiddleware configures middleware
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery(r.log))
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger(r.log))
	r.engine.Use(middleware.Metrics())
	r.engine.Use(middleware.CORS())
}

// setupRoutes configures API routes
func (r *Router) setupRoutes() {
	// Health check
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.engine.Group("/api/v1")
	v1.POST("/users", r.userHandler.Register)

	authed := v1.Group("")
	authed.Use(middleware.BasicAuth(r.auth))
	{
		// Address routes
		addresses := authed.Group("/addresses")
		{
			addresses.GET("", r.addressHandler.List)
			addresses.POST("", r.addressHandler.Add)
			addresses.DELETE("/:address", r.addressHandler.Remove)
			addresses.POST("/:address/sync", r.addressHandler.Sync)
			addresses.GET("/:address/transactions", r.addressHandler.GetTransactions)
		}

		// Aggregated views
		authed.GET("/transactions", r.portfolioHandler.Transactions)
		authed.GET("/balances", r.portfolioHandler.Balances)
		authed.GET("/portfolio", r.portfolioHandler.Portfolio)
	}
}

// Engine returns the underlying Gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
