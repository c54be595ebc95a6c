// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"factoryledger/internal/infrastructure/http/v1/handlers"
	"factoryledger/internal/infrastructure/http/v1/middleware"
	"factoryledger/internal/infrastructure/storage/postgres"
	"factoryledger/pkg/logger"
)

// RouterConfig holds the services the API exposes.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger

	// JWTValidator may be nil when no secret is configured.
	JWTValidator middleware.JWTValidator
	// AuthRequired rejects requests without a valid token.
	AuthRequired bool

	Movements handlers.MovementReader
	Adjuster  handlers.StockAdjuster
	Costs     handlers.CostService
	Statuses  handlers.StatusChanger
	Balances  handlers.BalanceService
	Bridge    handlers.CommercialBridge
	Ledger    handlers.LedgerService
	Restorer  handlers.Restorer
}

// NewRouter creates and configures the gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Recovery runs inside Trace so a panic is recorded on the request span.
	router.Use(middleware.Trace())
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	if cfg.Pool != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Pool)
		health := router.Group("/health")
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")
	if cfg.AuthRequired {
		api.Use(middleware.Auth(cfg.JWTValidator))
	} else {
		api.Use(middleware.OptionalAuth(cfg.JWTValidator))
	}
	api.Use(middleware.Notifications())

	base := handlers.NewBaseHandler()

	handlers.NewMovementHandler(base, cfg.Movements, cfg.Adjuster).RegisterRoutes(api.Group("/movements"))
	handlers.NewCostingHandler(base, cfg.Costs).RegisterRoutes(api.Group("/costing"))
	handlers.NewStatusHandler(base, cfg.Statuses).RegisterRoutes(api)
	handlers.NewFinanceHandler(base, cfg.Balances, cfg.Bridge).RegisterRoutes(api.Group("/finance"))
	handlers.NewLedgerHandler(base, cfg.Ledger).RegisterRoutes(api.Group("/ledger"))
	api.POST("/restore", handlers.NewRestoreHandler(base, cfg.Restorer).Restore)

	return router
}
