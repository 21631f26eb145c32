// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"shucway/internal/audits"
	"shucway/internal/catalog/supply"
	"shucway/internal/core/types"
	"shucway/internal/infrastructure/http/v1/handlers"
	"shucway/internal/infrastructure/http/v1/middleware"
	"shucway/internal/infrastructure/storage/postgres"
	"shucway/internal/kardex"
	"shucway/internal/ledger"
	"shucway/internal/receiving"
	"shucway/pkg/logger"
	"shucway/pkg/numerator"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool (health checks).
	Pool *postgres.Pool

	// TxManager drives transactions for all repositories.
	TxManager *postgres.TxManager

	// Logger for request logging.
	Logger *logger.Logger

	// TokenValidator for access token validation.
	TokenValidator middleware.TokenValidator

	// ReceiptTolerance is the allowed over-receipt slack per order line.
	ReceiptTolerance types.Quantity
}

// NewRouter creates and configures the gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters).
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Repositories.
	supplyRepo := postgres.NewSupplyRepo(cfg.TxManager)
	ledgerRepo := postgres.NewLedgerRepo(cfg.TxManager, supplyRepo)
	receivingRepo := postgres.NewReceivingRepo(cfg.TxManager)
	auditRepo := postgres.NewAuditRepo(cfg.TxManager)
	kardexRepo := postgres.NewKardexRepo(cfg.TxManager, supplyRepo)

	// Services.
	num := numerator.New(postgres.NewNumeratorQuerier(cfg.TxManager))
	oplog, err := postgres.NewOperationLog(cfg.TxManager)
	if err != nil {
		// zstd encoder creation fails only on invalid options
		panic(err)
	}

	supplyService := supply.NewService(supplyRepo, cfg.TxManager)
	ledgerService := ledger.NewService(ledgerRepo, cfg.TxManager)
	receivingService := receiving.NewService(receivingRepo, ledgerService, cfg.TxManager, num, oplog,
		receiving.Config{Tolerance: cfg.ReceiptTolerance})
	auditsService := audits.NewService(auditRepo, supplyRepo, ledgerService, cfg.TxManager, num)
	kardexService := kardex.NewService(kardexRepo, cfg.TxManager)

	// Handlers.
	base := handlers.NewBaseHandler()
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	supplyHandler := handlers.NewSupplyHandler(base, supplyService, ledgerService)
	receivingHandler := handlers.NewReceivingHandler(base, receivingService)
	auditsHandler := handlers.NewAuditsHandler(base, auditsService)
	kardexHandler := handlers.NewKardexHandler(base, kardexService)

	// Health endpoints (no auth).
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Protected API.
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.TokenValidator))
	{
		supplyHandler.RegisterRoutes(api.Group("/catalog/supply-items"))
		receivingHandler.RegisterOrderRoutes(api.Group("/orders"))
		receivingHandler.RegisterReceiptRoutes(api.Group("/receipts"))
		auditsHandler.RegisterRoutes(api.Group("/audits"))
		kardexHandler.RegisterRoutes(api.Group("/kardex"))
	}

	return router
}
