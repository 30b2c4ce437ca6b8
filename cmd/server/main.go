package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appinv "github.com/commerce/backend/internal/application/inventory"
	"github.com/commerce/backend/internal/domain/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"github.com/commerce/backend/internal/infrastructure/cache"
	"github.com/commerce/backend/internal/infrastructure/config"
	"github.com/commerce/backend/internal/infrastructure/event"
	"github.com/commerce/backend/internal/infrastructure/logger"
	"github.com/commerce/backend/internal/infrastructure/persistence"
	"github.com/commerce/backend/internal/infrastructure/scheduler"
	"github.com/commerce/backend/internal/infrastructure/telemetry"
	"github.com/commerce/backend/internal/interfaces/http/handler"
	"github.com/commerce/backend/internal/interfaces/http/middleware"
	"github.com/commerce/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting inventory service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize OpenTelemetry tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize OpenTelemetry metrics
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Database query tracing
	if cfg.Telemetry.DBTraceEnabled && tracerProvider.IsEnabled() {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err := dbTracing.Register(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Periodic ledger gauges (stock levels, lot counts) plus the movement,
	// allocation, and retry counters the services report through
	var ledgerMetrics *telemetry.LedgerMetrics
	if meterProvider.IsEnabled() {
		lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter:    meterProvider.Meter("inventory.ledger"),
			Logger:   log,
			Provider: telemetry.NewGormStockMetricsProvider(db.DB),
		})
		if err != nil {
			log.Warn("Failed to initialize ledger metrics", zap.Error(err))
		} else {
			lm.StartPeriodicCollection(context.Background(), 5*time.Minute)
			defer lm.Stop()
			ledgerMetrics = lm
		}
	}

	// Initialize repositories
	recordRepo := persistence.NewGormInventoryRecordRepository(db.DB)
	lotRepo := persistence.NewGormLotRepository(db.DB)
	movementRepo := persistence.NewGormStockMovementRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Initialize application services
	strategy := inventory.NewAllocationStrategy(inventory.AllocationStrategyType(cfg.Allocation.Strategy))
	ledgerService := appinv.NewLedgerService(recordRepo, txScope)
	ledgerService.SetMaxRetries(cfg.Allocation.MaxRetries)
	lotService := appinv.NewLotService(lotRepo, txScope, strategy, log)
	lotService.SetMaxRetries(cfg.Allocation.MaxRetries)
	if ledgerMetrics != nil {
		ledgerService.SetInstrumentation(ledgerMetrics)
		lotService.SetInstrumentation(ledgerMetrics)
	}
	auditService := appinv.NewAuditTrailService(movementRepo, recordRepo, txScope, log)
	log.Info("Allocation strategy configured", zap.String("strategy", strategy.Name()))

	// Idempotency store for business event deduplication
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := storeFactory.CreateStore(cfg.Idempotency.Backend)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Transaction coordinator for order-lifecycle and warehouse events
	coordinator := appinv.NewTransactionCoordinator(ledgerService, lotService, idempotencyStore, log)
	coordinator.SetIdempotencyConfig(shared.IdempotencyConfig{
		Enabled: cfg.Idempotency.Enabled,
		TTL:     cfg.Idempotency.TTL,
	})

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	// Low-stock and reorder alerts, deduplicated per event
	lowStockHandler := appinv.NewLowStockHandler(log).
		WithNotifier(appinv.NewLoggingStockAlertNotifier(log))
	eventBus.Subscribe(event.NewIdempotentHandler(lowStockHandler, idempotencyStore, log))
	log.Info("Event handlers registered",
		zap.Strings("low_stock_events", lowStockHandler.EventTypes()),
	)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	ledgerService.SetEventPublisher(eventBus)
	lotService.SetEventPublisher(eventBus)

	// Background maintenance: expiry write-offs and ledger reconciliation
	if cfg.Scheduler.Enabled {
		maintenance := scheduler.NewStockMaintenanceScheduler(
			lotService, auditService, ledgerService, log,
			scheduler.Config{
				Enabled:                cfg.Scheduler.Enabled,
				ExpirySweepInterval:    cfg.Scheduler.ExpirySweepInterval,
				ReconciliationEnabled:  cfg.Scheduler.ReconciliationEnabled,
				ReconciliationInterval: cfg.Scheduler.ReconciliationInterval,
				JobTimeout:             cfg.Scheduler.JobTimeout,
			})
		if err := maintenance.Start(context.Background()); err != nil {
			log.Fatal("Failed to start maintenance scheduler", zap.Error(err))
		}
		defer func() {
			if err := maintenance.Stop(context.Background()); err != nil {
				log.Error("Error stopping maintenance scheduler", zap.Error(err))
			}
		}()
		log.Info("Maintenance scheduler started",
			zap.Duration("expiry_sweep_interval", cfg.Scheduler.ExpirySweepInterval),
			zap.Duration("reconciliation_interval", cfg.Scheduler.ReconciliationInterval),
		)
	}

	// Initialize HTTP handlers
	stockHandler := handler.NewStockLedgerHandler(ledgerService)
	lotHandler := handler.NewLotHandler(lotService)
	movementHandler := handler.NewStockMovementHandler(auditService)
	eventHandler := handler.NewStockEventHandler(coordinator)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. Metrics - Record request counters and latency
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Enabled:       cfg.Telemetry.Enabled,
	}))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Stock ledger: per-SKU counters and order-lifecycle operations
	stockRoutes := router.NewDomainGroup("stock", "/stock")
	stockRoutes.GET("", stockHandler.List)
	stockRoutes.GET("/alerts/low-stock", stockHandler.ListBelowThreshold)
	stockRoutes.GET("/:sku_id", stockHandler.GetBySKU)
	stockRoutes.POST("/adjust", stockHandler.Adjust)
	stockRoutes.POST("/reserve", stockHandler.Reserve)
	stockRoutes.POST("/release", stockHandler.Release)
	stockRoutes.POST("/fulfill", lotHandler.Fulfill)
	stockRoutes.PUT("/thresholds", stockHandler.UpdateThreshold)

	// Lots: inward receipts, allocation previews, lifecycle operations
	lotRoutes := router.NewDomainGroup("lots", "/lots")
	lotRoutes.GET("", lotHandler.List)
	lotRoutes.GET("/allocation/preview", lotHandler.PreviewAllocation)
	lotRoutes.GET("/:id", lotHandler.GetByID)
	lotRoutes.POST("/receive", lotHandler.Receive)
	lotRoutes.POST("/return", lotHandler.Return)
	lotRoutes.POST("/:id/deactivate", lotHandler.Deactivate)
	lotRoutes.POST("/write-off-expired", lotHandler.WriteOffExpired)

	// Movement audit trail: query, replay, verify, reconcile
	movementRoutes := router.NewDomainGroup("stock-movements", "/stock-movements")
	movementRoutes.GET("", movementHandler.List)
	movementRoutes.GET("/reference/:reference_type/:reference_id", movementHandler.GetByReference)
	movementRoutes.GET("/replay/:sku_id", movementHandler.Replay)
	movementRoutes.GET("/verify/:sku_id", movementHandler.Verify)
	movementRoutes.POST("/reconcile/:sku_id", movementHandler.Reconcile)

	// Business events: the idempotent entry point for upstream systems
	eventRoutes := router.NewDomainGroup("stock-events", "/stock-events")
	eventRoutes.POST("", eventHandler.Apply)

	r.Register(stockRoutes).
		Register(lotRoutes).
		Register(movementRoutes).
		Register(eventRoutes)

	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
