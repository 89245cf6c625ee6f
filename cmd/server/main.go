package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	valuationapp "github.com/erp/valuation/internal/application/valuation"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/erp/valuation/internal/infrastructure/cache"
	"github.com/erp/valuation/internal/infrastructure/config"
	"github.com/erp/valuation/internal/infrastructure/event"
	"github.com/erp/valuation/internal/infrastructure/logger"
	"github.com/erp/valuation/internal/infrastructure/persistence"
	"github.com/erp/valuation/internal/infrastructure/telemetry"
	"github.com/erp/valuation/internal/interfaces/http/handler"
	"github.com/erp/valuation/internal/interfaces/http/middleware"
	"github.com/erp/valuation/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	// Bootstrap logger used while the telemetry providers start
	bootLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	otelProviders, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:       serviceName,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		TracesEnabled:     cfg.Telemetry.Enabled,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsEnabled:    cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	// Application logger, mirrored to the OTLP log pipeline when enabled
	var extraCores []zapcore.Core
	if otelProviders.LogsEnabled() {
		extraCores = append(extraCores, otelProviders.ZapCore(logger.ParseLevel(cfg.Log.Level)))
	}
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, extraCores...)
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	defer func() {
		if err := otelProviders.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	log.Info("Starting valuation service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel,
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithTransientErrors(persistence.IsTransient),
	)

	// Initialize database connection with custom logger
	db, err := persistence.Open(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	if err := telemetry.InstrumentDB(db.DB, telemetry.DBTracingConfig{
		Enabled:            cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:           cfg.Database.Driver,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// SQLite has no migration files; the schema comes from the models
	if cfg.Database.Driver == config.DriverSQLite {
		if err := persistence.AutoMigrate(db.DB); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}

	// Initialize repositories
	layerRepo := persistence.NewGormCostLayerRepository(db.DB)
	consumptionRepo := persistence.NewGormConsumptionRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	productStockRepo := persistence.NewGormProductStockRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB, cfg.Valuation.LockTimeout)

	// Event bus with the audit log subscriber
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(valuationapp.NewAuditLogHandler(log))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := eventBus.Stop(stopCtx); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize application services
	valuationService := valuationapp.NewValuationService(txScope, layerRepo, ledgerRepo, log, valuationapp.ServiceConfig{
		OperationTimeout: cfg.Valuation.OperationTimeout,
		MaxRetries:       cfg.Valuation.MaxRetries,
		RetryBackoff:     cfg.Valuation.RetryBackoff,
	})
	valuationService.SetEventPublisher(eventBus)

	backfillService, err := valuationapp.NewBackfillService(productStockRepo, txScope, log, valuationapp.BackfillConfig{
		Policy:    valuation.CostPolicy(cfg.Valuation.BackfillCostPolicy),
		Reference: cfg.Valuation.BackfillReference,
	})
	if err != nil {
		log.Fatal("Invalid backfill configuration", zap.Error(err))
	}
	backfillService.SetEventPublisher(eventBus)

	reconciliationService := valuationapp.NewReconciliationService(layerRepo, consumptionRepo, ledgerRepo, log)

	if otelProviders.MetricsEnabled() {
		metrics, err := telemetry.NewValuationMetrics(otelProviders.Meter("valuation"))
		if err != nil {
			log.Fatal("Failed to create valuation metrics", zap.Error(err))
		}
		valuationService.SetMetrics(metrics)
		backfillService.SetMetrics(metrics)
	}

	healthChecks := map[string]handler.HealthCheck{
		"database": func(context.Context) error { return db.Ping() },
	}

	// Cross-process product locks
	if cfg.Valuation.DistributedLockEnabled {
		redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()
		valuationService.SetDistributedLocker(cache.NewRedisProductLocker(redisClient, cfg.Valuation.DistributedLockTTL))
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		log.Info("Distributed product locks enabled", zap.Duration("ttl", cfg.Valuation.DistributedLockTTL))
	}

	// Initialize HTTP handlers
	valuationHandler := handler.NewValuationHandler(valuationService, backfillService, reconciliationService)
	valuationHandler.RetryAfter = cfg.Valuation.RetryBackoff
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, healthChecks)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: serviceName,
		Enabled:     otelProviders.TracingEnabled(),
	}))
	engine.Use(logger.RequestLogger(log))
	engine.Use(middleware.SpanStatus())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(systemHandler.Routes())
	r.Register(valuationHandler.Routes())
	r.Setup()
	for _, rt := range r.Routes() {
		log.Debug("Route registered", zap.String("group", rt.Group), zap.String("method", rt.Method), zap.String("path", rt.Path))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
