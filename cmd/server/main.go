package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/erp/returns/docs"
	"github.com/erp/returns/internal/application/returns"
	"github.com/erp/returns/internal/domain/finance"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/infrastructure/cache"
	"github.com/erp/returns/internal/infrastructure/config"
	"github.com/erp/returns/internal/infrastructure/event"
	"github.com/erp/returns/internal/infrastructure/lock"
	"github.com/erp/returns/internal/infrastructure/logger"
	"github.com/erp/returns/internal/infrastructure/persistence"
	"github.com/erp/returns/internal/infrastructure/resilience"
	"github.com/erp/returns/internal/infrastructure/scheduler"
	"github.com/erp/returns/internal/infrastructure/telemetry"
	"github.com/erp/returns/internal/interfaces/http/handler"
	"github.com/erp/returns/internal/interfaces/http/middleware"
	"github.com/erp/returns/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Return Service API
//	@version		1.0
//	@description	Sales and purchase return lifecycle: drafts, confirmation, cancellation, stock movements, party ledgers and reconciliation.

//	@host		localhost:8080
//	@BasePath	/api/v1

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

	ctx := context.Background()
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	// Telemetry providers. Each is a no-op when disabled.
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = lp.Bridge(log, parseLevel(cfg.Log.Level))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileTypes:      cfg.Profiling.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Profiling.Enabled && cfg.Profiling.SpanProfiles {
		if err := tp.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link profiles to spans", zap.Error(err))
		}
	}

	log.Info("Starting return transaction service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database with zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log).RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, mp, telemetry.DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}

	// Repositories
	returnRepo := persistence.NewGormReturnRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	stores := persistence.NewGormStockStores(db.DB)
	var ledger finance.LedgerStore = persistence.NewGormLedgerRepository(db.DB)
	if cfg.Breaker.Enabled {
		ledger = resilience.NewBreakerLedgerStore(ledger, cfg.Breaker, log)
	}

	returnMetrics, err := telemetry.NewReturnMetrics(mp.Meter("returns"))
	if err != nil {
		log.Fatal("Failed to create return metrics", zap.Error(err))
	}

	// Application services
	adjuster := returns.NewInventoryAdjuster(stores, movementRepo, log)
	adjuster.SetMaxSwapAttempts(cfg.Inventory.MaxSwapAttempts)
	adjuster.SetMetrics(returnMetrics)
	validator := returns.NewValidationService(returnRepo, invoiceRepo, adjuster, log)
	bridge := returns.NewFinancialBridge(ledger, log)
	processing := returns.NewProcessingService(returnRepo, validator, adjuster, bridge, log)
	processing.SetMetrics(returnMetrics)
	drafts := returns.NewDraftService(returnRepo, invoiceRepo, validator, log)
	reconciliation := returns.NewReconciliationService(returnRepo, ledger, bridge, log, returnMetrics)
	reconciliation.SetSettleWindow(cfg.Reconciliation.SettleWindow)

	// Redis backs the transition lock and event deduplication
	var redisClient *redis.Client
	if cfg.Lock.Enabled || cfg.Kafka.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis is not reachable, locks and deduplication degrade", zap.Error(err))
		}
		cancel()
	}

	var locker *lock.RedisTransitionLocker
	if cfg.Lock.Enabled {
		locker = lock.NewRedisTransitionLocker(redisClient, cfg.Lock, log)
		processing.SetTransitionLocker(locker)
		reconciliation.SetTransitionLocker(locker)
	}

	// Event bus with optional Kafka forwarding
	bus := event.NewInMemoryEventBus(log)
	var forwarder *event.KafkaForwarder
	if cfg.Kafka.Enabled() {
		forwarder = event.NewKafkaForwarder(event.NewKafkaWriter(cfg.Kafka), event.NewEventSerializer(), log)
		var store shared.IdempotencyStore = cache.NewRedisIdempotencyStore(redisClient, cache.DefaultIdempotencyPrefix)
		bus.Subscribe(event.NewDedupHandler(forwarder, store, cfg.Kafka.DedupWindow, log))
		log.Info("Forwarding return events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	processing.SetEventPublisher(bus)

	// Periodic reconciliation
	var job *scheduler.ReconciliationJob
	if cfg.Reconciliation.Enabled {
		opts := []scheduler.JobOption{scheduler.WithRunRecorder(returnMetrics)}
		if locker != nil {
			opts = append(opts, scheduler.WithLocker(locker))
		}
		job, err = scheduler.NewReconciliationJob(scheduler.JobConfigFrom(cfg.Reconciliation), reconciliation, log, opts...)
		if err != nil {
			log.Fatal("Failed to create reconciliation job", zap.Error(err))
		}
		if err := job.Start(ctx); err != nil {
			log.Fatal("Failed to start reconciliation job", zap.Error(err))
		}
	}

	// HTTP
	engine, err := router.New(router.Handlers{
		Returns:        handler.NewReturnHandler(drafts, validator, processing, returnRepo, movementRepo),
		Parties:        handler.NewPartyHandler(ledger),
		Reconciliation: handler.NewReconciliationHandler(reconciliation, cfg.Reconciliation.Timeout),
		System:         handler.NewSystemHandler(cfg.App.Name, version, db),
	}, router.Options{
		ServiceName:    serviceName,
		Logger:         log,
		TracingEnabled: tp.IsEnabled(),
		MeterProvider:  mp,
		Profiling: func() middleware.ProfilingConfig {
			pc := middleware.DefaultProfilingConfig()
			pc.Enabled = profiler.IsEnabled()
			return pc
		}(),
		CORS:           middleware.DefaultCORSConfig(),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Swagger: middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		},
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if job != nil {
		if err := job.Stop(shutdownCtx); err != nil {
			log.Warn("Reconciliation job did not stop cleanly", zap.Error(err))
		}
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Error stopping event bus", zap.Error(err))
	}
	if forwarder != nil {
		if err := forwarder.Close(); err != nil {
			log.Warn("Error closing Kafka writer", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("Error closing redis client", zap.Error(err))
		}
	}
	if dbMetrics != nil {
		dbMetrics.Stop()
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := lp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}
