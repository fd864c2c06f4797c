package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wasla/backend/internal/application/dispatch"
	appevent "github.com/wasla/backend/internal/application/event"
	"github.com/wasla/backend/internal/application/gateway"
	"github.com/wasla/backend/internal/application/pool"
	"github.com/wasla/backend/internal/application/reconcile"
	syncapp "github.com/wasla/backend/internal/application/sync"
	"github.com/wasla/backend/internal/domain/notification"
	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/infrastructure/cache"
	"github.com/wasla/backend/internal/infrastructure/config"
	"github.com/wasla/backend/internal/infrastructure/ecommerce"
	"github.com/wasla/backend/internal/infrastructure/event"
	"github.com/wasla/backend/internal/infrastructure/greenapi"
	"github.com/wasla/backend/internal/infrastructure/lane"
	"github.com/wasla/backend/internal/infrastructure/logger"
	"github.com/wasla/backend/internal/infrastructure/persistence"
	merchantdb "github.com/wasla/backend/internal/infrastructure/persistence/merchant"
	"github.com/wasla/backend/internal/infrastructure/scheduler"
	"github.com/wasla/backend/internal/infrastructure/storage"
	"github.com/wasla/backend/internal/infrastructure/telemetry"
	"github.com/wasla/backend/internal/interfaces/http/handler"
	"github.com/wasla/backend/internal/interfaces/http/middleware"
	"github.com/wasla/backend/internal/interfaces/http/router"
)

//	@title			Wasla Backend API
//	@version		1.0
//	@description	Order synchronization and WhatsApp notification dispatch for the Wasla sales agent

//	@contact.name	API Support
//	@contact.url	https://github.com/wasla/backend

//	@host		localhost:8080
//	@BasePath	/api

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

	log.Info("Starting Wasla Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Safety net: scope queries to the request's merchant when the context
	// carries one. Repositories filter explicitly, so this only catches
	// queries that forgot to.
	merchantdb.EnableAutoMerchantFilter(db.DB, false)

	// Initialize telemetry (tracing, metrics, log export)
	var meterProvider *telemetry.MeterProvider
	var businessMetrics *telemetry.BusinessMetrics
	var tracerProvider *telemetry.TracerProvider
	if cfg.Telemetry.Enabled {
		ctx := context.Background()

		var err error
		tracerProvider, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
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
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				log.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()

		meterProvider, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize meter provider", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := meterProvider.Shutdown(shutdownCtx); err != nil {
				log.Error("Error shutting down meter provider", zap.Error(err))
			}
		}()

		loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize logger provider", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
				log.Error("Error shutting down logger provider", zap.Error(err))
			}
		}()

		// Tee application logs to the collector alongside stdout.
		if loggerProvider.IsEnabled() {
			log = telemetry.NewBridgedLogger(log.Core(), telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
				ServiceName:    cfg.Telemetry.ServiceName,
				LoggerProvider: loggerProvider,
				Level:          zapcore.InfoLevel,
			}), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
		}

		businessMetrics, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:        meterProvider.Meter("wasla.business"),
			Logger:       log,
			PoolProvider: telemetry.NewGormPoolMetricsProvider(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to initialize business metrics", zap.Error(err))
		}
		businessMetrics.StartPeriodicCollection(ctx, 5*time.Minute)
		defer businessMetrics.Stop()

		if cfg.Telemetry.DBTraceEnabled {
			dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
				Enabled:         true,
				LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
				SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			}, log)
			if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
				log.Warn("Failed to register database tracing", zap.Error(err))
			}
		}

		dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("Failed to register database metrics", zap.Error(err))
		} else if dbMetrics != nil {
			dbMetrics.StartPoolStatsCollection(ctx)
			defer dbMetrics.Stop()
		}

		log.Info("Telemetry initialized",
			zap.String("collector", cfg.Telemetry.CollectorEndpoint),
			zap.Float64("sampling_ratio", cfg.Telemetry.SamplingRatio),
		)
	}

	// Continuous profiling (if enabled)
	if cfg.Telemetry.ProfilerEnabled {
		profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:           true,
			ServerAddress:     cfg.Telemetry.ProfilerServer,
			ApplicationName:   cfg.Telemetry.ServiceName,
			ProfileCPU:        true,
			ProfileInuseSpace: true,
			ProfileGoroutines: true,
		}, log)
		if err != nil {
			log.Warn("Failed to start profiler", zap.Error(err))
		} else {
			defer func() {
				if err := profiler.Stop(); err != nil {
					log.Error("Error stopping profiler", zap.Error(err))
				}
			}()
			log.Info("Profiler started", zap.String("server", cfg.Telemetry.ProfilerServer))

			// Profiler must be running before span profiles turn on.
			if tracerProvider != nil {
				if err := tracerProvider.EnableSpanProfiles(); err != nil {
					log.Warn("Failed to enable span profiles", zap.Error(err))
				}
			}
		}
	}

	// Initialize Redis for the round-robin cursor, message quota and
	// event idempotency (if enabled)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Outbox plumbing comes first so repositories can write events in the
	// same transaction as state changes
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)
	outboxPublisher := event.NewOutboxPublisher(eventSerializer)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Initialize repositories
	orderRepo := persistence.NewGormOrderRepositoryWithOutbox(db.DB, outboxPublisher)
	statusEventRepo := persistence.NewGormStatusEventRepository(db.DB)
	webhookEventRepo := persistence.NewGormWebhookEventRepository(db.DB)
	instanceRepo := persistence.NewGormInstanceRepositoryWithOutbox(db.DB, outboxPublisher)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)
	syncRunRepo := persistence.NewGormSyncRunRepository(db.DB)

	// Source adapter registry
	registry := ecommerce.NewRegistry()
	registry.Register(ecommerce.NewWooCommerceAdapter(30 * time.Second))
	registry.Register(ecommerce.NewZidAdapter(30 * time.Second))
	registry.Register(ecommerce.NewCalendlyAdapter(30 * time.Second))

	// Green API gateway
	gatewayClient := greenapi.NewClient(cfg.GreenAPI.RequestTimeout)

	// Per-order serialization lanes; the webhook and pull paths converge on
	// the reconciler, so one merchant's orders never reconcile concurrently.
	// The sync service keeps its own run lanes internally.
	lanes := lane.NewManager(256)

	// Application services
	reconcileService := reconcile.NewService(orderRepo, statusEventRepo, lanes, log)
	webhookService := gateway.NewWebhookService(registry, webhookEventRepo, reconcileService, log)
	syncService := syncapp.NewService(registry, syncRunRepo, reconcileService, log)

	poolService := pool.NewService(instanceRepo, gatewayClient, log)
	if redisClient != nil {
		poolService.SetCursor(cache.NewRedisRoundRobinCursor(redisClient))
	}

	var quota notification.Quota
	if redisClient != nil {
		quota = cache.NewRedisQuota(redisClient, cfg.Notification.QuotaPerMonth)
	} else {
		quota = cache.NewInMemoryQuota(cfg.Notification.QuotaPerMonth)
	}
	dispatchService := dispatch.NewService(notificationRepo, poolService, gatewayClient, quota, dispatch.RetryPolicy{
		MaxAttempts: cfg.Notification.MaxAttempts,
		BackoffBase: cfg.Notification.BackoffBase,
		BackoffCap:  cfg.Notification.BackoffCap,
	}, log)

	outboxService := appevent.NewService(outboxRepo, log)

	// Raw webhook payload archive (if enabled)
	if cfg.Storage.Enabled {
		archive, err := storage.NewS3PayloadArchive(&cfg.Storage)
		if err != nil {
			log.Fatal("Failed to initialize payload archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(context.Background()); err != nil {
			log.Warn("Failed to ensure archive bucket", zap.Error(err))
		}
		webhookService.SetPayloadArchive(archive)
		log.Info("Payload archive enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	// Initialize event bus and subscribe the notification trigger. The
	// handler is wrapped so a redelivered event cannot message the
	// customer twice.
	eventBus := event.NewInMemoryEventBus(log)
	reconcileService.SetEventPublisher(eventBus)

	templates := notification.NewRegistry()
	orderEventHandler := dispatch.NewOrderEventHandler(notificationRepo, dispatchService, templates,
		storeNameResolver(cfg), log)

	idempotencyFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	var idempotencyStore shared.IdempotencyStore
	if cfg.Redis.Enabled {
		idempotencyStore, err = idempotencyFactory.CreateStore()
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
	} else {
		idempotencyStore = idempotencyFactory.CreateInMemoryStore()
	}
	eventBus.Subscribe(event.NewIdempotentHandler(orderEventHandler, idempotencyStore, log))

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()
	log.Info("Event bus started")

	// Initialize and start outbox processor for guaranteed event delivery
	if cfg.Event.ProcessorEnabled {
		outboxProcessorConfig := event.DefaultOutboxProcessorConfig()
		if cfg.Event.BatchSize > 0 {
			outboxProcessorConfig.BatchSize = cfg.Event.BatchSize
		}
		if cfg.Event.PollInterval > 0 {
			outboxProcessorConfig.PollInterval = cfg.Event.PollInterval
		}
		outboxProcessorConfig.CleanupEnabled = cfg.Event.CleanupEnabled
		if cfg.Event.CleanupRetention > 0 {
			outboxProcessorConfig.CleanupRetention = cfg.Event.CleanupRetention
		}

		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, outboxProcessorConfig, log)
		if err := outboxProcessor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", outboxProcessorConfig.BatchSize),
			zap.Duration("poll_interval", outboxProcessorConfig.PollInterval),
		)
	}

	// Initialize pull-sync worker pool and periodic trigger (if enabled)
	if cfg.Sync.Enabled {
		syncScheduler, err := scheduler.NewSyncScheduler(scheduler.SyncSchedulerConfig{
			Workers:       cfg.Sync.Workers,
			QueueSize:     cfg.Sync.QueueSize,
			JobTimeout:    cfg.Sync.JobTimeout,
			RetryAttempts: 2,
			RetryDelay:    time.Minute,
		}, syncService, log)
		if err != nil {
			log.Fatal("Failed to create sync scheduler", zap.Error(err))
		}
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		defer func() {
			if err := syncScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()

		syncTrigger := scheduler.NewSyncTrigger(scheduler.SyncTriggerConfig{
			Interval:      cfg.Sync.Interval,
			CheckInterval: time.Minute,
		}, syncScheduler, scheduler.NewRegistrySourceProvider(registry), log)
		if err := syncTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync trigger", zap.Error(err))
		}
		defer syncTrigger.Stop()

		log.Info("Sync scheduler started",
			zap.Int("workers", cfg.Sync.Workers),
			zap.Duration("interval", cfg.Sync.Interval),
		)
	}

	// Webhook processing pool: deliveries are acknowledged once ledgered
	// and reconciled off the request
	if err := webhookService.Start(context.Background()); err != nil {
		log.Fatal("Failed to start webhook processing pool", zap.Error(err))
	}
	defer func() {
		if err := webhookService.Stop(context.Background()); err != nil {
			log.Error("Error stopping webhook processing pool", zap.Error(err))
		}
	}()

	// Background sweeps: due notification retries, instance expiry, and
	// webhook deliveries that never finished processing
	sweeps := scheduler.NewSweepScheduler(log)
	sweeps.Register("notification-retry", scheduler.SweeperFunc(dispatchService.DispatchDue),
		cfg.Notification.DueSweepInterval, cfg.Notification.DueSweepBatchSize)
	sweeps.Register("instance-expiry", scheduler.SweeperFunc(poolService.ExpireOverdue),
		cfg.Sync.ExpirySweep, cfg.Sync.ExpiryBatch)
	sweeps.Register("webhook-replay", scheduler.SweeperFunc(webhookService.ReplayPending),
		cfg.Webhook.ReplaySweepInterval, cfg.Webhook.ReplaySweepBatchSize)
	if err := sweeps.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sweep scheduler", zap.Error(err))
	}
	defer sweeps.Stop()

	// Initialize HTTP handlers
	webhookHandler := handler.NewWebhookHandler(webhookService, cfg.Webhook.MaxPayloadBytes)
	if businessMetrics != nil {
		webhookHandler.SetMetrics(businessMetrics)
	}
	greenapiWebhookHandler := handler.NewGreenAPIWebhookHandler(poolService, cfg.GreenAPI.WebhookToken)
	syncHandler := handler.NewSyncHandler(syncService)
	instanceHandler := handler.NewInstanceHandler(poolService)
	notificationHandler := handler.NewNotificationHandler(dispatchService)
	integrationHandler := handler.NewIntegrationHandler(registry, map[order.SourceSystem]string{
		order.SourceWooCommerce: cfg.Webhook.WooCommerceSecret,
		order.SourceZid:         cfg.Webhook.ZidSecret,
		order.SourceCalendly:    cfg.Webhook.CalendlySecret,
	})
	outboxHandler := handler.NewOutboxHandler(outboxService)
	systemHandler := handler.NewSystemHandler()

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
	// 6. BodyLimit - Limit request body size
	// 7. Merchant - Identify merchant from path/header
	// 8. Tracing/Metrics - Observability (if enabled)
	// 9. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Merchant identification from path or X-Merchant-ID header. Optional:
	// system and webhook routes carry no merchant.
	engine.Use(middleware.OptionalMerchantMiddleware())

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.Tracing())
		engine.Use(middleware.SpanErrorMarker())
		engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       true,
		}))
	}
	if cfg.Telemetry.ProfilerEnabled {
		engine.Use(middleware.Profiling())
	}

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer rateLimiter.Stop()
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API routing)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion(""))
	r.Register(webhookHandler).
		Register(greenapiWebhookHandler).
		Register(syncHandler).
		Register(instanceHandler).
		Register(notificationHandler).
		Register(integrationHandler).
		Register(outboxHandler).
		Register(systemHandler)
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

// storeNameResolver supplies the display name signed into customer messages.
// Until merchants carry a profile, every message signs with the platform name.
func storeNameResolver(cfg *config.Config) dispatch.StoreNameResolver {
	return func(context.Context, uuid.UUID) string {
		return cfg.App.Name
	}
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
