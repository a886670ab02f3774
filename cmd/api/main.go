package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/config"
	"github.com/wms-platform/fulfillment-service/internal/domain"
	ledgerGuard "github.com/wms-platform/fulfillment-service/internal/infrastructure/ledger"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/locking"
	mongoRepo "github.com/wms-platform/fulfillment-service/internal/infrastructure/mongodb"
	redisLock "github.com/wms-platform/fulfillment-service/internal/infrastructure/redis"
	temporalNotifier "github.com/wms-platform/fulfillment-service/internal/infrastructure/temporal"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
	"github.com/wms-platform/fulfillment-service/pkg/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
	"github.com/wms-platform/fulfillment-service/pkg/temporal"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

const serviceName = "fulfillment-service"

func main() {
	cfg, err := config.Load("/etc/fulfillment-service")
	if err != nil {
		logging.New(logging.DefaultConfig(serviceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	// Setup logger
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.ParseLevel(cfg.Log.Level)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting fulfillment-service API")
	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	tracingConfig.Environment = cfg.Environment
	tracingConfig.SampleRate = cfg.Tracing.SampleRate
	tracingConfig.Enabled = cfg.Tracing.Enabled

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	// Initialize Prometheus metrics
	m := metrics.New(metrics.DefaultConfig(serviceName))

	// Initialize MongoDB
	mongoClient, err := mongodb.NewClient(ctx, &mongodb.Config{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
		MinPoolSize:    cfg.Mongo.MinPoolSize,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())
	logger.Info("Connected to MongoDB", "database", cfg.Mongo.Database)

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceFulfillment)
	repos := mongoRepo.NewRepositories(mongoClient.Database(), eventFactory, m)
	if err := repos.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to create indexes")
	}

	// Initialize Kafka producer and outbox publisher
	producer := kafka.NewProducer(&kafka.Config{
		Brokers:      cfg.Kafka.Brokers,
		ClientID:     cfg.Kafka.ClientID,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: cfg.Kafka.BatchTimeout,
		RequiredAcks: cfg.Kafka.RequiredAcks,
	}, m, logger)
	defer producer.Close()

	outboxPublisher := outbox.NewPublisher(repos.Outbox, producer, logger, m, &outbox.PublisherConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
	})
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()
	logger.Info("Outbox publisher started", "brokers", cfg.Kafka.Brokers)

	readiness := map[string]func(context.Context) error{"mongodb": mongoClient.HealthCheck}

	// Per-job lock
	var locker domain.JobLocker = locking.NewLocalLocker()
	if cfg.Redis.Enabled {
		rdb, err := redisLock.NewClient(ctx, &redisLock.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Redis")
			os.Exit(1)
		}
		defer rdb.Close()
		readiness["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		locker = redisLock.NewJobLocker(rdb, cfg.Lock.TTL)
		logger.Info("Using Redis job lock", "addr", cfg.Redis.Addr)
	} else {
		logger.Warn("Redis disabled, job locks only hold within this process")
	}

	// Transfer lifecycle notifications
	var notifier application.TransferNotifier = application.NoopTransferNotifier{}
	if cfg.Temporal.Enabled {
		temporalClient, err := temporal.NewClient(ctx, &temporal.Config{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Identity:  cfg.Temporal.Identity,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Temporal")
			os.Exit(1)
		}
		defer temporalClient.Close()
		notifier = temporalNotifier.NewTransferNotifier(temporalClient,
			cfg.Workflow.ApprovalTimeout, cfg.Workflow.TransitTimeout, logger, m)
		logger.Info("Temporal notifier initialized", "hostPort", cfg.Temporal.HostPort)
	}

	stockLedger := ledgerGuard.NewResilientLedger(
		repos.Ledger,
		ledgerGuard.NewLedgerBreaker(nil, mongoRepo.IsTransient, logger, m),
		nil,
		mongoRepo.IsTransient,
		logger,
	)

	// Initialize application services
	hub := application.NewCompletionHub(logger, m)
	scheduler := application.NewAssignmentScheduler(repos.Jobs, repos.Workers, repos.Assignments, repos.Zones, logger, m)
	services := &Services{
		Engine: application.NewFulfillmentEngine(repos.Jobs, stockLedger, repos.Catalog, repos.Approvals, repos.Proposals,
			locker, repos.Scans, hub, scheduler, logger, m, application.EngineConfig{
				ProposalTTL: cfg.Proposal.TTL,
				ScanKeyTTL:  cfg.Scan.KeyTTL,
			}),
		Transfers: application.NewTransferOrchestrator(repos.Jobs, stockLedger, repos.Catalog, repos.Discrepancies,
			locker, notifier, hub, logger, m),
		Resolver:  application.NewDiscrepancyResolver(repos.Jobs, repos.Discrepancies, stockLedger, repos.Catalog, notifier, hub, logger, m),
		Scheduler: scheduler,
		Inventory: application.NewInventoryChangeService(repos.Approvals, repos.Catalog, stockLedger, repos.Jobs, logger, m),
	}
	hub.Register(services.Transfers)
	hub.Register(services.Scheduler)

	// Setup Gin router with middleware
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middlewareConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	middleware.Setup(router, middlewareConfig)
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(serviceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, readiness))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	registerRoutes(router.Group("/api/v1"), services, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", cfg.Server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}
