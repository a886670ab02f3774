package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/fulfillment-service/internal/activities"
	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/config"
	"github.com/wms-platform/fulfillment-service/internal/domain"
	ledgerGuard "github.com/wms-platform/fulfillment-service/internal/infrastructure/ledger"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/locking"
	mongoRepo "github.com/wms-platform/fulfillment-service/internal/infrastructure/mongodb"
	redisLock "github.com/wms-platform/fulfillment-service/internal/infrastructure/redis"
	temporalNotifier "github.com/wms-platform/fulfillment-service/internal/infrastructure/temporal"
	"github.com/wms-platform/fulfillment-service/internal/workflows"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/temporal"
)

const serviceName = "fulfillment-worker"

func main() {
	cfg, err := config.Load("/etc/fulfillment-service")
	if err != nil {
		logging.New(logging.DefaultConfig(serviceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.ParseLevel(cfg.Log.Level)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting transfer lifecycle worker")
	ctx := context.Background()

	m := metrics.New(metrics.DefaultConfig(serviceName))

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

	temporalClient, err := temporal.NewClient(ctx, &temporal.Config{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Identity:  cfg.Temporal.Identity,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "hostPort", cfg.Temporal.HostPort, "namespace", cfg.Temporal.Namespace)

	repos := mongoRepo.NewRepositories(mongoClient.Database(), cloudevents.NewEventFactory(cloudevents.SourceFulfillment), m)
	stockLedger := ledgerGuard.NewResilientLedger(
		repos.Ledger,
		ledgerGuard.NewLedgerBreaker(nil, mongoRepo.IsTransient, logger, m),
		nil,
		mongoRepo.IsTransient,
		logger,
	)
	notifier := temporalNotifier.NewTransferNotifier(temporalClient,
		cfg.Workflow.ApprovalTimeout, cfg.Workflow.TransitTimeout, logger, m)

	// Expiring a transfer cancels its companion jobs, so the worker shares the API's job locks
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
		locker = redisLock.NewJobLocker(rdb, cfg.Lock.TTL)
	}

	hub := application.NewCompletionHub(logger, m)
	transfers := application.NewTransferOrchestrator(repos.Jobs, stockLedger, repos.Catalog, repos.Discrepancies,
		locker, notifier, hub, logger, m)
	hub.Register(transfers)
	hub.Register(application.NewAssignmentScheduler(repos.Jobs, repos.Workers, repos.Assignments, repos.Zones, logger, m))

	w := temporalClient.NewWorker(temporal.DefaultWorkerOptions(temporal.TaskQueues.Transfers))

	w.RegisterWorkflowWithOptions(workflows.TransferLifecycleWorkflow, workflow.RegisterOptions{
		Name: temporal.WorkflowNames.TransferLifecycle,
	})
	logger.Info("Registered workflows", "workflows", []string{temporal.WorkflowNames.TransferLifecycle})

	w.RegisterActivity(activities.NewTransferActivities(transfers, m))
	logger.Info("Registered activities", "activities", []string{
		workflows.ExpireStaleTransferActivity,
		workflows.FlagTransitDelayActivity,
	})

	go func() {
		if err := w.Run(nil); err != nil {
			logger.Error("Worker failed", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("Worker started", "taskQueue", temporal.TaskQueues.Transfers)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	w.Stop()
	logger.Info("Worker stopped")
}
