// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/storefront-be/internal/adapters/db"
	"github.com/ammerola/storefront-be/internal/adapters/queue"
	redis_a "github.com/ammerola/storefront-be/internal/adapters/redis_adapter"
	"github.com/ammerola/storefront-be/internal/adapters/storage"
	"github.com/ammerola/storefront-be/internal/core/services"
	"github.com/ammerola/storefront-be/internal/pkg/config"
	"github.com/ammerola/storefront-be/internal/pkg/logger"
	"github.com/ammerola/storefront-be/internal/workers"
)

var Version = "dev"

func main() {
	slogger := logger.SetupLogger("info", "json", "storefront-worker", Version, "").Logger

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat, "storefront-worker", Version, cfg.App.Environment).Logger
	slogger.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("redis_addr", cfg.Asynq.RedisAddr))

	ctx := context.Background()

	sm, err := config.NewSecretsManager(cfg.Secrets, slogger)
	if err == nil {
		err = cfg.ApplySecrets(ctx, sm)
	}
	if err != nil {
		slogger.Error("failed to load secrets", "err", err)
		os.Exit(1)
	}

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
			DatabaseURL: cfg.GetDatabaseURL(),
			TableName:   "schema_migrations",
			SchemaName:  "public",
		}, slogger, 3); err != nil {
			slogger.Error("failed to run migrations", "err", err)
			os.Exit(1)
		}
	}

	database, err := initDatabase(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize database", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddress(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	cache := redis_a.NewCache(redisClient, cfg.Redis.TTL, slogger)

	objects, err := storage.New(ctx, cfg.Storage, slogger)
	if err != nil {
		slogger.Error("failed to initialize object storage", "err", err)
		os.Exit(1)
	}

	// Imports go through the catalog service so the API's caches are dropped
	catalogService := services.NewCatalogService(services.CatalogDeps{
		Products:      db.NewProductRepository(database, slogger),
		Categories:    db.NewCategoryRepository(database, slogger),
		Storage:       objects,
		Cache:         cache,
		Invalidator:   redis_a.NewCacheManager(cache, slogger),
		MaxImageBytes: int64(cfg.Storage.MaxImageSizeMB) << 20,
	}, slogger)
	searchLogRepo := db.NewSearchLogRepository(database, slogger)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Asynq.Concurrency,
		Queues:          cfg.Asynq.Queues,
		StrictPriority:  cfg.Asynq.StrictPriority,
		ErrorHandler:    asynq.ErrorHandlerFunc(handleError),
		RetryDelayFunc:  exponentialBackoff,
		ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
		HealthCheckFunc: healthCheck,
		Logger:          newAsynqLogger(slogger),
	})

	mux := asynq.NewServeMux()

	analyticsProcessor := workers.NewAnalyticsProcessor(searchLogRepo, slogger)
	mux.HandleFunc(queue.TypeSearchLog, analyticsProcessor.ProcessSearchLog)

	excelProcessor := workers.NewExcelProcessor(objects, catalogService, slogger)
	mux.HandleFunc(queue.TypeCatalogImport, excelProcessor.ProcessCatalogImport)

	notificationProcessor := workers.NewNotificationProcessor(slogger)
	mux.HandleFunc(queue.TypeOrderNotify, notificationProcessor.ProcessOrderNotify)

	cleanupProcessor := workers.NewCleanupProcessor(searchLogRepo, cfg.Search.LogRetention, slogger)
	mux.HandleFunc(queue.TypeCleanupSearchLogs, cleanupProcessor.CleanupSearchLogs)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: newAsynqLogger(slogger),
	})
	if _, err := scheduler.Register(cfg.Search.LogCleanupSchedule, queue.NewCleanupSearchLogsTask(),
		asynq.Queue(queue.QueueLow),
		asynq.Unique(time.Hour),
	); err != nil {
		slogger.Error("failed to schedule search log cleanup",
			slog.String("schedule", cfg.Search.LogCleanupSchedule),
			"err", err)
		os.Exit(1)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(mux); err != nil {
			slogger.Error("failed to run worker server", "err", err)
			shutdown <- syscall.SIGTERM
		}
	}()

	if err := scheduler.Start(); err != nil {
		slogger.Error("failed to start scheduler", "err", err)
		os.Exit(1)
	}

	slogger.Info("worker started successfully",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues))

	sig := <-shutdown
	slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

	scheduler.Shutdown()
	srv.Shutdown()
	slogger.Info("worker shutdown complete")
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.Database, error) {
	return db.NewDatabase(ctx, &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     10, // Fewer connections for worker
		MinConnections:     2,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}, logger)
}

func handleError(ctx context.Context, task *asynq.Task, err error) {
	taskID, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	slog.ErrorContext(ctx, "task processing failed",
		slog.String("type", task.Type()),
		slog.String("task_id", taskID),
		slog.Int("retried", retried),
		"err", err)
}

func exponentialBackoff(n int, e error, t *asynq.Task) time.Duration {
	baseDelay := time.Second
	maxDelay := 10 * time.Minute
	delay := baseDelay * time.Duration(1<<uint(n))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func healthCheck(err error) {
	if err != nil {
		slog.Error("worker health check failed", "err", err)
	}
}

// asynqLogger adapts slog for Asynq
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{
		logger: logger.With(slog.String("component", "asynq")),
	}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
