// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/storefront-be/internal/adapters/db"
	"github.com/ammerola/storefront-be/internal/adapters/queue"
	redis_a "github.com/ammerola/storefront-be/internal/adapters/redis_adapter"
	"github.com/ammerola/storefront-be/internal/adapters/storage"
	"github.com/ammerola/storefront-be/internal/cart"
	"github.com/ammerola/storefront-be/internal/core/services"
	"github.com/ammerola/storefront-be/internal/handlers"
	"github.com/ammerola/storefront-be/internal/handlers/middleware"
	"github.com/ammerola/storefront-be/internal/pkg/config"
	"github.com/ammerola/storefront-be/internal/pkg/logger"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json", "storefront-api", Version, "").Logger

	slogger.Info("starting storefront api",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat, "storefront-api", Version, cfg.App.Environment).Logger
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.App.LogLevel),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := applySecrets(ctx, cfg, slogger); err != nil {
		slogger.Error("failed to load secrets", "err", err)
		os.Exit(1)
	}

	if cfg.Database.AutoMigrate {
		if err := runMigrations(ctx, cfg, slogger); err != nil {
			slogger.Error("failed to run migrations", "err", err)
			if cfg.IsProduction() {
				os.Exit(1)
			}
		}
	}

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.cleanup()

	go deps.sessions.RunJanitor(ctx, cfg.Cart.JanitorInterval)

	server := setupHTTPServer(cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)

		if cfg.Server.TLSEnabled {
			serverErrors <- server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", "err", err)
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received",
			slog.String("signal", sig.String()),
		)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", "err", err)
			server.Close()
		}

		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	database       *db.Database
	redisClient    *redis.Client
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	sessions       *cart.SessionManager
	routes         *handlers.Routes
}

// cleanup releases resources in reverse order of acquisition.
// Sessions close first so their final snapshots reach Redis.
func (d *dependencies) cleanup() {
	if d.sessions != nil {
		d.sessions.Close()
	}
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
	if d.database != nil {
		d.database.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	logger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
	)

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.database = database

	logger.Info("connecting to Redis", slog.String("address", cfg.GetRedisAddress()))

	redisClient := redis.NewClient(&redis.Options{
		Addr:            cfg.GetRedisAddress(),
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		MaxRetries:      cfg.Redis.MaxRetries,
		MinRetryBackoff: cfg.Redis.MinRetryBackoff,
		MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
		DialTimeout:     cfg.Redis.DialTimeout,
		ReadTimeout:     cfg.Redis.ReadTimeout,
		WriteTimeout:    cfg.Redis.WriteTimeout,
		PoolSize:        cfg.Redis.PoolSize,
		MinIdleConns:    cfg.Redis.MinIdleConns,
		PoolTimeout:     cfg.Redis.PoolTimeout,
	})
	deps.redisClient = redisClient

	if err := redisClient.Ping(ctx).Err(); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := redis_a.NewCache(redisClient, cfg.Redis.TTL, logger)
	cacheManager := redis_a.NewCacheManager(cache, logger)

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
	deps.asynqClient = asynq.NewClient(asynqRedisOpt)
	deps.asynqInspector = asynq.NewInspector(asynqRedisOpt)
	publisher := queue.NewPublisher(deps.asynqClient, cfg.Orders.NotificationQueue, logger)

	objects, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	// Repositories
	productRepo := db.NewProductRepository(database, logger)
	categoryRepo := db.NewCategoryRepository(database, logger)
	stockRepo := db.NewStockRepository(database, logger)
	orderRepo := db.NewOrderRepository(database, logger)
	favoriteRepo := db.NewFavoriteRepository(database, logger)
	searchLogRepo := db.NewSearchLogRepository(database, logger)

	// Services
	searchService := services.NewSearchService(productRepo, cache, publisher, services.SearchSettings{
		DefaultLimit:       cfg.Search.DefaultLimit,
		MaxLimit:           cfg.Search.MaxLimit,
		WorkingSetSize:     cfg.Search.WorkingSetSize,
		WorkingSetTTL:      cfg.Search.WorkingSetTTL,
		FuzzyThreshold:     cfg.Search.FuzzyThreshold,
		SuggestionMinScore: cfg.Search.SuggestionMinScore,
	}, logger)
	stockService := services.NewStockService(stockRepo, logger)
	maxImageBytes := int64(cfg.Storage.MaxImageSizeMB) << 20
	catalogService := services.NewCatalogService(services.CatalogDeps{
		Products:      productRepo,
		Categories:    categoryRepo,
		Storage:       objects,
		Cache:         cache,
		Invalidator:   cacheManager,
		MaxImageBytes: maxImageBytes,
	}, logger)
	orderService := services.NewOrderService(orderRepo, productRepo, publisher, cfg.Orders.TaxRate, logger)
	favoriteService := services.NewFavoriteService(favoriteRepo, cacheManager, logger)

	deps.sessions = cart.NewSessionManager(ctx, stockService, cache, cart.SessionConfig{
		DebounceWindow: cfg.Cart.DebounceWindow,
		SnapshotTTL:    cfg.Cart.SnapshotTTL,
		IdleTimeout:    cfg.Cart.SessionIdleTimeout,
	}, logger)

	// Handlers
	deps.routes = &handlers.Routes{
		Search:     handlers.NewSearchHandler(searchService, logger),
		Cart:       handlers.NewCartHandler(deps.sessions, orderService, stockService, logger),
		Catalog:    handlers.NewCatalogHandler(catalogService, maxImageBytes, logger),
		Favorites:  handlers.NewFavoriteHandler(favoriteService, logger),
		Orders:     handlers.NewOrderHandler(orderService, logger),
		Export:     handlers.NewExportHandler(catalogService, logger),
		Import:     handlers.NewImportHandler(objects, publisher, deps.asynqInspector, int64(cfg.Storage.MaxImportSizeMB)<<20, logger),
		Dashboard:  handlers.NewDashboardHandler(searchLogRepo, cache, logger),
		AdminToken: cfg.Security.AdminToken,
	}
	if cfg.Server.EnableHealthCheck {
		deps.routes.Health = handlers.NewHealthHandler(database, redisClient, deps.asynqInspector, deps.sessions, cfg, logger)
	}
	if cfg.Server.EnableMetrics {
		deps.routes.Metrics = promhttp.Handler()
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	deps.routes.Register(mux)

	// Local uploads are served by the API itself; S3 serves its own URLs
	if cfg.Storage.Provider != "s3" {
		mux.Handle("GET /files/{path...}", http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.Storage.LocalPath))))
	}

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recovery(logger),
	}
	if cfg.Security.RateLimitRequests > 0 {
		mws = append(mws, middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration))
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		mws = append(mws, middleware.CORS(cfg.Security.AllowedOrigins))
	}
	if cfg.Security.SecureHeaders {
		mws = append(mws, middleware.SecureHeaders)
	}
	mws = append(mws, middleware.Compression)
	if cfg.Server.WriteTimeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))
	}
	// innermost so the mux can fill r.Pattern on the request it sees
	if cfg.Server.EnableMetrics {
		mws = append(mws, middleware.Metrics)
	}

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        middleware.Chain(mux, mws...),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

func applySecrets(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sm, err := config.NewSecretsManager(cfg.Secrets, logger)
	if err != nil {
		return err
	}
	if err := cfg.ApplySecrets(ctx, sm); err != nil {
		return err
	}
	return cfg.Validate()
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("running database migrations")

	return db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
		DatabaseURL: cfg.GetDatabaseURL(),
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}, logger, 3)
}
