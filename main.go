// Package main provides the main entry point for the OMC/BDC price collection service
//
// @title OMC BDC Price API
// @version 1.0
// @description Collects OMC pump prices and BDC depot prices from field reporters and forwards them to each company's partner API.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

//go:generate swag init -g main.go -o docs

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/amirphl/omc-bdc-price-service/app/handlers"
	"github.com/amirphl/omc-bdc-price-service/app/logging"
	"github.com/amirphl/omc-bdc-price-service/app/middleware"
	"github.com/amirphl/omc-bdc-price-service/app/router"
	"github.com/amirphl/omc-bdc-price-service/app/scheduler"
	"github.com/amirphl/omc-bdc-price-service/app/services"
	businessflow "github.com/amirphl/omc-bdc-price-service/business_flow"
	"github.com/amirphl/omc-bdc-price-service/config"
	_ "github.com/amirphl/omc-bdc-price-service/docs"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	logger    *zap.Logger
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	logger.Info("Starting OMC BDC price service",
		zap.String("environment", cfg.Deployment.Environment),
		zap.String("version", cfg.Deployment.Version),
		zap.String("commit", cfg.Deployment.CommitHash),
	)

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-sigChan
	logger.Info("Shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Stop background workers after the server stopped accepting submissions
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	logger.Info("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return db, nil
}

// initializeCache connects to Redis when enabled; a nil client selects the in-process fallbacks
func initializeCache(cfg config.CacheConfig, logger *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rc := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", opt.Addr), zap.Int("db", opt.DB))
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity issues in the logs
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("Redis healthcheck failed", zap.Error(err))
				}
				c()
			}
		}
	}()

	return cancel
}

// initializeDeliveryQueue picks the asynq queue when Redis is available and the in-process queue otherwise
func initializeDeliveryQueue(
	cfg *config.ProductionConfig,
	syncFlow businessflow.SyncFlow,
	logger *zap.Logger,
) (businessflow.DeliveryQueue, []func(), error) {
	if !cfg.Cache.Enabled {
		queue := businessflow.NewInProcessDeliveryQueue(syncFlow, cfg.Sync, logger.Named("delivery"))
		stop := queue.Start(context.Background())
		logger.Info("Using in-process delivery queue", zap.Int("workers", cfg.Sync.QueueConcurrency))
		return queue, []func(){stop}, nil
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.Cache.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url for task queue: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	queueName := cfg.Sync.QueueName
	if queueName == "" {
		queueName = "price_sync"
	}
	worker := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Sync.QueueConcurrency,
		Queues:      map[string]int{queueName: 1},
		Logger:      logger.Named("asynq").Sugar(),
	})

	mux := asynq.NewServeMux()
	mux.Handle(businessflow.TaskPriceEntrySync, businessflow.NewSyncTaskHandler(syncFlow, logger.Named("delivery")))

	if err := worker.Start(mux); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to start task worker: %w", err)
	}

	logger.Info("Using asynq delivery queue", zap.String("queue", queueName), zap.Int("workers", cfg.Sync.QueueConcurrency))
	stops := []func(){
		func() { _ = client.Close() },
		worker.Shutdown,
	}
	return businessflow.NewAsynqDeliveryQueue(client, cfg.Sync), stops, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger *zap.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval, logger))
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	stationRepo := repository.NewStationRepository(db)
	productRepo := repository.NewProductRepository(db)
	entryRepo := repository.NewPriceEntryRepository(db)
	imageRepo := repository.NewPriceEntryImageRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)

	// Initialize services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	logger.Info("Token service initialized", zap.String("issuer", cfg.JWT.Issuer), zap.String("audience", cfg.JWT.Audience))

	storage, err := services.NewS3ObjectStorage(context.Background(), cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}
	deliveryClient := services.NewDeliveryClient(cfg.Sync.DeliveryTimeout)
	stationSource := services.NewStationSource(cfg.Stations.SyncURL, cfg.Stations.APIKey, cfg.Stations.Timeout)

	// Initialize flows
	lookup := businessflow.NewCompanyConfigLookup(userRepo, companyRepo, cfg.Sync.CompanyCacheTTL)
	locker := businessflow.NewEntryLocker(rc, cfg.Cache.RedisPrefix, cfg.Sync.LockTTL)
	tracker := businessflow.NewSyncStatusTracker(entryRepo, logger.Named("sync"))
	syncFlow := businessflow.NewSyncFlow(entryRepo, syncLogRepo, tracker, deliveryClient, lookup, locker, logger.Named("sync"))

	queue, queueStops, err := initializeDeliveryQueue(cfg, syncFlow, logger)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, queueStops...)

	loginFlow := businessflow.NewLoginFlow(userRepo, tokenService, cfg.Admin, logger.Named("auth"))
	companyFlow := businessflow.NewCompanyFlow(companyRepo, userRepo, lookup, cfg.Security)
	stationFlow := businessflow.NewStationFlow(stationRepo, stationSource, db, logger.Named("stations"))
	productFlow := businessflow.NewProductFlow(productRepo)
	entryFlow := businessflow.NewPriceEntryFlow(
		entryRepo,
		imageRepo,
		stationRepo,
		syncLogRepo,
		storage,
		queue,
		cfg.Storage,
		db,
		logger.Named("price_entries"),
	)

	// Daily redelivery of entries that never reached the partner
	var retry handlers.RetryRunner
	if cfg.Sync.RetryEnabled {
		sched := scheduler.NewRetryScheduler(entryRepo, syncFlow, cfg.Sync, logger.Named("retry"))
		stopScheduler, err := sched.Start(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to start retry scheduler: %w", err)
		}
		stopFuncs = append(stopFuncs, stopScheduler)
		retry = sched
		logger.Info("Retry scheduler started", zap.String("cron", sched.CronSpec()), zap.String("location", cfg.Sync.RetryLocation))
	}

	// Initialize handlers
	h := router.Handlers{
		Auth:       handlers.NewAuthHandler(loginFlow, logger.Named("http")),
		PriceEntry: handlers.NewPriceEntryHandler(entryFlow, logger.Named("http")),
		Catalog:    handlers.NewCatalogHandler(stationFlow, productFlow, logger.Named("http")),
		Admin:      handlers.NewAdminHandler(companyFlow, stationFlow, productFlow, entryFlow, retry, logger.Named("http")),
	}

	healthChecks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenService)
	appRouter := router.NewFiberRouter(cfg, h, authMiddleware, healthChecks, logger)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		logger:    logger,
		stopFuncs: stopFuncs,
	}, nil
}
