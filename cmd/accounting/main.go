package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/craterhub/downloads-accounting/internal/adapter"
	"github.com/craterhub/downloads-accounting/internal/api/middleware"
	"github.com/craterhub/downloads-accounting/internal/api/rest"
	"github.com/craterhub/downloads-accounting/internal/api/server"
	"github.com/craterhub/downloads-accounting/internal/config"
	"github.com/craterhub/downloads-accounting/internal/eventstore"
	"github.com/craterhub/downloads-accounting/internal/logger"
	"github.com/craterhub/downloads-accounting/internal/pipeline"
	"github.com/craterhub/downloads-accounting/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	migrate    = flag.Bool("migrate", false, "Run schema migrations on startup")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAccountingConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "accounting",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting downloads accounting service")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	if *migrate {
		if err := store.Migrate(db); err != nil {
			logger.FatalCtx(ctx, "Failed to run migrations", zap.Error(err))
		}
		logger.InfoCtx(ctx, "Schema migrations applied")
	}

	// Initialize sink store
	sink := store.NewPGStore(db)

	// Connect to Redis
	redisClient := adapter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		logger.FatalCtx(ctx, "Failed to connect to Redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
	}
	logger.InfoCtx(ctx, "Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// Initialize event store and clock
	events := eventstore.NewRedisStore(redisClient)
	clock := adapter.NewClock()

	// Initialize flush scheduler
	processor := pipeline.NewProcessor(pipeline.ProcessorConfig{
		FlushInterval:   cfg.Pipeline.FlushInterval,
		QueueKey:        cfg.Pipeline.QueueKey,
		HistoryKey:      cfg.Pipeline.HistoryKey,
		MaxPerIdentity:  cfg.Pipeline.MaxPerIdentity,
		WorkerPoolSize:  cfg.Pipeline.Worker.PoolSize,
		WorkerQueueSize: cfg.Pipeline.Worker.QueueSize,
	}, events, sink, clock)

	// Initialize history reaper
	reaper := pipeline.NewReaper(pipeline.ReaperConfig{
		HistoryKey:    cfg.Pipeline.HistoryKey,
		HistoryWindow: cfg.Pipeline.HistoryWindow,
	}, events, clock)

	// Initialize ingestion gate
	gate := pipeline.NewGate(pipeline.GateConfig{
		QueueKey:     cfg.Pipeline.QueueKey,
		MaxQueueSize: cfg.Pipeline.MaxQueueSize,
	}, events, processor, clock)

	logger.InfoCtx(ctx, "Initialized downloads pipeline",
		zap.Duration("flush_interval", cfg.Pipeline.FlushInterval),
		zap.Duration("history_window", cfg.Pipeline.HistoryWindow),
		zap.Int64("max_queue_size", cfg.Pipeline.MaxQueueSize),
		zap.Int("max_per_identity", cfg.Pipeline.MaxPerIdentity),
	)

	// Initialize API server
	handler := rest.NewHandler(gate, processor, events, cfg.Pipeline.QueueKey, cfg.Pipeline.HistoryKey)
	apiServer := server.New(cfg.Server, cfg.Debug, handler, middleware.AuthConfig{APIKeys: cfg.Auth.APIKeys})

	// Start the background jobs and the server
	errChan := make(chan error, 3)
	jobs := []pipeline.Job{processor, reaper}
	for _, job := range jobs {
		go func() {
			if err := job.Start(ctx); err != nil {
				errChan <- fmt.Errorf("%s: %w", job.Name(), err)
			}
		}()
	}
	go func() {
		if err := apiServer.Start(); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Cancel context to stop the background jobs
	cancel()

	// Give everything time to shut down gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}
	for _, job := range jobs {
		if err := job.Stop(shutdownCtx); err != nil {
			logger.ErrorCtx(shutdownCtx, err)
		}
	}

	logger.InfoCtx(shutdownCtx, "Downloads accounting service stopped")
}
