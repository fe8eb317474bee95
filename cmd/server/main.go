package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fitcomp/internal/config"
	"github.com/fitcomp/internal/handler"
	"github.com/fitcomp/internal/kafka"
	"github.com/fitcomp/internal/notify"
	"github.com/fitcomp/internal/payment"
	"github.com/fitcomp/internal/postgres"
	"github.com/fitcomp/internal/redis"
	"github.com/fitcomp/internal/service"
	"github.com/fitcomp/internal/websocket"
	"github.com/fitcomp/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	standingsCache, err := redis.NewStandingsCache(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer standingsCache.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub for live standings
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Notifications go out over Redis pub/sub on per-user channels
	dispatcher := notify.NewRedisDispatcher(standingsCache.Client(), logger)

	// External payment verifier for the leave exit fee
	verifier := payment.NewClient(&cfg.Payment, logger)

	// Initialize services
	competitionService := service.NewCompetitionService(
		postgresRepo,
		postgresRepo,
		standingsCache,
		dispatcher,
		&cfg.Competition,
		logger,
	)

	syncService := service.NewSyncService(
		postgresRepo,
		postgresRepo,
		postgresRepo,
		standingsCache,
		wsHub,
		logger,
	)

	leaveService := service.NewLeaveService(
		postgresRepo,
		postgresRepo,
		postgresRepo,
		verifier,
		standingsCache,
		dispatcher,
		&cfg.Payment,
		logger,
	)

	// Initialize reconcile worker
	reconcileWorker := worker.NewReconcileWorker(
		postgresRepo,
		standingsCache,
		&cfg.Worker,
		logger,
	)

	// Advance statuses and rebuild standings from the database on startup
	// (recovery after a Redis flush or restart)
	logger.Info("running startup reconcile pass")
	reconcileWorker.RunOnce(ctx)

	// Start reconcile worker
	if cfg.Worker.Enabled {
		if err := reconcileWorker.Start(ctx); err != nil {
			logger.Error("failed to start reconcile worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for device activity ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, syncService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(
		competitionService,
		syncService,
		leaveService,
		standingsCache,
		postgresRepo,
		postgresRepo,
		wsHub,
		cfg.Auth.JWTSecret,
		cfg.Leaderboard.DefaultLimit,
		cfg.Leaderboard.MaxLimit,
		logger,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop reconcile worker
	if err := reconcileWorker.Stop(); err != nil {
		logger.Error("failed to stop reconcile worker", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
