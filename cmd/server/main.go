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

	"github.com/arcade-social/internal/arcade"
	"github.com/arcade-social/internal/auth"
	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/handler"
	"github.com/arcade-social/internal/kafka"
	"github.com/arcade-social/internal/logging"
	"github.com/arcade-social/internal/postgres"
	"github.com/arcade-social/internal/redis"
	"github.com/arcade-social/internal/websocket"
	"github.com/arcade-social/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	loadErr := err
	if err != nil {
		cfg = config.DefaultConfig()
	}

	// Setup structured logging
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	if loadErr != nil {
		logger.Warn("failed to load config file, using defaults", "error", loadErr)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	store, err := redis.NewTree(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Register OAuth providers
	providers := auth.InitProviders(&cfg.Auth, logger)
	logger.Info("auth providers configured", "oauth", providers)

	app := arcade.New(arcade.Deps{
		Store:    store,
		Config:   cfg,
		Provider: auth.NewPasswordProvider(repo),
		Archive:  repo,
		History:  repo,
		Logger:   logger,
	})

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Start presence worker
	presenceWorker := worker.NewPresenceWorker(app.Presence(), wsHub, &cfg.Presence, logger)
	if cfg.Presence.Enabled {
		if err := presenceWorker.Start(ctx); err != nil {
			logger.Error("failed to start presence worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for trusted score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, app.Board(), logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			startCtx, startCancel := context.WithTimeout(ctx, 15*time.Second)
			if err := kafkaConsumer.Start(startCtx); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
			startCancel()
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(app, wsHub, auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), logger).
		WithProbe("redis", func(ctx context.Context) error { return store.Client().Ping(ctx).Err() }).
		WithProbe("postgres", repo.Ping)

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
		logger.Info("WebSocket endpoint available at /ws")
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

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop presence worker
	if err := presenceWorker.Stop(); err != nil {
		logger.Error("failed to stop presence worker", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Stop WebSocket hub
	wsHub.Stop()

	logger.Info("server stopped")
}
