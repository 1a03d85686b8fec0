package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/eventify/internal/config"
	"github.com/joshua-takyi/eventify/internal/connect"
	"github.com/joshua-takyi/eventify/internal/container"
	"github.com/joshua-takyi/eventify/internal/routes"
)

const reconciliationInterval = time.Minute

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	logger.Info("Starting Eventify API server", "environment", cfg.Environment)

	// background work stops when this is cancelled
	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	mongoClient, err := connect.MongoDBConnect(cfg)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to MongoDB successfully")

	clients := container.Clients{MongoDB: mongoClient}

	if redisClient, err := connect.RedisConnect(cfg); err != nil {
		logger.Warn("Redis unavailable", "error", err)
	} else {
		clients.Redis = redisClient
		logger.Info("Connected to Redis successfully")
	}

	if cfg.CloudinaryEnabled() {
		cld, err := connect.CloudinaryCredentials(cfg)
		if err != nil {
			logger.Error("Failed to connect to Cloudinary", "error", err)
			os.Exit(1)
		}
		clients.Cloudinary = cld
		logger.Info("Connected to Cloudinary successfully")
	}

	if cfg.AuthProvider == config.AuthProviderSupabase {
		supaClient, err := connect.InitSupabase(cfg)
		if err != nil {
			logger.Error("Failed to connect to Supabase", "error", err)
			os.Exit(1)
		}
		clients.Supabase = supaClient
		logger.Info("Connected to Supabase successfully")
	}

	appContainer, err := container.NewContainer(rootCtx, cfg, logger, clients)
	if err != nil {
		logger.Error("Failed to build dependency container", "error", err)
		os.Exit(1)
	}

	indexCtx, cancelIndexes := context.WithTimeout(rootCtx, 30*time.Second)
	if err := appContainer.Repo.EnsureIndexes(indexCtx); err != nil {
		cancelIndexes()
		logger.Error("Failed to create MongoDB indexes", "error", err)
		os.Exit(1)
	}
	cancelIndexes()

	go appContainer.Monitor.WatchReconciliation(rootCtx, reconciliationInterval, appContainer.PaymentService.ReconciliationBacklog)
	if appContainer.Listener != nil {
		go appContainer.Listener.Run(rootCtx)
	}

	router := routes.SetupRoutes(appContainer)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "providers", appContainer.Gateways.Providers())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	stop()

	connect.Disconnect()
	if err := connect.RedisDisconnect(); err != nil {
		logger.Error("Error disconnecting from Redis", "error", err)
	}
	if err := connect.MongoDBDisconnect(); err != nil {
		logger.Error("Error disconnecting from MongoDB", "error", err)
	}

	logger.Info("Server exited")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.LogLevel)

	var handler slog.Handler
	if cfg.IsProduction() {
		// JSON logging for production
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		// Human-readable logging for development
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
