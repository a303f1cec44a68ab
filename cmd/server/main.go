package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/api"
	"github.com/andreval74/xcafe/internal/backend"
	"github.com/andreval74/xcafe/internal/service"
	"github.com/andreval74/xcafe/internal/websocket"
	"github.com/andreval74/xcafe/pkg/config"
	"github.com/andreval74/xcafe/pkg/logging"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")
	version    = "dev"
	buildTime  = "unknown"
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(logging.FromConfig(cfg.Logging))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting xcafe server",
		zap.String("version", version),
		zap.String("build_time", buildTime),
	)

	// Initialize storage backend
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := backend.New(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize storage backend", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	err = store.Ping(ctx)
	cancel()
	if err != nil {
		logger.Fatal("Failed to ping storage", zap.Error(err))
	}
	logger.Info("Storage backend initialized", zap.String("type", cfg.Storage.Type))

	revocation, err := service.NewRevocationList(cfg.Revocation, logger)
	if err != nil {
		logger.Fatal("Failed to initialize revocation list", zap.Error(err))
	}

	hub := websocket.NewHub(service.NewCredentialIssuer(cfg.JWT.Secret, cfg.JWT.Issuer), revocation, cfg.Server.CORSOrigins, logger)
	defer hub.Close()

	services, err := service.NewServices(store, cfg, hub, logger, service.WithRevocationList(revocation))
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	services.Start()
	defer services.Stop()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(cfg, services, store, hub, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server listening", zap.String("address", cfg.Server.Address()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
