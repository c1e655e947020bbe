package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/internal/app"
	"github.com/gistblog/gistfeed/internal/warmer"
	"github.com/gistblog/gistfeed/pkg/config"
	"github.com/gistblog/gistfeed/pkg/logging"
	"github.com/gistblog/gistfeed/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting gistfeed cache warmer")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	application, err := app.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize post feed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = warmer.New(application.Engine, cfg.Warmer.Interval).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Warmer stopped", zap.Error(err))
	}

	logger.Info("Shutting down warmer, waiting for cache writes...")
	if err := application.Close(); err != nil {
		logger.Error("Failed to close post feed", zap.Error(err))
	}
	logger.Info("Warmer exited")
}
