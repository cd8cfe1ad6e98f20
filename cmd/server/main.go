package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"parkingserver/internal/app"
	"parkingserver/internal/config"
	"parkingserver/internal/logger"
)

func main() {
	cfg := config.Load()
	if err := cfg.LoadCameras(); err != nil {
		log.Fatalf("Failed to load cameras: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger := logger.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
	appLogger.Info("🛑 Server stopped")
}
