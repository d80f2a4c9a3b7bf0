package main

import (
	"log"

	"github.com/cutoutlab/bg-removal-service/config"
	"github.com/cutoutlab/bg-removal-service/internal/handler"
	"github.com/cutoutlab/bg-removal-service/internal/pipeline"
	"github.com/cutoutlab/bg-removal-service/internal/provider"
	"github.com/cutoutlab/bg-removal-service/internal/server"
	"github.com/cutoutlab/bg-removal-service/internal/storage"
	"github.com/cutoutlab/bg-removal-service/internal/validator"
	"github.com/cutoutlab/bg-removal-service/pkg/logger"
)

func main() {
	// Basic logger for startup, replaced once config is loaded
	startupLogger := logger.New(logger.Config{
		Level:  "info",
		Format: "text",
	})

	startupLogger.Info("Starting background-removal relay")

	cfg, err := config.LoadConfig(startupLogger)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	appLogger.Info("Configuration loaded",
		"env", cfg.Env,
		"provider", cfg.Provider.Name,
		"port", cfg.Server.Port,
	)

	store, err := storage.NewTempStore(cfg.Upload.TempDir, cfg.Upload.MaxSizeBytes, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize temp store", "error", err)
		log.Fatalf("Failed to initialize temp store: %v", err)
	}

	if err := store.StartSweeper(cfg.Upload.SweepInterval, cfg.Upload.MaxTempAge); err != nil {
		appLogger.Error("Failed to start temp sweeper", "error", err)
		log.Fatalf("Failed to start temp sweeper: %v", err)
	}
	defer store.StopSweeper()

	adapter, err := provider.ForName(cfg.Provider.Name, cfg.Provider.Endpoint)
	if err != nil {
		appLogger.Error("Failed to resolve provider adapter", "error", err)
		log.Fatalf("Failed to resolve provider adapter: %v", err)
	}

	client := provider.NewClient(
		adapter,
		provider.CredentialFromConfig(cfg.Provider),
		cfg.Provider.Timeout,
		appLogger,
	)

	p := pipeline.New(
		validator.New(cfg.Upload.MaxSizeBytes),
		store,
		client,
		appLogger,
	)

	h := handler.NewHandler(cfg, p, appLogger)
	engine := server.New(cfg, h, appLogger)

	appLogger.Info("Listening", "addr", cfg.Server.Port)
	if err := server.Start(cfg, engine); err != nil {
		appLogger.Error("Server stopped", "error", err)
		log.Fatalf("Server stopped: %v", err)
	}
}
