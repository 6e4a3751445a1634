package main

import (
	"flag"
	"log/slog"
	"os"

	"donorcli/internal/app"
	"donorcli/internal/config"
	"donorcli/internal/infrastructure"
)

func main() {
	dataDir := flag.String("data", "", "override the data root directory (defaults to the executable directory)")
	port := flag.Int("port", 0, "listen port (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	paths, err := resolvePaths(*dataDir)
	if err != nil {
		logger.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		logger.Error("Failed to create directories", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, paths, logger)
	if err != nil {
		logger.Error("Failed to build application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func resolvePaths(dataDir string) (*config.Paths, error) {
	if dataDir != "" {
		return config.PathsAt(dataDir), nil
	}
	return config.GetPaths()
}
