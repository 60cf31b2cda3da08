// Package main is the entry point for the DevConnect API server.
//
// main only reads configuration, builds the logger and starts the server.
// Everything else lives under internal/.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/devconnect/internal/config"
	"github.com/sakif/devconnect/internal/server"
)

func main() {
	// === 1. CONFIGURATION ===
	// .env is optional; see internal/config for every variable.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	logger := cfg.Logger()
	slog.SetDefault(logger)

	// === 3. DATABASE DIRECTORY ===
	// SQLite creates the file but not its parent directory.
	if cfg.Store == config.StoreSQLite && cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if !cfg.GitHubEnabled() {
		logger.Info("GITHUB_CLIENT_ID not set, GitHub login disabled")
	}

	// === 4. CREATE AND START THE SERVER ===
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
