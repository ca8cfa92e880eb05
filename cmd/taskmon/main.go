// Package main implements taskmon, a demonstration host for the task
// framework: it runs a batch of asynchronous operations on the worker pool,
// tracks them in the task manager, and exposes them through an optional
// HTTP monitor endpoint and an optional interactive terminal panel.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mirovis/taskcore/internal/config"
	"github.com/mirovis/taskcore/internal/platform/logger"
)

func main() {
	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := newApplication(cfg, appLogger)
	if err := app.Run(ctx); err != nil {
		appLogger.Error("application exited with error", "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration and sets up application components.
// Returns the loaded config, the root logger, and any initialization error.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// When the terminal panel is on, log lines go to stderr so they do not
	// fight the panel for stdout.
	var appLogger *slog.Logger
	if cfg.UI.Enabled {
		appLogger = logger.SetupWithWriter(cfg.Log, os.Stderr)
	} else {
		appLogger, err = logger.Setup(cfg.Log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
		}
	}

	appLogger.Info("configuration loaded",
		"pool_workers", cfg.Pool.Workers,
		"pool_queue_size", cfg.Pool.QueueSize,
		"monitor_enabled", cfg.Monitor.Enabled,
		"ui_enabled", cfg.UI.Enabled,
		"log_level", cfg.Log.Level)

	return cfg, appLogger, nil
}
