// Command server runs the PointsGuard fraud risk scoring API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/reward360/pointsguard/internal/config"
	"github.com/reward360/pointsguard/internal/logging"
	"github.com/reward360/pointsguard/internal/server"
)

// Set via -ldflags at release time.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pointsguard:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, "json")
	logger.Info("starting pointsguard",
		"version", version,
		"commit", commit,
		"build_time", buildTime,
		"env", cfg.Env,
		"port", cfg.Port,
	)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	return srv.Run(context.Background())
}
