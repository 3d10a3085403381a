// Package main provides the engine daemon: it loads configuration and
// content, opens the stores, and runs the background services.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/mortemhouse/mortem/internal/config"
	"github.com/mortemhouse/mortem/internal/engine"
	"github.com/mortemhouse/mortem/internal/observability"
	"github.com/mortemhouse/mortem/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	levelsFile := flag.String("levels", "content/levels.yaml", "path to the level threshold YAML file")
	tablesDir := flag.String("tables-dir", "content/tables", "path to probability table YAML files directory")
	itemsDir := flag.String("items-dir", "content/items", "path to item YAML definitions directory")
	statsInterval := flag.Duration("stats-interval", 5*time.Minute, "period of the store stats log line")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting engine daemon",
		zap.String("store", cfg.Storage.Path),
		zap.String("policy", cfg.Storage.PolicyPath),
	)

	buildStart := time.Now()
	eng, err := engine.New(cfg, engine.Content{
		LevelsFile: *levelsFile,
		TablesDir:  *tablesDir,
		ItemsDir:   *itemsDir,
	}, logger)
	if err != nil {
		logger.Fatal("assembling engine", zap.Error(err))
	}
	logger.Info("engine ready",
		zap.Int("players", eng.Ledger.Stats().Players),
		zap.Duration("elapsed", time.Since(buildStart)),
	)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	regenCtx, stopRegen := context.WithCancel(ctx)
	lifecycle.Add("regen", &server.FuncService{
		StartFn: func() error {
			return eng.Regen.Run(regenCtx)
		},
		StopFn: stopRegen,
	})

	statsCtx, stopStats := context.WithCancel(ctx)
	lifecycle.Add("stats", &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(*statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-statsCtx.Done():
					return nil
				case <-ticker.C:
					stats := eng.Ledger.Stats()
					logger.Info("store stats",
						zap.Int("players", stats.Players),
						zap.Int("inventory_entries", stats.InventoryEntries),
						zap.Int("cooldown_entries", stats.CooldownEntries),
					)
				}
			}
		},
		StopFn: stopStats,
	})

	logger.Info("engine daemon initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("daemon error", zap.Error(err))
	}
}
