// Command crafter explores Infinite Craft combinations in a real browser and
// records every discovery in a JSON ledger.
//
// Usage:
//
//	crafter                                   # explore with defaults, results.json
//	crafter -config crafter.yaml              # explore with a YAML config
//	crafter -mode replay -ledger results.json # rebuild known items, then exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/infcraft/crafter"
)

func main() {
	configPath := flag.String("config", "", "path to crafter.yaml config file")
	targetURL := flag.String("url", "", "game URL (overrides target.url)")
	ledgerPath := flag.String("ledger", "", "ledger file (overrides ledger.path)")
	modeName := flag.String("mode", "explore", "run mode: explore, replay")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *targetURL, *ledgerPath, *modeName); err != nil {
		logger.Error("crafter: fatal", "error", err)
		if errors.Is(err, crafter.ErrStartup) || errors.Is(err, crafter.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, targetURL, ledgerPath, modeName string) error {
	mode, err := crafter.ParseMode(modeName)
	if err != nil {
		return fmt.Errorf("%w: %w", crafter.ErrInvalidConfig, err)
	}

	cfg := crafter.DefaultConfig()
	if configPath != "" {
		cfg, err = crafter.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("%w: %w", crafter.ErrStartup, err)
		}
	}
	if targetURL != "" {
		cfg.Target.URL = targetURL
	}
	if ledgerPath != "" {
		cfg.Ledger.Path = ledgerPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info("crafter: starting", "mode", mode, "url", cfg.Target.URL,
		"ledger", cfg.Ledger.Path, "selection", cfg.Explore.Selection,
		"termination", cfg.Explore.Termination)

	return crafter.New(cfg, mode, logger).Run(ctx)
}
