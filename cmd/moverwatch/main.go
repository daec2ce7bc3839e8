package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ct-trading/moverwatch/internal/app"
	"github.com/ct-trading/moverwatch/internal/config"
	"github.com/ct-trading/moverwatch/internal/detector"
	"github.com/ct-trading/moverwatch/internal/digest"
	"github.com/ct-trading/moverwatch/internal/ledger"
	"github.com/ct-trading/moverwatch/internal/logger"
	"github.com/ct-trading/moverwatch/internal/storage"
	"github.com/ct-trading/moverwatch/internal/telegram"
	"github.com/ct-trading/moverwatch/internal/yahoo"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Optional .env for local development; CI injects real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s (%d tickers)", *configPath, len(cfg.AllTickers()))

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Failed to resolve exchange timezone: %v", err)
	}

	deps := app.Deps{
		Quotes: yahoo.NewClient(cfg.Yahoo.BaseURL, cfg.Yahoo.Timeout, yahoo.ClientConfig{
			MaxRetries:     cfg.Yahoo.MaxRetries,
			RetryDelayBase: cfg.Yahoo.RetryDelayBase,
		}),
		Ledger: ledger.New(cfg.Ledger.Path),
		Detector: detector.New(detector.Config{
			PremarketThreshold: cfg.Detector.PremarketThreshold,
			RegularThreshold:   cfg.Detector.RegularThreshold,
			VolumeMultiplier:   cfg.Detector.VolumeMultiplier,
		}),
		Builder:  digest.NewBuilder(cfg.Digest.DisplayCount),
		Location: loc,
	}

	// Run history is best-effort infrastructure: without it the daily ledger
	// reset is skipped and the run proceeds.
	store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
	if err != nil {
		logger.Warn("Run history unavailable: %v", err)
	} else {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
		deps.History = store
	}

	if cfg.Telegram.Enabled {
		sink, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		deps.Sink = sink
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled; digests will be logged")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, deps, cfg); err != nil {
		logger.Fatal("Run failed: %v", err)
	}
	logger.Info("Run completed")
}
