package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/evbot/config"
	"github.com/alejandrodnm/evbot/internal/adapters/notify"
	"github.com/alejandrodnm/evbot/internal/adapters/polymarket"
	"github.com/alejandrodnm/evbot/internal/adapters/research"
	"github.com/alejandrodnm/evbot/internal/adapters/simulated"
	"github.com/alejandrodnm/evbot/internal/adapters/storage"
	"github.com/alejandrodnm/evbot/internal/application/cache"
	"github.com/alejandrodnm/evbot/internal/application/engine"
	"github.com/alejandrodnm/evbot/internal/application/executor"
	"github.com/alejandrodnm/evbot/internal/domain"
	"github.com/alejandrodnm/evbot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one decision cycle and exit")
	dryRun := flag.Bool("dry-run", false, "simulate order execution, never touch the exchange")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full per-market table (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("evbot starting",
		"config", *configPath,
		"interval", cfg.CycleInterval(),
		"dry_run", *dryRun,
		"once", *once,
		"capital", cfg.Capital.TotalUSD,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	researcher, err := research.NewClaude(research.Config{
		BaseURL: cfg.API.AnthropicBase,
		APIKey:  cfg.API.AnthropicAPIKey,
		Model:   cfg.Research.Model,
		Timeout: time.Duration(cfg.Research.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		slog.Error("failed to create researcher", "err", err)
		os.Exit(1)
	}

	researchCache := cache.New(store, researcher, cache.Config{
		TTL:              cfg.ResearchTTL(),
		MaxPerCycle:      cfg.Research.MaxPerCycle,
		FetchesPerMinute: cfg.Research.FetchesPerMinute,
		FetchTimeout:     time.Duration(cfg.Research.TimeoutSeconds) * time.Second,
	})

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)
	markets := polymarket.NewMarketProvider(client, polymarket.MarketFilter{
		Limit:              cfg.Markets.Limit,
		MinLiquidity:       cfg.Markets.MinLiquidity,
		MinPrice:           cfg.Markets.MinPrice,
		MaxPrice:           cfg.Markets.MaxPrice,
		MinHoursToResolve:  cfg.Markets.MinHoursToResolve,
		ExcludedCategories: cfg.Markets.ExcludedCategories,
	})

	// Dry-run sustituye solo el exchange: el resto del pipeline corre igual.
	var exchange ports.Exchange
	if *dryRun {
		exchange = simulated.NewExchange()
	} else {
		exchange, err = polymarket.NewExchange(client, polymarket.Credentials{
			Address:    cfg.API.PolyAddress,
			APIKey:     cfg.API.PolyAPIKey,
			Secret:     cfg.API.PolySecret,
			Passphrase: cfg.API.PolyPassphrase,
		})
		if err != nil {
			slog.Error("failed to create exchange", "err", err)
			os.Exit(1)
		}
	}

	capital := domain.NewCapitalState(cfg.Capital.TotalUSD)
	exec := executor.New(exchange, capital, executor.Config{
		MaxAttempts: cfg.Engine.MaxRetryAttempts,
		BackoffBase: cfg.RetryBackoff(),
	})

	notifier := notify.NewConsole(*table)

	eng := engine.New(engine.Config{
		Interval: cfg.CycleInterval(),
		EV: domain.EVConfig{
			TransactionCost: cfg.EV.TransactionCost,
			MinEdge:         cfg.EV.MinEdge,
			MinConfidence:   cfg.EV.MinConfidence,
			MaxStake:        cfg.EV.MaxSingleStake,
		},
		Risk: domain.RiskConfig{
			ReserveMinimum:      cfg.Risk.ReserveMinimum,
			PerMarketCap:        cfg.Risk.PerMarketCap,
			GlobalCap:           cfg.Risk.GlobalCap,
			LiquidityFloorRatio: cfg.Risk.LiquidityFloorRatio,
			DailyStakeCap:       cfg.Risk.DailyStakeCap,
		},
		ResearchWorkers: cfg.Engine.ResearchWorkers,
		MemoryDepth:     cfg.Engine.MemoryDepth,
		CashFloorRatio:  cfg.Capital.CashFloorRatio,
		DryRun:          *dryRun,
		RunOnce:         *once,
	}, markets, researchCache, exec, capital, store, notifier)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	researchCache.Prune(ctx)

	if err := eng.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("evbot stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
