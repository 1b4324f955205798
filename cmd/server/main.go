package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nelssec/appguard/internal/anomaly"
	"github.com/nelssec/appguard/internal/api"
	"github.com/nelssec/appguard/internal/cache"
	"github.com/nelssec/appguard/internal/compliance"
	"github.com/nelssec/appguard/internal/config"
	"github.com/nelssec/appguard/internal/engine"
	"github.com/nelssec/appguard/internal/features"
	"github.com/nelssec/appguard/internal/scheduler"
	"github.com/nelssec/appguard/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	st, err := store.New(store.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	forest, err := anomaly.LoadOrTrain(cfg.Model.Path, anomaly.Config{
		Trees:         cfg.Model.Trees,
		SubsampleSize: cfg.Model.SubsampleSize,
		Contamination: cfg.Model.Contamination,
		Seed:          cfg.Model.Seed,
	}, anomaly.TrainOptions{
		Samples:    cfg.Model.TrainingSamples,
		Dimensions: features.Dimensions,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to load anomaly model: %v", err)
	}
	model := anomaly.NewHandle(forest, cfg.Model.Path, logger)

	eng := engine.New(model, compliance.NewChecker(compliance.Config{
		ExcessiveTransmissionBytes: cfg.Engine.ExcessiveTransmissionBytes,
	}), engine.Config{
		RiskBaseline:          cfg.Engine.RiskBaseline,
		RiskMultiplier:        cfg.Engine.RiskMultiplier,
		HighTransmissionBytes: cfg.Engine.HighTransmissionBytes,
	}, logger)

	opts := []api.ServerOption{api.WithLogger(logger)}

	statsCache, err := cache.New(cache.Config{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		StatsTTL: cfg.Redis.StatsTTL,
	})
	if err != nil {
		logger.Warn("redis unavailable, stats caching disabled", "error", err)
	} else {
		defer statsCache.Close()
		opts = append(opts, api.WithStatsCache(statsCache))
	}

	server, err := api.NewServer(cfg, st, eng, opts...)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		if err := server.AuthService().EnsureAdmin(ctx, email, os.Getenv("ADMIN_PASSWORD")); err != nil {
			logger.Error("admin bootstrap failed", "error", err)
		}
	}

	jobs := scheduler.New(logger)
	if cfg.Model.ReloadSchedule != "" {
		if err := jobs.AddJob("model-reload", cfg.Model.ReloadSchedule, model.Reload); err != nil {
			log.Fatalf("Failed to schedule model reload: %v", err)
		}
	}
	if statsCache != nil && cfg.Redis.WarmSchedule != "" {
		if err := jobs.AddJob("stats-warm", cfg.Redis.WarmSchedule, func() error {
			stats, err := st.GetStats(ctx)
			if err != nil {
				return err
			}
			return statsCache.SetStats(ctx, stats)
		}); err != nil {
			log.Fatalf("Failed to schedule stats warmup: %v", err)
		}
	}
	jobs.Start()
	defer jobs.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting appguard server", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
