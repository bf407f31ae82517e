package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-synth/internal/api"
	"github.com/miradorstack/mirador-synth/internal/cache"
	"github.com/miradorstack/mirador-synth/internal/config"
	"github.com/miradorstack/mirador-synth/internal/engine"
	"github.com/miradorstack/mirador-synth/internal/metrics"
	"github.com/miradorstack/mirador-synth/internal/models"
	"github.com/miradorstack/mirador-synth/internal/scheduler"
	"github.com/miradorstack/mirador-synth/internal/services"
	"github.com/miradorstack/mirador-synth/internal/store"
	"github.com/miradorstack/mirador-synth/internal/utils"
)

func main() {
	var (
		configPath  string
		live        bool
		seed        int64
		window      string
		start, end  string
		dumpDataset bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&live, "live", false, "Keep running and refresh the dataset on the configured schedule")
	flag.Int64Var(&seed, "seed", 0, "Kernel seed (overrides config; 0 keeps the configured value)")
	flag.StringVar(&window, "window", "", "Window ending now to generate, e.g. 24h or 7d (overrides config)")
	flag.StringVar(&start, "start", "", "RFC3339 range start for one-shot mode (requires -end)")
	flag.StringVar(&end, "end", "", "RFC3339 range end for one-shot mode (requires -start)")
	flag.BoolVar(&dumpDataset, "dataset", false, "Print the full dataset instead of the report in one-shot mode")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}
	if seed != 0 {
		cfg.Generation.Seed = seed
	}
	if window != "" {
		cfg.Generation.Window = window
	}
	if live {
		cfg.Generation.Live = true
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	windowDuration, err := cfg.WindowDuration()
	if err != nil {
		logger.Error("invalid generation window", slog.Any("error", err))
		os.Exit(1)
	}

	rules, err := engine.LoadRules(cfg.Alerts.RulesPath, logger)
	if err != nil {
		logger.Error("failed to load rule pack", slog.Any("error", err))
		os.Exit(1)
	}

	eng, err := engine.New(cfg.EngineConfig(rules), logger)
	if err != nil {
		logger.Error("invalid generator configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if !cfg.Generation.Live {
		r := models.LastWindow(time.Now().UTC().Truncate(time.Minute), windowDuration)
		if start != "" || end != "" {
			if r, err = parseRange(start, end); err != nil {
				logger.Error("invalid range", slog.Any("error", err))
				os.Exit(2)
			}
		}
		if err := runOnce(eng, models.GenerationRequest{TimeRange: r, Seed: cfg.Generation.Seed}, dumpDataset); err != nil {
			logger.Error("generation failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	logger.Info("starting mirador-synth",
		slog.String("health_address", cfg.Server.HealthAddress),
		slog.String("schedule", cfg.Generation.RefreshSchedule),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}
	defer cacheProvider.Close()

	snapshotKey := ""
	if cfg.Cache.Enabled {
		snapshotKey = cfg.Cache.SnapshotKey
	}
	dataStore := store.New(logger)
	simulation := services.NewSimulationService(logger, eng, dataStore, cacheProvider, services.Options{
		Window:      windowDuration,
		Seed:        cfg.Generation.Seed,
		SnapshotKey: snapshotKey,
		SnapshotTTL: cfg.Cache.SnapshotTTL,
	})

	server, err := api.NewServer(cfg.Server)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}
	simulation.SetStatusReporter(server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if restored, err := simulation.Restore(ctx); err != nil {
		logger.Warn("snapshot restore failed", slog.Any("error", err))
	} else if restored {
		logger.Info("store warmed from snapshot", slog.Uint64("version", dataStore.Version()))
	}

	refresher, err := scheduler.New(cfg.Generation.RefreshSchedule, simulation.Refresh, logger,
		scheduler.WithOnSkip(metrics.IncRefreshSkipped),
		scheduler.WithTimeout(cfg.Generation.RefreshTimeout),
	)
	if err != nil {
		logger.Error("invalid refresh schedule", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	if err := refresher.RefreshNow(ctx); err != nil {
		logger.Warn("initial refresh failed", slog.Any("error", err))
	}
	if err := refresher.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		stop()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := refresher.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler shutdown", slog.Any("error", err))
	}
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("mirador-synth stopped", slog.Int64("refreshes", refresher.Runs()), slog.Int64("skipped", refresher.Skipped()))
}

// runOnce generates a single dataset and writes its report, or the dataset
// itself, to stdout as JSON.
func runOnce(eng *engine.Engine, req models.GenerationRequest, dumpDataset bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ds, err := eng.Generate(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if dumpDataset {
		return enc.Encode(ds)
	}
	return enc.Encode(engine.Summarize(ds))
}

func parseRange(start, end string) (models.TimeRange, error) {
	from, err := utils.ParseRFC3339(start)
	if err != nil {
		return models.TimeRange{}, fmt.Errorf("start: %w", err)
	}
	to, err := utils.ParseRFC3339(end)
	if err != nil {
		return models.TimeRange{}, fmt.Errorf("end: %w", err)
	}
	r := models.TimeRange{Start: from.UTC(), End: to.UTC()}
	return r, r.Validate()
}
