package main

import (
	"context"
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

	"furnacewear/internal/api"
	"furnacewear/internal/logging"
	"furnacewear/internal/metrics"
	"furnacewear/internal/resultcache"
	"furnacewear/internal/store"
	"furnacewear/pkg/analysis"
	"furnacewear/pkg/config"
	"furnacewear/pkg/filecache"
	"furnacewear/pkg/ingest"
	"furnacewear/pkg/repair"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("furnacewear exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// run wires the service and serves until ctx is done or a listener fails.
// Resources opened here are released before it returns.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting furnacewear", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	st, err := store.Open(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.Storage.DatabasePath, err)
	}
	defer st.Close()

	files := filecache.New(filecache.Options{
		Workers: cfg.Ingest.Workers,
		Parse:   cfg.ParseOptions(),
		Logger:  logger,
	})
	if cfg.Storage.ScanFolder != "" {
		blobs, err := ingest.LoadDir(cfg.Storage.ScanFolder)
		if err != nil {
			logger.Warn("scan folder not loaded", slog.String("dir", cfg.Storage.ScanFolder), slog.Any("error", err))
		} else if _, err := files.Ingest(ctx, blobs); err != nil {
			return fmt.Errorf("ingest scan folder: %w", err)
		}
	}

	var provider resultcache.Provider = resultcache.NoopProvider{}
	if cfg.Cache.Enabled {
		redisProvider, err := resultcache.NewRedisProvider(ctx, resultcache.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			provider = redisProvider
		}
	}
	proposals := resultcache.NewProposalCache(provider, cfg.Cache.TTL, logger)
	defer proposals.Close()

	catalogue, err := cfg.Catalogue()
	if err != nil {
		return fmt.Errorf("material catalogue: %w", err)
	}
	calc := repair.NewCalculator(cfg.RepairConstants(), catalogue)

	params, err := analysis.NewParamsStore(cfg.AnalysisParams())
	if err != nil {
		return fmt.Errorf("analysis parameters: %w", err)
	}

	runner := analysis.NewRunner(calc, logger)
	defer runner.Close()

	server := api.New(api.Deps{
		Store:     st,
		Files:     files,
		Params:    params,
		Runner:    runner,
		Calc:      calc,
		Proposals: proposals,
		Logger:    logger,
	}, api.Options{
		BodyLimit: cfg.Server.MaxUploadMB << 20,
		AccessLog: true,
	})

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
		logger.Info("api server listening", slog.String("address", cfg.Server.Address))
		if err := server.Listen(cfg.Server.Address); err != nil {
			logger.Error("api server exited", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}

	logger.Info("furnacewear stopped")
	return nil
}
