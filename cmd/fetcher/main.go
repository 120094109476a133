package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/cvetrack-backend/internal/jobs/fetcher"
	"github.com/yungbote/cvetrack-backend/internal/observability"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

func main() {
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := fetcher.LoadConfig(log)
	metrics := observability.NewMetrics()
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	runner := fetcher.NewRunner(
		cfg,
		log,
		fetcher.NewGitSyncer(cfg, log),
		fetcher.NewUploader(cfg, log),
		metrics,
	)

	log.Info("Fetcher started", "api_url", cfg.APIURL, "interval", cfg.Interval)
	if err := runner.Run(ctx); err != nil {
		log.Error("Fetcher exited", "error", err)
		os.Exit(1)
	}
	log.Info("Fetcher stopped by signal")
}
