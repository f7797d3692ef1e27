// cmd/worker/main.go
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

	"github.com/charmbracelet/log"

	"github.com/lco77/netops-portal/internal/config"
	"github.com/lco77/netops-portal/internal/infra"
	"github.com/lco77/netops-portal/internal/metrics"
)

func main() {
	if err := config.LoadConfig(); err != nil {
		log.New(os.Stderr).Fatalf("Failed to load configuration: %v", err)
	}
	cfg := &config.AppConfig

	config.ConfigureLogging(cfg.LogLevel)
	if cfg.DevMode {
		log.Fatal("DEV_MODE uses an in-process Redis; run the embedded worker in the server instead")
	}
	if cfg.UsesDefaultSecret() {
		log.Warn("Using default SECRET_KEY; job credentials from a server with a different key will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inf, err := infra.Setup(ctx, cfg, false)
	if err != nil {
		log.Fatalf("Infrastructure setup failed: %v", err)
	}
	defer inf.Close()

	w, err := inf.Worker(cfg)
	if err != nil {
		log.Fatalf("Failed to build worker: %v", err)
	}

	var metricsSrv *http.Server
	if cfg.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.WorkerMetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Infof("Worker metrics listening on %s", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	log.Info("Worker started", "broker", inf.Broker.Type(), "queue", cfg.TaskQueue,
		"concurrency", cfg.WorkerConcurrency, "time_limit", cfg.TaskTimeLimit())
	w.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Info("Worker stopped")
}
