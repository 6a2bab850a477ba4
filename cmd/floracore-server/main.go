// Command floracore-server runs the flower shop HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"floracore/internal/api"
	"floracore/internal/blob"
	"floracore/internal/core"
	"floracore/internal/reports"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := core.NewDefaultRulesEngine()
	store, err := core.OpenPersistentStore(engine)
	if err != nil {
		return err
	}

	metrics, err := core.NewPrometheusMetricsRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	svc := core.NewService(store,
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
	)

	if strings.EqualFold(os.Getenv("FLORACORE_SEED"), "true") {
		if err := svc.Seed(ctx); err != nil {
			return err
		}
	}

	blobStore, err := blob.Open(ctx)
	if err != nil {
		return err
	}
	worker := reports.NewWorker(reports.NewBuilder(svc), blobStore, reports.NewMemoryAuditLog())
	worker.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := worker.Stop(shutdownCtx); err != nil {
			logger.Warn("export worker stop", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewHandler(svc,
		api.WithExportScheduler(worker),
		api.WithLogger(logger),
	))
	mux.Handle("/metrics", promhttp.Handler())

	addr := os.Getenv("FLORACORE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
