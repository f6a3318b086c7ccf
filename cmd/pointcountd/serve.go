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

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/hupe1980/pointcount"
	"github.com/hupe1980/pointcount/internal/observability"
	"github.com/hupe1980/pointcount/resource"
	"github.com/hupe1980/pointcount/server"
	"github.com/hupe1980/pointcount/snapshot"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API.",
		Long: `serve starts the HTTP API and, when configured, a Prometheus listener.
The database starts empty unless --restore loads the latest snapshot. With a
snapshot backend configured, a snapshot is saved every --snapshot-interval and
on shutdown.`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, root.cfg)
		},
	}
}

func serve(ctx context.Context, cfg Config) error {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, logger.Logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger.Logger)

	collector, err := observability.NewCollector(nil)
	if err != nil {
		return err
	}

	rc := newResourceController(cfg)

	st, err := openStore(cfg.Store, logger.Logger)
	if err != nil {
		return err
	}

	db := pointcount.New(st,
		pointcount.WithLogger(logger),
		pointcount.WithMetricsCollector(collector),
		pointcount.WithTracer(otel.Tracer("github.com/hupe1980/pointcount")),
		pointcount.WithResourceController(rc),
		pointcount.WithCounterOptions(counterOptions(cfg.Counter)...),
	)
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("close database", "error", err)
		}
	}()

	snaps, err := setupSnapshots(ctx, cfg, db, rc, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: server.New(db, func(o *server.Options) {
			o.BasePath = cfg.HTTP.BasePath
			o.DefaultPageSize = cfg.HTTP.DefaultPageSize
			o.RequestsPerSecond = cfg.HTTP.RequestsPerSecond
			o.Burst = cfg.HTTP.Burst
			o.Logger = logger.Logger
			o.Tracer = otel.Tracer("github.com/hupe1980/pointcount/server")
			o.Metrics = collector
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := serveMetrics(cfg.HTTP.MetricsAddr, collector, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving HTTP API", "addr", cfg.HTTP.Addr, "base_path", cfg.HTTP.BasePath, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if snaps != nil && cfg.Snapshot.Interval > 0 {
		go snapshotLoop(ctx, snaps, db, cfg.Snapshot.Interval, logger)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	if snaps != nil {
		if _, err := saveSnapshot(shutdownCtx, snaps, db); err != nil {
			return err
		}
	}
	return nil
}

// setupSnapshots returns nil when snapshots are disabled. It restores the
// latest snapshot when asked to.
func setupSnapshots(ctx context.Context, cfg Config, db *pointcount.DB, rc *resource.Controller, logger *pointcount.Logger) (*snapshot.Manager, error) {
	blobs, err := openBlobStore(ctx, cfg.Snapshot)
	if err != nil || blobs == nil {
		return nil, err
	}
	if _, ok := db.Store().(snapshotStore); !ok {
		return nil, fmt.Errorf("snapshots require the memory store, not %q", cfg.Store.Backend)
	}

	snaps, err := newSnapshotManager(blobs, cfg.Snapshot, rc, logger.Logger)
	if err != nil {
		return nil, err
	}

	if cfg.Snapshot.Restore {
		man, err := restoreSnapshot(ctx, snaps, db)
		switch {
		case errors.Is(err, snapshot.ErrNoSnapshot):
			logger.Info("no snapshot to restore; starting empty")
		case err != nil:
			return nil, err
		default:
			logger.Info("restored snapshot", "id", man.ID, "points", man.Points)
		}
	}
	return snaps, nil
}

func snapshotLoop(ctx context.Context, snaps *snapshot.Manager, db *pointcount.DB, every time.Duration, logger *pointcount.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := saveSnapshot(ctx, snaps, db); err != nil {
				logger.Error("periodic snapshot failed", "error", err)
			}
		}
	}
}

func serveMetrics(addr string, collector *observability.Collector, logger *pointcount.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server exited", "error", err)
		}
	}()

	logger.Info("serving Prometheus metrics", "addr", addr)
	return srv
}
