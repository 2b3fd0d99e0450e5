package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"brainbridge/internal/ledger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var pingPath string

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run health and metrics endpoints plus ledger maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			l, err := a.openLedger()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go startHealthServer(ctx, a.cfg.HealthCheckPort(), a.readiness(l, pingPath), a.logger)

			if a.cfg.Monitoring.PrometheusEnabled {
				a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				go startMetricsServer(ctx, a.cfg.PrometheusPort(), a.registry, a.logger)
			}

			backup := ledger.NewBackupService(l, ledger.BackupConfig{
				Enabled:       a.cfg.Backup.Enabled,
				StoragePath:   a.cfg.Backup.Path,
				Interval:      a.cfg.BackupInterval(),
				RetentionDays: a.cfg.Backup.RetentionDays,
			}, a.logger)
			go backup.Start(ctx)

			a.logger.Info().Msg("bridge maintenance started")
			runMaintenance(ctx, l, a.cfg.LedgerRetention(), time.Hour, a.logger)
			return nil
		},
	}

	c.Flags().StringVar(&pingPath, "ping-path", "", "backend path checked by /readyz (disabled when empty)")
	return c
}

// readiness reports the first dependency that does not answer.
func (a *app) readiness(l *ledger.Ledger, pingPath string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := l.Ping(ctx); err != nil {
			return fmt.Errorf("ledger not ready: %w", err)
		}
		if err := a.cache.Ping(ctx); err != nil {
			return fmt.Errorf("redis not ready: %w", err)
		}
		if pingPath != "" {
			if err := a.api.Ping(ctx, pingPath); err != nil {
				return fmt.Errorf("backend not ready: %w", err)
			}
		}
		return nil
	}
}

// runMaintenance prunes old attempts and reports unresolved captured payments
// every interval until ctx is done.
func runMaintenance(ctx context.Context, l *ledger.Ledger, retention, interval time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := l.DeleteOlderThan(ctx, retention); err != nil {
			logger.Error().Err(err).Msg("ledger prune failed")
		} else if n > 0 {
			logger.Info().Int64("deleted", n).Msg("pruned ledger")
		}

		if open, err := l.ListUnreconciled(ctx); err != nil {
			logger.Error().Err(err).Msg("ledger scan failed")
		} else if len(open) > 0 {
			logger.Warn().Int("count", len(open)).Msg("captured payments awaiting reconciliation")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func startHealthServer(ctx context.Context, port int, ready func(context.Context) error, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", readyHandler(ctx, ready))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func readyHandler(ctx context.Context, ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := ready(ctxPing); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}

func startMetricsServer(ctx context.Context, port int, reg *prometheus.Registry, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
