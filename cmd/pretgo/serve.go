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

	"pretgo/internal/api"
	"pretgo/internal/config"
	"pretgo/internal/database"
	"pretgo/internal/domain"
	"pretgo/internal/events"
	"pretgo/internal/logging"
	"pretgo/internal/metrics"
	"pretgo/internal/repository"
	"pretgo/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the backup and alert workers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := openApp("server")
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	sessions := sessionStore(redisClient, logging.Component(a.base, "sessions"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, logger)

	alerts := worker.NewAlertWorker(a.scanFunc(), cfg.Alerts.ScanInterval, logging.Component(a.base, "alerts"))
	subscribeLoanEvents(ctx, a.bus, alerts, logging.Component(a.base, "events"))
	go alerts.Start(ctx)

	backups := database.NewBackupService(a.db, cfg.Backup, logging.Component(a.base, "backup"))
	go backups.Start(ctx)

	apiLogger := logging.Component(a.base, "api")
	auth := api.NewAdminAuth(cfg.Admin, sessions, a.svc.Settings, apiLogger)
	srv := api.NewServer(cfg.API, a.svc, a.db, auth, a.layout, a.layout.UploadsDir, apiLogger)
	httpServer := api.NewHTTPServer(cfg.API.HTTP, srv.Handler(), apiLogger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}

// initRedis returns nil when redis is not configured or not reachable;
// sessions then live in memory only.
func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-memory sessions")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func sessionStore(client *redis.Client, logger *zerolog.Logger) domain.SessionStore {
	memory := repository.NewMemorySessionStore()
	if client == nil {
		return memory
	}
	return repository.NewFailoverSessionStore(repository.NewRedisSessionStore(client), memory, logger)
}

// subscribeLoanEvents logs every loan change and refreshes the loan gauges
// right away instead of waiting for the next scan.
func subscribeLoanEvents(ctx context.Context, bus *events.EventBus, alerts *worker.AlertWorker, logger *zerolog.Logger) {
	bus.OnError(func(ev *events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})

	bus.Subscribe(func(ev *events.Event) error {
		payload, err := ev.DecodeLoan()
		if err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		logger.Info().
			Str("event", ev.Type).
			Int64("loan_id", payload.LoanID).
			Int64("person_id", payload.PersonID).
			Str("description", payload.Description).
			Bool("admin", payload.Admin).
			Msg("loan event")
		return alerts.RunOnce(ctx)
	}, events.LoanEvents...)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
