package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tablebook/internal/api"
	"tablebook/internal/database"
	"tablebook/internal/metrics"
	"tablebook/internal/session"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reservation API with health and metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts.configPath, cmd)
		},
	}
}

func runServe(ctx context.Context, configPath string, cmd *cobra.Command) error {
	a, err := loadApp(ctx, configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger
	a.subscribeAuditLog()

	sessions, rdb := buildSessionStore(ctx, a)
	if rdb != nil {
		defer rdb.Close()
	}

	if sqlite, ok := a.store.(*database.SQLiteStore); ok && cfg.Backup.Enabled {
		go database.NewBackupService(sqlite, cfg.Backup, logger).Start(ctx)
	}

	checks := map[string]api.Pinger{"store": a.store.Ping}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	go runHTTP(ctx, "health", cfg.Monitoring.HealthCheckPort, api.HealthHandler(checks), logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go runHTTP(ctx, "metrics", cfg.Monitoring.PrometheusPort, mux, logger)
	}

	server := api.NewServer(sessions, a.flow, a.engine, a.parser, a.store, a.bus, api.Config{
		APIKey:          cfg.HTTP.APIKey,
		RatePerSecond:   cfg.HTTP.RatePerSecond,
		RateBurst:       cfg.HTTP.RateBurst,
		MaxAlternatives: cfg.Reservation.MaxAlternatives,
		MinPartySize:    cfg.Reservation.MinPartySize,
		MaxPartySize:    cfg.Reservation.MaxPartySize,
		Timeout:         time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
	}, logger)

	if cfg.HTTP.APIKey == "" {
		logger.Warn().Msg("http.api_key is empty, API is unauthenticated")
	}
	logger.Info().
		Str("restaurant", cfg.Restaurant.Name).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.HTTP.Port).
		Msg("tablebook started")

	return runHTTP(ctx, "api", cfg.HTTP.Port, server.Handler(), logger)
}

// buildSessionStore prefers Redis with an in-memory fallback, or memory alone when Redis is not configured.
func buildSessionStore(ctx context.Context, a *app) (session.Store, *redis.Client) {
	timeout := a.cfg.SessionTimeout()
	memory := session.NewMemoryStore(timeout)
	go memory.RunCleanup(ctx, time.Duration(a.cfg.Session.CleanupIntervalSeconds)*time.Second)

	if a.cfg.Redis.Address == "" {
		a.logger.Info().Msg("redis not configured, sessions kept in memory")
		return memory, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Address,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.logger.Warn().Err(err).Msg("redis unreachable at startup, falling back to memory until it recovers")
	}
	failover := session.NewFailoverStore(session.NewRedisStore(rdb, timeout), memory, a.logger).
		WithRecoveryInterval(a.cfg.SessionRecoveryInterval())
	return failover, rdb
}

func runHTTP(ctx context.Context, name string, port int, handler http.Handler, logger *zerolog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("server", name).Int("port", port).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("http server error")
		return err
	}
	return nil
}
