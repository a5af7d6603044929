package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/barber-agent/cmd/mainconfig"
	"github.com/wolfman30/barber-agent/internal/api/router"
	"github.com/wolfman30/barber-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/barber-agent/internal/config"
	"github.com/wolfman30/barber-agent/internal/observability/metrics"
	"github.com/wolfman30/barber-agent/pkg/logging"
)

func main() {
	// Local development reads .env; production relies on the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting barber agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"classifier", cfg.ClassifierProvider,
		"session_store", cfg.SessionStore,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsHandler, conversationMetrics := setupMetrics()

	deps := bootstrap.ConversationDeps{
		Metrics: conversationMetrics,
		LoadAWS: mainconfig.LoadAWSConfig,
	}
	if cfg.SessionStore == appconfig.SessionStoreRedis {
		if client := bootstrap.BuildRedisClient(ctx, cfg, logger, true); client != nil {
			deps.Redis = client
			defer client.Close()
		}
	}
	if pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger); pool != nil {
		deps.Pool = pool
		defer pool.Close()
	}

	conv, err := bootstrap.BuildConversation(ctx, cfg, deps, logger)
	if err != nil {
		logger.Error("failed to build conversation engine", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := conv.Close(); err != nil {
			logger.Warn("failed to close llm clients", "error", err)
		}
	}()

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conv.Handler,
		MetricsHandler:      metricsHandler,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitRPS:        cfg.RateLimitRPS,
		RateLimitBurst:      cfg.RateLimitBurst,
	})

	// WriteTimeout covers a classifier call plus a phrasing call.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.ClassifierTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.ConversationMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewConversationMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), m
}

// connectPostgresPool returns nil when no URL is configured or the database is
// unreachable; transcripts are optional.
func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Warn("failed to create postgres pool; transcripts disabled", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Warn("postgres not reachable; transcripts disabled", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("connected to postgres")
	return pool
}
