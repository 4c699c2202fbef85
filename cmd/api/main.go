package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/consultare/practice-api/internal/api/router"
	"github.com/consultare/practice-api/internal/appointments"
	appconfig "github.com/consultare/practice-api/internal/config"
	"github.com/consultare/practice-api/internal/conflicts"
	"github.com/consultare/practice-api/internal/http/handlers"
	"github.com/consultare/practice-api/internal/locks"
	"github.com/consultare/practice-api/internal/observability/metrics"
	"github.com/consultare/practice-api/internal/tasks"
	"github.com/consultare/practice-api/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting practice API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = redisClient.Close() }()

	slotClient, err := appointments.New(appointments.Config{
		BaseURL:      cfg.SchedulingBaseURL,
		ClientID:     cfg.SchedulingClientID,
		ClientSecret: cfg.SchedulingClientSecret,
		Timeout:      cfg.SchedulingTimeout,
	})
	if err != nil {
		logger.Error("failed to create scheduling client", "error", err)
		os.Exit(1)
	}

	schedMetrics := metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer)
	taskStore := tasks.NewStore(pool)
	locker := locks.NewRedisLocker(redisClient, cfg.OverrideLockTTL)

	checker := conflicts.NewChecker(slotClient, taskStore, logger, schedMetrics)
	overrider := conflicts.NewOverrider(slotClient, taskStore, locker, logger, schedMetrics)

	healthHandler := handlers.NewHealthHandler(map[string]handlers.CheckFunc{
		"database": pool.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		ConflictsHandler:   conflicts.NewHandler(checker, overrider, logger),
		TasksHandler:       tasks.NewHandler(taskStore, logger),
		HealthHandler:      healthHandler,
		MetricsHandler:     promhttp.Handler(),
		DoctorJWTSecret:    cfg.DoctorJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
