package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httprate"
	"github.com/hibiken/asynq"

	"github.com/m4-gestao/m4-pdv/internal/app"
	"github.com/m4-gestao/m4-pdv/internal/observability"
	"github.com/m4-gestao/m4-pdv/internal/platform/cache"
	"github.com/m4-gestao/m4-pdv/internal/platform/db"
	"github.com/m4-gestao/m4-pdv/internal/pos"
	"github.com/m4-gestao/m4-pdv/internal/pricing"
	"github.com/m4-gestao/m4-pdv/internal/shared"
	"github.com/m4-gestao/m4-pdv/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, search cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	pricingRepo := pricing.NewRepository(pool)
	pricingService := pricing.NewService(pricingRepo, metrics)
	pricingHandler := pricing.NewHandler(logger, pricingService)

	posRepo := pos.NewRepository(pool)
	searchCache := pos.NewSearchCache(redisClient, cfg.SearchCacheTTL)
	posService := pos.NewService(posRepo, searchCache, idempotencyStore, auditLogger, jobClient, metrics, logger)
	searchLimiter := httprate.LimitByIP(cfg.SearchRatePerMin, time.Minute)
	posHandler := pos.NewHandler(logger, posService, searchLimiter)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		PricingHandler: pricingHandler,
		VendasHandler:  posHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
