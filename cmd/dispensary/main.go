package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/carewell-health/dispensary/internal/app"
	"github.com/carewell-health/dispensary/internal/audit"
	"github.com/carewell-health/dispensary/internal/catalog"
	"github.com/carewell-health/dispensary/internal/channel"
	"github.com/carewell-health/dispensary/internal/dispense"
	"github.com/carewell-health/dispensary/internal/notify"
	"github.com/carewell-health/dispensary/internal/observability"
	"github.com/carewell-health/dispensary/internal/platform/cache"
	"github.com/carewell-health/dispensary/internal/platform/db"
	"github.com/carewell-health/dispensary/internal/stock"
	"github.com/carewell-health/dispensary/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, notification dedupe disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()

	catalogRepo := catalog.NewRepository(pool)
	stockRepo := stock.NewRepository(pool)
	ledger := stock.NewLedger(stockRepo)
	resolver := catalog.NewResolver(catalogRepo)
	catalogService := catalog.NewService(catalogRepo, ledger)

	auditLedger := audit.NewLedger(pool, logger)
	saleRepo := dispense.NewRepository(pool)

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	notifier := notify.NewNotifier(queueClient, redisClient, logger, cfg.NotifyDedupeTTL)

	dispenseService := dispense.NewService(catalogService, ledger, saleRepo, notifier, logger)
	dispenseHandler := dispense.NewHandler(logger, dispenseService, metrics)

	applier := channel.NewApplier(resolver, ledger, saleRepo, auditLedger, logger, metrics)

	var reconcileEnqueuer channel.ReconcileEnqueuer
	if cfg.CommerceConfigured() {
		reconcileEnqueuer = queueClient
	}
	channelHandler := channel.NewHandler(logger, applier, catalogService, reconcileEnqueuer, cfg.FlowSharedSecret)

	stockHandler := stock.NewHandler(logger, ledger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		DispenseHandler: dispenseHandler,
		ChannelHandler:  channelHandler,
		StockHandler:    stockHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
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
