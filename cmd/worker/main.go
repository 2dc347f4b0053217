package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/carewell-health/dispensary/internal/app"
	"github.com/carewell-health/dispensary/internal/audit"
	"github.com/carewell-health/dispensary/internal/catalog"
	"github.com/carewell-health/dispensary/internal/channel"
	"github.com/carewell-health/dispensary/internal/channel/commerce"
	"github.com/carewell-health/dispensary/internal/dispense"
	"github.com/carewell-health/dispensary/internal/notify"
	"github.com/carewell-health/dispensary/internal/platform/db"
	"github.com/carewell-health/dispensary/internal/stock"
	"github.com/carewell-health/dispensary/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.BackorderNotifyTo)

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskTypeBackorderNotify, Handler: jobs.HandleBackorderNotify(mailer, logger)},
	}
	var cron []jobs.CronRegistration

	if cfg.CommerceConfigured() {
		catalogRepo := catalog.NewRepository(pool)
		stockRepo := stock.NewRepository(pool)
		ledger := stock.NewLedger(stockRepo)
		resolver := catalog.NewResolver(catalogRepo)
		catalogService := catalog.NewService(catalogRepo, ledger)
		auditLedger := audit.NewLedger(pool, logger)
		saleRepo := dispense.NewRepository(pool)

		applier := channel.NewApplier(resolver, ledger, saleRepo, auditLedger, logger, nil)
		commerceClient := commerce.NewClient(cfg.CommerceStore, cfg.CommerceAdminToken, cfg.CommerceAPIVersion)
		reconciler := channel.NewReconciler(commerceClient, catalogService, applier, logger)

		handlers = append(handlers, jobs.TaskHandler{
			Type:    jobs.TaskTypeChannelReconcile,
			Handler: jobs.HandleChannelReconcile(reconciler, logger),
		})
		cron = append(cron, jobs.CronRegistration{
			Spec:    "0 3 * * *",
			Task:    jobs.NewChannelReconcileTask(),
			Options: []asynq.Option{asynq.MaxRetry(2)},
		})
	} else {
		logger.Info("commerce api not configured, reconciliation disabled")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
