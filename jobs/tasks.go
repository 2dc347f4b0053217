package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/carewell-health/dispensary/internal/channel"
	jobmetrics "github.com/carewell-health/dispensary/internal/jobs"
	"github.com/carewell-health/dispensary/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeBackorderNotify delivers a backorder notice to staff.
	TaskTypeBackorderNotify = "notify:backorder"
	// TaskTypeChannelReconcile runs a full channel inventory sweep.
	TaskTypeChannelReconcile = "channel:reconcile"
)

// MailerPort delivers one backorder notice.
type MailerPort interface {
	Send(notice notify.BackorderNotice) error
}

// ReconcilerPort runs one full reconciliation sweep.
type ReconcilerPort interface {
	Run(ctx context.Context) (channel.ReconcileReport, error)
}

// NewBackorderNotifyTask constructs the notification task.
func NewBackorderNotifyTask(notice notify.BackorderNotice) (*asynq.Task, error) {
	data, err := json.Marshal(notice)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBackorderNotify, data), nil
}

// NewChannelReconcileTask constructs the reconciliation task. The payload is
// empty; the sweep always covers the whole channel inventory.
func NewChannelReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskTypeChannelReconcile, nil)
}

// HandleBackorderNotify returns the handler for backorder notices. A payload
// that cannot be decoded is dropped rather than retried.
func HandleBackorderNotify(mailer MailerPort, logger *slog.Logger) asynq.HandlerFunc {
	metrics := jobmetrics.NewMetrics(nil)
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeBackorderNotify)
		var notice notify.BackorderNotice
		if err := json.Unmarshal(t.Payload(), &notice); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if err := mailer.Send(notice); err != nil {
			logger.Warn("send backorder notice failed",
				slog.Int64("record_id", notice.RecordID),
				slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("backorder notice sent",
			slog.Int64("record_id", notice.RecordID),
			slog.String("sku", notice.SKU))
		return tracker.End(nil)
	}
}

// HandleChannelReconcile returns the handler for reconciliation runs.
func HandleChannelReconcile(reconciler ReconcilerPort, logger *slog.Logger) asynq.HandlerFunc {
	metrics := jobmetrics.NewMetrics(nil)
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeChannelReconcile)
		report, err := reconciler.Run(ctx)
		if err != nil {
			logger.Error("channel reconciliation failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("channel reconciliation done",
			slog.Int("variants", report.Variants),
			slog.Int("applied", report.Applied),
			slog.Int("skipped", report.Skipped),
			slog.Int("errors", report.Errors))
		return tracker.End(nil)
	}
}
