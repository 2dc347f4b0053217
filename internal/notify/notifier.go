// Package notify delivers best-effort backorder notifications. Nothing in
// this package may fail a dispense or backorder outcome: errors are logged
// and discarded at this boundary.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// BackorderNotice describes a recorded backorder for staff follow-up.
type BackorderNotice struct {
	RecordID    int64  `json:"record_id"`
	PatientID   string `json:"patient_id"`
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	Location    string `json:"location"`
	Doctor      string `json:"doctor"`
	Remarks     string `json:"remarks"`
	CreatedAt   string `json:"created_at"`
}

// EnqueuerPort submits the notice to the background queue.
type EnqueuerPort interface {
	EnqueueBackorderNotice(ctx context.Context, notice BackorderNotice) error
}

// Notifier fans recorded backorders out to the queue, with a redis dedupe
// key so a retried confirmation does not notify twice.
type Notifier struct {
	queue     EnqueuerPort
	redis     *redis.Client
	logger    *slog.Logger
	dedupeTTL time.Duration
}

// NewNotifier builds Notifier. The redis client may be nil, in which case
// deduplication is skipped.
func NewNotifier(queue EnqueuerPort, redisClient *redis.Client, logger *slog.Logger, dedupeTTL time.Duration) *Notifier {
	if dedupeTTL <= 0 {
		dedupeTTL = 24 * time.Hour
	}
	return &Notifier{queue: queue, redis: redisClient, logger: logger, dedupeTTL: dedupeTTL}
}

// BackorderRecorded enqueues a notification for the notice. Best-effort.
func (n *Notifier) BackorderRecorded(ctx context.Context, notice BackorderNotice) {
	if n == nil || n.queue == nil {
		return
	}
	if n.redis != nil && notice.RecordID != 0 {
		key := fmt.Sprintf("notify:backorder:%d", notice.RecordID)
		set, err := n.redis.SetNX(ctx, key, 1, n.dedupeTTL).Result()
		if err != nil {
			n.logger.Warn("notify dedupe check failed", slog.Any("error", err))
		} else if !set {
			return
		}
	}
	if err := n.queue.EnqueueBackorderNotice(ctx, notice); err != nil {
		n.logger.Warn("enqueue backorder notice failed",
			slog.Int64("record_id", notice.RecordID),
			slog.Any("error", err))
	}
}
