// Package audit keeps the append-only trail of inbound inventory events.
// It is observability, not correctness-critical: append failures are logged
// and swallowed so they can never abort the applier pipeline.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status is the recorded outcome of an inbound event. The terminal status
// is written exactly once per event.
type Status string

const (
	// StatusReceived marks the raw payload as seen, before processing.
	StatusReceived Status = "received"
	// StatusApplied marks a successfully applied quantity.
	StatusApplied Status = "applied"
	// StatusNoMatch marks an event whose key resolved to no product.
	StatusNoMatch Status = "no_match"
	// StatusError marks a malformed or failed event.
	StatusError Status = "error"
)

// Entry is one appended record.
type Entry struct {
	EventID   uuid.UUID
	Raw       []byte
	SKU       string
	Location  string
	Available *int
	ProductID *uuid.UUID
	Status    Status
	Detail    string
	At        time.Time
}

// Ledger appends entries to channel_events. Append-only: nothing here
// updates or deletes.
type Ledger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLedger constructs Ledger.
func NewLedger(pool *pgxpool.Pool, logger *slog.Logger) *Ledger {
	return &Ledger{pool: pool, logger: logger}
}

// Append writes one entry. Failures are logged at Warn and discarded.
func (l *Ledger) Append(ctx context.Context, entry Entry) {
	if l == nil || l.pool == nil {
		return
	}
	raw := entry.Raw
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO channel_events (event_id, raw, sku, loc_code, available, product_id, status, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))`,
		entry.EventID, raw, entry.SKU, entry.Location, entry.Available, entry.ProductID,
		string(entry.Status), entry.Detail, nullTime(entry.At))
	if err != nil && l.logger != nil {
		l.logger.Warn("append audit entry failed",
			slog.String("event_id", entry.EventID.String()),
			slog.String("status", string(entry.Status)),
			slog.Any("error", err))
	}
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
