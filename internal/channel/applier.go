package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/carewell-health/dispensary/internal/audit"
	"github.com/carewell-health/dispensary/internal/catalog"
	"github.com/carewell-health/dispensary/internal/observability"
	"github.com/carewell-health/dispensary/internal/stock"
)

// ResolverPort maps the event's external key to a product.
type ResolverPort interface {
	Resolve(ctx context.Context, externalKey string) (catalog.Product, error)
}

// LedgerPort is the slice of the stock ledger the applier needs.
type LedgerPort interface {
	EnsureRow(ctx context.Context, productID uuid.UUID, loc stock.Location) error
	EnsureAllRows(ctx context.Context, productID uuid.UUID) error
	ApplyAbsolute(ctx context.Context, productID uuid.UUID, loc stock.Location, qty int) (int, error)
}

// AdjusterPort records the signed delta an external set produced.
type AdjusterPort interface {
	AppendAdjustment(ctx context.Context, productID uuid.UUID, loc stock.Location, delta int, note string) error
}

// AuditPort appends event trail rows. Implementations must never fail the
// caller; see audit.Ledger.
type AuditPort interface {
	Append(ctx context.Context, entry audit.Entry)
}

// Applier runs inbound inventory events through a fixed pipeline: validate,
// normalize location, record receipt, resolve identity, ensure the ledger
// row, set the absolute quantity, record the delta, and write exactly one
// terminal audit row.
type Applier struct {
	resolver ResolverPort
	ledger   LedgerPort
	adjuster AdjusterPort
	audit    AuditPort
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewApplier constructs the applier.
func NewApplier(resolver ResolverPort, ledger LedgerPort, adjuster AdjusterPort, auditLedger AuditPort, logger *slog.Logger, metrics *observability.Metrics) *Applier {
	return &Applier{
		resolver: resolver,
		ledger:   ledger,
		adjuster: adjuster,
		audit:    auditLedger,
		logger:   logger,
		metrics:  metrics,
	}
}

// Apply processes one pushed event. A no-match outcome is not an error: the
// event is audited and skipped so the channel does not retry it.
func (a *Applier) Apply(ctx context.Context, evt Event) (Result, error) {
	return a.apply(ctx, evt, false)
}

// ApplySnapshot is Apply for reconciliation pulls. It additionally ensures
// the product has a row at every known location, since a full sweep is the
// moment a product becomes visible everywhere.
func (a *Applier) ApplySnapshot(ctx context.Context, evt Event) (Result, error) {
	return a.apply(ctx, evt, true)
}

// Reject writes the terminal error row for a payload that could not even be
// parsed, so malformed bodies still leave a trail.
func (a *Applier) Reject(ctx context.Context, eventID uuid.UUID, raw []byte, detail string) Result {
	res := Result{Status: audit.StatusError, Detail: detail}
	a.finish(ctx, Event{ID: eventID, Raw: raw}, res)
	return res
}

func (a *Applier) apply(ctx context.Context, evt Event, ensureAll bool) (Result, error) {
	res, err := a.process(ctx, evt, ensureAll)
	a.finish(ctx, evt, res)
	return res, err
}

// process runs every stage up to, but not including, the terminal audit row.
func (a *Applier) process(ctx context.Context, evt Event, ensureAll bool) (Result, error) {
	sku := strings.TrimSpace(evt.SKU)
	if sku == "" {
		return Result{Status: audit.StatusError, Detail: "missing sku"}, ErrMalformed
	}
	if evt.Available < 0 {
		return Result{Status: audit.StatusError, Detail: fmt.Sprintf("negative available quantity %d", evt.Available)}, ErrMalformed
	}
	loc, ok := stock.NormalizeLocation(evt.LocationCode)
	if !ok {
		return Result{Status: audit.StatusError, Detail: fmt.Sprintf("unrecognized location %q", evt.LocationCode)}, ErrMalformed
	}

	a.audit.Append(ctx, audit.Entry{
		EventID:   evt.ID,
		Raw:       evt.Raw,
		SKU:       sku,
		Location:  string(loc),
		Available: &evt.Available,
		Status:    audit.StatusReceived,
	})

	product, err := a.resolver.Resolve(ctx, sku)
	if err != nil {
		if catalog.IsNotFound(err) {
			return Result{Status: audit.StatusNoMatch, Location: loc, Detail: "no matching product"}, nil
		}
		return Result{Status: audit.StatusError, Location: loc, Detail: err.Error()}, fmt.Errorf("resolve %q: %w", sku, err)
	}

	res := Result{Product: product.ID, Location: loc}
	if ensureAll {
		err = a.ledger.EnsureAllRows(ctx, product.ID)
	} else {
		err = a.ledger.EnsureRow(ctx, product.ID, loc)
	}
	if err != nil {
		res.Status = audit.StatusError
		res.Detail = err.Error()
		return res, fmt.Errorf("ensure row: %w", err)
	}

	prior, err := a.ledger.ApplyAbsolute(ctx, product.ID, loc, evt.Available)
	if err != nil {
		res.Status = audit.StatusError
		res.Detail = err.Error()
		return res, fmt.Errorf("apply absolute: %w", err)
	}
	res.Prior = prior
	res.Applied = evt.Available
	res.Delta = evt.Available - prior

	if res.Delta != 0 {
		note := fmt.Sprintf("channel sync %s: %d -> %d", evt.ID, prior, evt.Available)
		if err := a.adjuster.AppendAdjustment(ctx, product.ID, loc, res.Delta, note); err != nil {
			res.Status = audit.StatusError
			res.Detail = err.Error()
			return res, fmt.Errorf("append adjustment: %w", err)
		}
	}

	res.Status = audit.StatusApplied
	return res, nil
}

// finish is the single exit point that writes the terminal audit row and
// observes the outcome.
func (a *Applier) finish(ctx context.Context, evt Event, res Result) {
	entry := audit.Entry{
		EventID:  evt.ID,
		Raw:      evt.Raw,
		SKU:      strings.TrimSpace(evt.SKU),
		Location: string(res.Location),
		Status:   res.Status,
		Detail:   res.Detail,
	}
	if res.Status == audit.StatusApplied || res.Status == audit.StatusNoMatch {
		entry.Available = &evt.Available
	}
	if res.Product != uuid.Nil {
		productID := res.Product
		entry.ProductID = &productID
	}
	a.audit.Append(ctx, entry)
	a.metrics.ObserveChannelEvent(string(res.Status))

	if res.Status == audit.StatusApplied && res.Delta != 0 {
		a.logger.Info("channel quantity applied",
			slog.String("event_id", evt.ID.String()),
			slog.String("location", string(res.Location)),
			slog.Int("prior", res.Prior),
			slog.Int("applied", res.Applied))
	}
}
