package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/carewell-health/dispensary/internal/audit"
	"github.com/carewell-health/dispensary/internal/catalog"
	"github.com/carewell-health/dispensary/internal/channel/commerce"
	"github.com/carewell-health/dispensary/internal/stock"
)

// CommercePort pulls the channel's current variant inventory.
type CommercePort interface {
	Variants(ctx context.Context) ([]commerce.Variant, error)
}

// CatalogPort upserts products discovered during a sweep.
type CatalogPort interface {
	Upsert(ctx context.Context, input catalog.UpsertInput) (catalog.Product, error)
}

// ReconcileReport summarizes one full reconciliation run.
type ReconcileReport struct {
	Variants int `json:"variants"`
	Applied  int `json:"applied"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// Reconciler pulls the whole channel inventory and replays it through the
// applier. It is the recovery path for missed push events; since every
// quantity is an absolute set, the sweep converges regardless of what was
// dropped.
type Reconciler struct {
	commerce CommercePort
	catalog  CatalogPort
	applier  *Applier
	logger   *slog.Logger
}

// NewReconciler constructs the reconciler.
func NewReconciler(commerceClient CommercePort, catalogService CatalogPort, applier *Applier, logger *slog.Logger) *Reconciler {
	return &Reconciler{commerce: commerceClient, catalog: catalogService, applier: applier, logger: logger}
}

// Run executes one full sweep. Per-variant failures are counted and logged
// rather than aborting the run; only the initial pull is fatal.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	variants, err := r.commerce.Variants(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("pull channel inventory: %w", err)
	}

	var applied, skipped, failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, variant := range variants {
		g.Go(func() error {
			if err := r.reconcileVariant(ctx, variant, &applied, &skipped); err != nil {
				failed.Add(1)
				r.logger.Warn("reconcile variant failed",
					slog.String("sku", variant.SKU),
					slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()

	report := ReconcileReport{
		Variants: len(variants),
		Applied:  int(applied.Load()),
		Skipped:  int(skipped.Load()),
		Errors:   int(failed.Load()),
	}
	r.logger.Info("channel reconciliation finished",
		slog.Int("variants", report.Variants),
		slog.Int("applied", report.Applied),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", report.Errors))
	return report, nil
}

func (r *Reconciler) reconcileVariant(ctx context.Context, variant commerce.Variant, applied, skipped *atomic.Int64) error {
	if variant.SKU == "" {
		skipped.Add(1)
		return nil
	}

	if _, err := r.catalog.Upsert(ctx, catalog.UpsertInput{
		SKU:          variant.SKU,
		Title:        variant.Title,
		VariantTitle: variant.VariantTitle,
		Barcode:      variant.Barcode,
		Price:        variant.Price,
	}); err != nil {
		return fmt.Errorf("upsert %q: %w", variant.SKU, err)
	}

	matched := false
	for _, level := range variant.Levels {
		if _, ok := stock.NormalizeLocation(level.LocationName); !ok {
			continue
		}
		matched = true
		res, err := r.applier.ApplySnapshot(ctx, Event{
			ID:           uuid.New(),
			SKU:          variant.SKU,
			Available:    level.Available,
			LocationCode: level.LocationName,
		})
		if err != nil {
			return err
		}
		switch res.Status {
		case audit.StatusApplied:
			applied.Add(1)
		default:
			skipped.Add(1)
		}
	}
	if !matched {
		skipped.Add(1)
	}
	return nil
}
