package channel

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/carewell-health/dispensary/internal/audit"
	"github.com/carewell-health/dispensary/internal/catalog"
	"github.com/carewell-health/dispensary/internal/stock"
)

type memoryResolver struct {
	products map[string]catalog.Product
}

func (r *memoryResolver) Resolve(ctx context.Context, externalKey string) (catalog.Product, error) {
	if p, ok := r.products[catalog.NormalizeKey(externalKey)]; ok {
		return p, nil
	}
	return catalog.Product{}, catalog.ErrProductNotFound
}

type memoryStock struct {
	levels  map[string]int
	ensured map[string]bool
}

func newMemoryStock() *memoryStock {
	return &memoryStock{levels: make(map[string]int), ensured: make(map[string]bool)}
}

func stockKey(productID uuid.UUID, loc stock.Location) string {
	return fmt.Sprintf("%s:%s", productID, loc)
}

func (s *memoryStock) EnsureRow(ctx context.Context, productID uuid.UUID, loc stock.Location) error {
	s.ensured[stockKey(productID, loc)] = true
	return nil
}

func (s *memoryStock) EnsureAllRows(ctx context.Context, productID uuid.UUID) error {
	for _, loc := range stock.Locations() {
		s.ensured[stockKey(productID, loc)] = true
	}
	return nil
}

func (s *memoryStock) ApplyAbsolute(ctx context.Context, productID uuid.UUID, loc stock.Location, qty int) (int, error) {
	key := stockKey(productID, loc)
	prior := s.levels[key]
	s.levels[key] = qty
	return prior, nil
}

type adjustment struct {
	productID uuid.UUID
	loc       stock.Location
	delta     int
}

type memoryAdjuster struct {
	adjustments []adjustment
}

func (a *memoryAdjuster) AppendAdjustment(ctx context.Context, productID uuid.UUID, loc stock.Location, delta int, note string) error {
	a.adjustments = append(a.adjustments, adjustment{productID: productID, loc: loc, delta: delta})
	return nil
}

type memoryAudit struct {
	entries []audit.Entry
}

func (a *memoryAudit) Append(ctx context.Context, entry audit.Entry) {
	a.entries = append(a.entries, entry)
}

func (a *memoryAudit) statuses() []audit.Status {
	out := make([]audit.Status, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Status)
	}
	return out
}

func newApplierFixture() (*Applier, catalog.Product, *memoryStock, *memoryAdjuster, *memoryAudit) {
	product := catalog.Product{ID: uuid.New(), SKU: "AMOX-500"}
	resolver := &memoryResolver{products: map[string]catalog.Product{
		catalog.NormalizeKey(product.SKU): product,
	}}
	stockRepo := newMemoryStock()
	adjuster := &memoryAdjuster{}
	trail := &memoryAudit{}
	applier := NewApplier(resolver, stockRepo, adjuster, trail, slog.Default(), nil)
	return applier, product, stockRepo, adjuster, trail
}

func TestApplySetsAbsoluteQuantity(t *testing.T) {
	applier, product, stockRepo, adjuster, trail := newApplierFixture()

	res, err := applier.Apply(context.Background(), Event{
		ID:           uuid.New(),
		SKU:          "amox-500",
		Available:    12,
		LocationCode: "Osler Wellness (STAR VISTA)",
	})
	require.NoError(t, err)
	require.Equal(t, audit.StatusApplied, res.Status)
	require.Equal(t, stock.LocationSV, res.Location)
	require.Equal(t, 12, res.Applied)
	require.Equal(t, 12, res.Delta)
	require.Equal(t, 12, stockRepo.levels[stockKey(product.ID, stock.LocationSV)])
	require.True(t, stockRepo.ensured[stockKey(product.ID, stock.LocationSV)])

	require.Len(t, adjuster.adjustments, 1)
	require.Equal(t, 12, adjuster.adjustments[0].delta)

	require.Equal(t, []audit.Status{audit.StatusReceived, audit.StatusApplied}, trail.statuses())
	require.NotNil(t, trail.entries[1].ProductID)
	require.Equal(t, product.ID, *trail.entries[1].ProductID)
}

func TestApplyReplayConverges(t *testing.T) {
	applier, product, stockRepo, adjuster, _ := newApplierFixture()
	evt := Event{ID: uuid.New(), SKU: "AMOX-500", Available: 9, LocationCode: "SV"}

	res, err := applier.Apply(context.Background(), evt)
	require.NoError(t, err)
	require.Equal(t, 9, res.Delta)

	res, err = applier.Apply(context.Background(), evt)
	require.NoError(t, err)
	require.Equal(t, audit.StatusApplied, res.Status)
	require.Equal(t, 0, res.Delta)

	require.Equal(t, 9, stockRepo.levels[stockKey(product.ID, stock.LocationSV)])
	require.Len(t, adjuster.adjustments, 1)
}

func TestApplyRecordsNegativeDelta(t *testing.T) {
	applier, _, _, adjuster, _ := newApplierFixture()
	ctx := context.Background()

	_, err := applier.Apply(ctx, Event{ID: uuid.New(), SKU: "AMOX-500", Available: 10, LocationCode: "RH1"})
	require.NoError(t, err)

	res, err := applier.Apply(ctx, Event{ID: uuid.New(), SKU: "AMOX-500", Available: 4, LocationCode: "RH1"})
	require.NoError(t, err)
	require.Equal(t, -6, res.Delta)
	require.Len(t, adjuster.adjustments, 2)
	require.Equal(t, -6, adjuster.adjustments[1].delta)
}

func TestApplyNoMatchIsSkippedNotFailed(t *testing.T) {
	applier, _, stockRepo, adjuster, trail := newApplierFixture()

	res, err := applier.Apply(context.Background(), Event{
		ID:           uuid.New(),
		SKU:          "UNKNOWN-1",
		Available:    3,
		LocationCode: "SV",
	})
	require.NoError(t, err)
	require.Equal(t, audit.StatusNoMatch, res.Status)
	require.Empty(t, stockRepo.levels)
	require.Empty(t, adjuster.adjustments)
	require.Equal(t, []audit.Status{audit.StatusReceived, audit.StatusNoMatch}, trail.statuses())
}

func TestApplyRejectsUnknownLocation(t *testing.T) {
	applier, _, stockRepo, _, trail := newApplierFixture()

	res, err := applier.Apply(context.Background(), Event{
		ID:           uuid.New(),
		SKU:          "AMOX-500",
		Available:    3,
		LocationCode: "CK13",
	})
	require.ErrorIs(t, err, ErrMalformed)
	require.Equal(t, audit.StatusError, res.Status)
	require.Empty(t, stockRepo.levels)
	require.Equal(t, []audit.Status{audit.StatusError}, trail.statuses())
}

func TestApplyRejectsMalformedFields(t *testing.T) {
	applier, _, _, _, _ := newApplierFixture()
	ctx := context.Background()

	_, err := applier.Apply(ctx, Event{ID: uuid.New(), SKU: " ", Available: 3, LocationCode: "SV"})
	require.ErrorIs(t, err, ErrMalformed)

	_, err = applier.Apply(ctx, Event{ID: uuid.New(), SKU: "AMOX-500", Available: -1, LocationCode: "SV"})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestApplySnapshotEnsuresAllLocations(t *testing.T) {
	applier, product, stockRepo, _, _ := newApplierFixture()

	_, err := applier.ApplySnapshot(context.Background(), Event{
		ID:           uuid.New(),
		SKU:          "AMOX-500",
		Available:    5,
		LocationCode: "SV",
	})
	require.NoError(t, err)
	for _, loc := range stock.Locations() {
		require.True(t, stockRepo.ensured[stockKey(product.ID, loc)], "location %s", loc)
	}
}
