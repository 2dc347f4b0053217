package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/carewell-health/dispensary/internal/audit"
	"github.com/carewell-health/dispensary/internal/catalog"
)

const testSecret = "flow-secret"

type memoryCatalogRepo struct {
	*memoryResolver
	products map[uuid.UUID]catalog.Product
}

func newMemoryCatalogRepo(resolver *memoryResolver) *memoryCatalogRepo {
	products := make(map[uuid.UUID]catalog.Product)
	for _, p := range resolver.products {
		products[p.ID] = p
	}
	return &memoryCatalogRepo{memoryResolver: resolver, products: products}
}

func (r *memoryCatalogRepo) FindBySKU(ctx context.Context, key string) (catalog.Product, error) {
	return r.Resolve(ctx, key)
}

func (r *memoryCatalogRepo) FindByBarcode(ctx context.Context, key string) (catalog.Product, error) {
	return catalog.Product{}, catalog.ErrProductNotFound
}

func (r *memoryCatalogRepo) FindByAlias(ctx context.Context, key string) (catalog.Product, error) {
	return catalog.Product{}, catalog.ErrProductNotFound
}

func (r *memoryCatalogRepo) Get(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return catalog.Product{}, catalog.ErrProductNotFound
}

func (r *memoryCatalogRepo) UpsertBySKU(ctx context.Context, product catalog.Product, priceKnown bool) (catalog.Product, bool, error) {
	key := catalog.NormalizeKey(product.SKU)
	if existing, ok := r.memoryResolver.products[key]; ok {
		existing.Name = product.Name
		r.memoryResolver.products[key] = existing
		r.products[existing.ID] = existing
		return existing, false, nil
	}
	r.memoryResolver.products[key] = product
	r.products[product.ID] = product
	return product, true, nil
}

func (r *memoryCatalogRepo) RegisterAlias(ctx context.Context, productID uuid.UUID, alias string) error {
	return nil
}

type memoryEnqueuer struct {
	enqueued int
}

func (e *memoryEnqueuer) EnqueueChannelReconcile(ctx context.Context) error {
	e.enqueued++
	return nil
}

func newHandlerFixture(enqueuer ReconcileEnqueuer) (http.Handler, *memoryAudit) {
	product := catalog.Product{ID: uuid.New(), SKU: "AMOX-500", Name: "Amoxicillin - 500mg"}
	resolver := &memoryResolver{products: map[string]catalog.Product{
		catalog.NormalizeKey(product.SKU): product,
	}}
	catRepo := newMemoryCatalogRepo(resolver)
	catalogService := catalog.NewService(catRepo, nil)

	stockRepo := newMemoryStock()
	trail := &memoryAudit{}
	applier := NewApplier(resolver, stockRepo, &memoryAdjuster{}, trail, slog.Default(), nil)
	handler := NewHandler(slog.Default(), applier, catalogService, enqueuer, testSecret)

	r := chi.NewRouter()
	r.Route("/channel", handler.MountRoutes)
	return r, trail
}

func channelRequest(t *testing.T, router http.Handler, path, body, secret string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Flow-Secret", secret)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChannelRejectsBadSecret(t *testing.T) {
	router, _ := newHandlerFixture(nil)

	rec := channelRequest(t, router, "/channel/events", `{"sku":"AMOX-500","available":3,"loc_code":"SV"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = channelRequest(t, router, "/channel/events", `{"sku":"AMOX-500","available":3,"loc_code":"SV"}`, "wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotContains(t, rec.Body.String(), testSecret)
}

func TestChannelAcceptsBearerFallback(t *testing.T) {
	router, _ := newHandlerFixture(nil)

	req := httptest.NewRequest(http.MethodPost, "/channel/events",
		strings.NewReader(`{"sku":"AMOX-500","available":3,"loc_code":"SV"}`))
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestChannelEventApplied(t *testing.T) {
	router, trail := newHandlerFixture(nil)

	rec := channelRequest(t, router, "/channel/events", `{"sku":"AMOX-500","available":12,"loc_code":"STAR VISTA"}`, testSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp eventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "applied", resp.Status)
	require.Equal(t, "SV", resp.Location)
	require.NotNil(t, resp.OnHand)
	require.Equal(t, 12, *resp.OnHand)

	require.Equal(t, []audit.Status{audit.StatusReceived, audit.StatusApplied}, trail.statuses())
}

func TestChannelEventNoMatchReturns200(t *testing.T) {
	router, trail := newHandlerFixture(nil)

	rec := channelRequest(t, router, "/channel/events", `{"sku":"CK13-ONLY","available":4,"loc_code":"SV"}`, testSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp eventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "skipped", resp.Status)
	require.Equal(t, audit.StatusNoMatch, trail.statuses()[len(trail.statuses())-1])
}

func TestChannelEventMalformed(t *testing.T) {
	router, trail := newHandlerFixture(nil)

	rec := channelRequest(t, router, "/channel/events", `not json`, testSecret)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = channelRequest(t, router, "/channel/events", `{"sku":"AMOX-500","loc_code":"SV"}`, testSecret)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = channelRequest(t, router, "/channel/events", `{"sku":"AMOX-500","available":2,"loc_code":"CK13"}`, testSecret)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	for _, entry := range trail.entries {
		require.Equal(t, audit.StatusError, entry.Status)
	}
	require.Len(t, trail.entries, 3)
}

func TestChannelProductUpsert(t *testing.T) {
	router, _ := newHandlerFixture(nil)

	rec := channelRequest(t, router, "/channel/products",
		`{"sku":"VIT-D3","title":"Vitamin D3","variant_title":"1000IU","price":8.9}`, testSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp productResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "VIT-D3", resp.SKU)
	require.Equal(t, "Vitamin D3 - 1000IU", resp.Name)

	rec = channelRequest(t, router, "/channel/products", `{"title":"no sku"}`, testSecret)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChannelReconcileEnqueues(t *testing.T) {
	router, _ := newHandlerFixture(nil)
	rec := channelRequest(t, router, "/channel/reconcile", ``, testSecret)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	enqueuer := &memoryEnqueuer{}
	router, _ = newHandlerFixture(enqueuer)
	rec = channelRequest(t, router, "/channel/reconcile", ``, testSecret)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, enqueuer.enqueued)
}
