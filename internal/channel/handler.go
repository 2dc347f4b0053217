package channel

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carewell-health/dispensary/internal/audit"
	"github.com/carewell-health/dispensary/internal/catalog"
	"github.com/carewell-health/dispensary/internal/platform/httpx"
)

const maxEventBody = 64 << 10

// ReconcileEnqueuer submits a full reconciliation run to the queue.
type ReconcileEnqueuer interface {
	EnqueueChannelReconcile(ctx context.Context) error
}

// Handler wires the inbound channel boundary: inventory events, product
// upserts and reconciliation triggers, all behind the shared secret.
type Handler struct {
	logger    *slog.Logger
	applier   *Applier
	catalog   *catalog.Service
	enqueuer  ReconcileEnqueuer
	secret    []byte
	validator *validator.Validate
}

// NewHandler constructs the channel handler.
func NewHandler(logger *slog.Logger, applier *Applier, catalogService *catalog.Service, enqueuer ReconcileEnqueuer, secret string) *Handler {
	return &Handler{
		logger:    logger,
		applier:   applier,
		catalog:   catalogService,
		enqueuer:  enqueuer,
		secret:    []byte(secret),
		validator: validator.New(),
	}
}

// MountRoutes registers channel routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.requireSharedSecret)
	r.Post("/events", h.handleEvent)
	r.Post("/products", h.handleProduct)
	r.Post("/reconcile", h.handleReconcile)
}

// requireSharedSecret authenticates the channel integration. The secret is
// carried in X-Flow-Secret, with a bearer token fallback for callers that
// can only set an Authorization header. Failures reveal nothing beyond
// "unauthorized".
func (h *Handler) requireSharedSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("X-Flow-Secret")
		if presented == "" {
			presented = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if len(h.secret) == 0 || subtle.ConstantTimeCompare([]byte(presented), h.secret) != 1 {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type eventRequest struct {
	SKU       string `json:"sku"`
	Available *int   `json:"available"`
	LocCode   string `json:"loc_code"`
}

type eventResponse struct {
	Status    string `json:"status"`
	ProductID string `json:"product_id,omitempty"`
	Location  string `json:"location,omitempty"`
	OnHand    *int   `json:"on_hand,omitempty"`
	Delta     *int   `json:"delta,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	eventID := uuid.New()
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err != nil {
		res := h.applier.Reject(r.Context(), eventID, nil, "unreadable request body")
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", res.Detail)
		return
	}

	var body eventRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		res := h.applier.Reject(r.Context(), eventID, raw, "invalid json")
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", res.Detail)
		return
	}
	if body.Available == nil {
		res := h.applier.Reject(r.Context(), eventID, raw, "missing available quantity")
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", res.Detail)
		return
	}

	result, err := h.applier.Apply(r.Context(), Event{
		ID:           eventID,
		SKU:          body.SKU,
		Available:    *body.Available,
		LocationCode: body.LocCode,
		Raw:          raw,
	})
	if err != nil {
		if errors.Is(err, ErrMalformed) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", result.Detail)
			return
		}
		h.logger.Error("apply channel event failed",
			slog.String("event_id", eventID.String()),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	// A no-match is acknowledged with 200 so the channel does not retry an
	// event that will never apply.
	if result.Status == audit.StatusNoMatch {
		httpx.JSON(w, http.StatusOK, eventResponse{Status: "skipped", Reason: result.Detail})
		return
	}

	onHand := result.Applied
	delta := result.Delta
	httpx.JSON(w, http.StatusOK, eventResponse{
		Status:    "applied",
		ProductID: result.Product.String(),
		Location:  string(result.Location),
		OnHand:    &onHand,
		Delta:     &delta,
	})
}

type productRequest struct {
	SKU          string   `json:"sku" validate:"required"`
	Title        string   `json:"title"`
	VariantTitle string   `json:"variant_title"`
	Barcode      string   `json:"barcode"`
	Price        *float64 `json:"price" validate:"omitempty,gte=0"`
	Aliases      []string `json:"aliases"`
}

type productResponse struct {
	ID        string  `json:"id"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Barcode   string  `json:"barcode,omitempty"`
	UnitPrice float64 `json:"unit_price"`
}

func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) {
	var body productRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	product, err := h.catalog.Upsert(r.Context(), catalog.UpsertInput{
		SKU:          body.SKU,
		Title:        body.Title,
		VariantTitle: body.VariantTitle,
		Barcode:      body.Barcode,
		Price:        body.Price,
		Aliases:      body.Aliases,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrSKURequired) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("upsert product failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, productResponse{
		ID:        product.ID.String(),
		SKU:       product.SKU,
		Name:      product.Name,
		Barcode:   product.Barcode,
		UnitPrice: product.UnitPrice,
	})
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "reconciliation is not configured")
		return
	}
	if err := h.enqueuer.EnqueueChannelReconcile(r.Context()); err != nil {
		h.logger.Error("enqueue reconciliation failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
