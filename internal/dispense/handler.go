package dispense

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carewell-health/dispensary/internal/observability"
	"github.com/carewell-health/dispensary/internal/platform/httpx"
	"github.com/carewell-health/dispensary/internal/stock"
)

// Handler wires HTTP endpoints for the dispense boundary.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs the dispense handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validator: validator.New()}
}

// MountRoutes registers dispense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleDispense)
	r.Post("/backorder", h.handleBackorder)
}

type dispenseRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Location  string `json:"location" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Remarks   string `json:"remarks"`
}

type saleResponse struct {
	RecordID  int64   `json:"record_id"`
	Kind      string  `json:"kind"`
	ProductID string  `json:"product_id"`
	Location  string  `json:"location"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	OnHand    *int    `json:"on_hand,omitempty"`
}

// insufficiencySignal is what the UI collaborator turns into an explicit
// yes/no confirmation before calling the backorder endpoint.
type insufficiencySignal struct {
	Error     string `json:"error"`
	Location  string `json:"location"`
	OnHand    int    `json:"on_hand"`
	Requested int    `json:"requested"`
}

func (h *Handler) parseRequest(r *http.Request) (Request, string, bool) {
	var body dispenseRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		return Request{}, "malformed request body", false
	}
	if err := h.validator.Struct(body); err != nil {
		return Request{}, err.Error(), false
	}
	productID, err := uuid.Parse(body.ProductID)
	if err != nil {
		return Request{}, "invalid product id", false
	}
	loc, ok := stock.NormalizeLocation(body.Location)
	if !ok {
		return Request{}, "unknown location " + body.Location, false
	}
	return Request{
		ProductID: productID,
		Location:  loc,
		Quantity:  body.Quantity,
		PatientID: body.PatientID,
		Doctor:    body.DoctorID,
		Remarks:   body.Remarks,
	}, "", true
}

func (h *Handler) handleDispense(w http.ResponseWriter, r *http.Request) {
	req, detail, ok := h.parseRequest(r)
	if !ok {
		h.metrics.ObserveDispense("rejected")
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", detail)
		return
	}

	result, err := h.service.Dispense(r.Context(), req)
	if err != nil {
		var insufficient *stock.InsufficientStockError
		switch {
		case errors.As(err, &insufficient):
			h.metrics.ObserveDispense("insufficient")
			httpx.JSON(w, http.StatusConflict, insufficiencySignal{
				Error:     "insufficient stock",
				Location:  string(insufficient.Location),
				OnHand:    insufficient.OnHand,
				Requested: insufficient.Requested,
			})
		case errors.Is(err, ErrUnknownProduct):
			h.metrics.ObserveDispense("rejected")
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
		case errors.Is(err, stock.ErrInvalidQuantity), errors.Is(err, stock.ErrUnknownLocation):
			h.metrics.ObserveDispense("rejected")
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("dispense failed", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}

	h.metrics.ObserveDispense("committed")
	onHand := result.OnHand
	httpx.JSON(w, http.StatusCreated, saleResponse{
		RecordID:  result.Record.ID,
		Kind:      string(result.Record.Kind),
		ProductID: result.Record.ProductID.String(),
		Location:  string(result.Record.Location),
		Quantity:  result.Record.Quantity,
		UnitPrice: result.Record.UnitPrice,
		OnHand:    &onHand,
	})
}

func (h *Handler) handleBackorder(w http.ResponseWriter, r *http.Request) {
	req, detail, ok := h.parseRequest(r)
	if !ok {
		h.metrics.ObserveDispense("rejected")
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", detail)
		return
	}

	rec, err := h.service.ConfirmBackorder(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownProduct):
			h.metrics.ObserveDispense("rejected")
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
		case errors.Is(err, stock.ErrInvalidQuantity), errors.Is(err, stock.ErrUnknownLocation):
			h.metrics.ObserveDispense("rejected")
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("record backorder failed", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}

	h.metrics.ObserveDispense("backorder")
	httpx.JSON(w, http.StatusCreated, saleResponse{
		RecordID:  rec.ID,
		Kind:      string(rec.Kind),
		ProductID: rec.ProductID.String(),
		Location:  string(rec.Location),
		Quantity:  rec.Quantity,
		UnitPrice: rec.UnitPrice,
	})
}
