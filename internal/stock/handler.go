package stock

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carewell-health/dispensary/internal/platform/httpx"
)

// Handler exposes read-only stock lookups for the UI collaborator.
type Handler struct {
	logger *slog.Logger
	ledger *Ledger
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, ledger *Ledger) *Handler {
	return &Handler{logger: logger, ledger: ledger}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{location}/{productID}", h.handleOnHand)
}

type onHandResponse struct {
	ProductID string `json:"product_id"`
	Location  string `json:"location"`
	OnHand    int    `json:"on_hand"`
}

func (h *Handler) handleOnHand(w http.ResponseWriter, r *http.Request) {
	loc, ok := NormalizeLocation(chi.URLParam(r, "location"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown location")
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	onHand, err := h.ledger.OnHand(r.Context(), productID, loc)
	if err != nil {
		h.logger.Error("read on hand", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, onHandResponse{
		ProductID: productID.String(),
		Location:  string(loc),
		OnHand:    onHand,
	})
}
