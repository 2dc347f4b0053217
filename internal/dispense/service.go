package dispense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carewell-health/dispensary/internal/catalog"
	"github.com/carewell-health/dispensary/internal/notify"
	"github.com/carewell-health/dispensary/internal/stock"
)

// CatalogPort resolves internal product ids.
type CatalogPort interface {
	Get(ctx context.Context, id uuid.UUID) (catalog.Product, error)
}

// LedgerPort exposes the one stock mutation the engine may perform.
type LedgerPort interface {
	ReserveAndCommit(ctx context.Context, productID uuid.UUID, loc stock.Location, qty int) (int, error)
}

// RepositoryPort persists sale records.
type RepositoryPort interface {
	AppendSale(ctx context.Context, rec SaleRecord) (SaleRecord, error)
}

// NotifierPort announces recorded backorders. Implementations are
// best-effort; failures must never surface here.
type NotifierPort interface {
	BackorderRecorded(ctx context.Context, notice notify.BackorderNotice)
}

// Service decides between committing a sale and recording a backorder.
//
// The state machine per request is
// Requested -> Committed | AwaitingBackorderConfirmation -> (BackorderRecorded | Cancelled) | Rejected.
// No stock is reserved while a confirmation is pending; declining reaches no
// code path here, so Cancelled is side-effect free by construction.
type Service struct {
	catalog  CatalogPort
	ledger   LedgerPort
	repo     RepositoryPort
	notifier NotifierPort
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(cat CatalogPort, ledger LedgerPort, repo RepositoryPort, notifier NotifierPort, logger *slog.Logger) *Service {
	return &Service{catalog: cat, ledger: ledger, repo: repo, notifier: notifier, logger: logger}
}

// validate rejects bad input before any ledger access.
func (s *Service) validate(ctx context.Context, req Request) (catalog.Product, error) {
	if req.Quantity <= 0 {
		return catalog.Product{}, stock.ErrInvalidQuantity
	}
	if _, ok := stock.NormalizeLocation(string(req.Location)); !ok {
		return catalog.Product{}, stock.ErrUnknownLocation
	}
	product, err := s.catalog.Get(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return catalog.Product{}, ErrUnknownProduct
		}
		return catalog.Product{}, fmt.Errorf("resolve product: %w", err)
	}
	return product, nil
}

// Dispense attempts to fulfill the request from stock. On insufficient
// stock it returns the ledger's *stock.InsufficientStockError unchanged so
// the caller can obtain explicit confirmation; nothing is mutated on that
// path.
func (s *Service) Dispense(ctx context.Context, req Request) (Result, error) {
	product, err := s.validate(ctx, req)
	if err != nil {
		return Result{}, err
	}

	remaining, err := s.ledger.ReserveAndCommit(ctx, req.ProductID, req.Location, req.Quantity)
	if err != nil {
		return Result{}, err
	}

	rec, err := s.repo.AppendSale(ctx, SaleRecord{
		ProductID: req.ProductID,
		Location:  req.Location,
		Quantity:  req.Quantity,
		UnitPrice: product.UnitPrice,
		Kind:      KindSale,
		PatientID: req.PatientID,
		Doctor:    req.Doctor,
		Remarks:   req.Remarks,
	})
	if err != nil {
		return Result{}, fmt.Errorf("append sale record: %w", err)
	}
	return Result{Record: rec, OnHand: remaining}, nil
}

// ConfirmBackorder records a backorder after the user explicitly accepted
// the insufficiency. It performs no stock mutation: the ledger is not a
// dependency of this path at all.
func (s *Service) ConfirmBackorder(ctx context.Context, req Request) (SaleRecord, error) {
	product, err := s.validate(ctx, req)
	if err != nil {
		return SaleRecord{}, err
	}

	remarks := strings.TrimSpace(req.Remarks)
	if remarks != "" {
		remarks += " "
	}
	remarks += BackorderTag

	rec, err := s.repo.AppendSale(ctx, SaleRecord{
		ProductID: req.ProductID,
		Location:  req.Location,
		Quantity:  req.Quantity,
		UnitPrice: product.UnitPrice,
		Kind:      KindBackorder,
		PatientID: req.PatientID,
		Doctor:    req.Doctor,
		Remarks:   remarks,
	})
	if err != nil {
		return SaleRecord{}, fmt.Errorf("append backorder record: %w", err)
	}

	if s.notifier != nil {
		s.notifier.BackorderRecorded(ctx, notify.BackorderNotice{
			RecordID:    rec.ID,
			PatientID:   rec.PatientID,
			ProductName: product.Name,
			SKU:         product.SKU,
			Quantity:    rec.Quantity,
			Location:    string(rec.Location),
			Doctor:      rec.Doctor,
			Remarks:     rec.Remarks,
			CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rec, nil
}
