package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RepositoryPort abstracts persistence for the catalog service.
type RepositoryPort interface {
	LookupPort
	Get(ctx context.Context, id uuid.UUID) (Product, error)
	UpsertBySKU(ctx context.Context, product Product, priceKnown bool) (Product, bool, error)
	RegisterAlias(ctx context.Context, productID uuid.UUID, alias string) error
}

// LedgerPort lets the service make a product visible at every clinic
// location before its first stock movement.
type LedgerPort interface {
	EnsureAllRows(ctx context.Context, productID uuid.UUID) error
}

// Service coordinates product upserts from the sales channel.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger LedgerPort) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// Get fetches a product by internal id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.Get(ctx, id)
}

// Upsert creates or updates a product keyed by canonical SKU and ensures a
// zero-quantity stock row exists at every location when newly created.
func (s *Service) Upsert(ctx context.Context, input UpsertInput) (Product, error) {
	sku := strings.TrimSpace(input.SKU)
	if sku == "" {
		return Product{}, ErrSKURequired
	}

	product := Product{
		ID:      uuid.New(),
		SKU:     sku,
		Barcode: strings.TrimSpace(input.Barcode),
		Name:    composeName(input, sku),
	}
	priceKnown := input.Price != nil
	if priceKnown {
		product.UnitPrice = *input.Price
	}

	saved, created, err := s.repo.UpsertBySKU(ctx, product, priceKnown)
	if err != nil {
		return Product{}, fmt.Errorf("upsert product: %w", err)
	}

	for _, alias := range input.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		if err := s.repo.RegisterAlias(ctx, saved.ID, alias); err != nil {
			return Product{}, fmt.Errorf("register alias %q: %w", alias, err)
		}
	}

	if created && s.ledger != nil {
		if err := s.ledger.EnsureAllRows(ctx, saved.ID); err != nil {
			return Product{}, fmt.Errorf("ensure stock rows: %w", err)
		}
	}
	return saved, nil
}

// composeName builds the display name the way the channel presents variants:
// "Title - VariantTitle" unless the title already contains the variant.
func composeName(input UpsertInput, fallback string) string {
	title := strings.TrimSpace(input.Title)
	variant := strings.TrimSpace(input.VariantTitle)
	name := title
	if variant != "" && !strings.Contains(title, variant) {
		name = title + " - " + variant
	}
	if name == "" || name == " - "+variant {
		name = fallback
	}
	return name
}

// IsNotFound reports whether err means the product does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}
