package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Product is a dispensable item as known to the clinic.
type Product struct {
	ID        uuid.UUID
	SKU       string
	Barcode   string
	Name      string
	UnitPrice float64
	Aliases   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertInput describes a create-or-update request from the sales channel.
type UpsertInput struct {
	SKU          string
	Title        string
	VariantTitle string
	Barcode      string
	Price        *float64
	Aliases      []string
}

// ErrProductNotFound indicates no product matches the given key.
// Absence is a normal outcome, not a fault.
var ErrProductNotFound = errors.New("catalog: product not found")

// ErrSKURequired indicates an upsert without a canonical SKU.
var ErrSKURequired = errors.New("catalog: sku required")
