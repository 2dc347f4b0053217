package dispense

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/carewell-health/dispensary/internal/stock"
)

// Kind tags a sale record.
type Kind string

const (
	// KindSale is a committed dispense that decremented stock.
	KindSale Kind = "sale"
	// KindBackorder is a confirmed intent to fulfill later. Recording one
	// never mutates stock.
	KindBackorder Kind = "backorder"
	// KindAdjustment is a synthetic record capturing the signed delta of an
	// external absolute-set, kept for audit continuity.
	KindAdjustment Kind = "adjustment"
)

// BackorderTag marks backorder records in their remarks.
const BackorderTag = "[BACKORDER]"

// SaleRecord is an append-only dispensing record.
type SaleRecord struct {
	ID        int64
	ProductID uuid.UUID
	Location  stock.Location
	Quantity  int
	UnitPrice float64
	Kind      Kind
	PatientID string
	Doctor    string
	Remarks   string
	CreatedAt time.Time
}

// Request describes a dispense attempt against a (product, location).
type Request struct {
	ProductID uuid.UUID
	Location  stock.Location
	Quantity  int
	PatientID string
	Doctor    string
	Remarks   string
}

// Result is a committed dispense outcome.
type Result struct {
	Record SaleRecord
	OnHand int
}

// ErrUnknownProduct rejects a request whose product id does not resolve.
var ErrUnknownProduct = errors.New("dispense: unknown product")
