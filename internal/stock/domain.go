package stock

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Location identifies a clinic site. The set is closed: stock only exists
// at known locations.
type Location string

const (
	// LocationSV is the Star Vista clinic.
	LocationSV Location = "SV"
	// LocationRH1 is the Raffles clinic.
	LocationRH1 Location = "RH1"
)

// Locations returns every known location.
func Locations() []Location {
	return []Location{LocationSV, LocationRH1}
}

// NormalizeLocation maps a raw location value onto the closed set. It
// accepts the short codes and the long-form site names the sales channel
// uses. The second return is false for unrecognized values.
func NormalizeLocation(raw string) (Location, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case s == "":
		return "", false
	case s == string(LocationSV), strings.Contains(s, "STAR VISTA"):
		return LocationSV, true
	case s == string(LocationRH1), strings.Contains(s, "RAFFLES"):
		return LocationRH1, true
	default:
		return "", false
	}
}

// Level is the on-hand quantity of a product at a location.
type Level struct {
	ProductID uuid.UUID
	Location  Location
	OnHand    int
	UpdatedAt time.Time
}

// InsufficientStockError reports a dispense request that exceeds the
// current on-hand quantity. It is an expected business outcome, not a
// system fault; callers use it to ask for backorder confirmation.
type InsufficientStockError struct {
	Location  Location
	OnHand    int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock at %s: on hand %d, requested %d", e.Location, e.OnHand, e.Requested)
}

// ErrUnknownLocation indicates a location outside the closed set.
var ErrUnknownLocation = errors.New("stock: unknown location")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("stock: quantity must be a positive integer")
