// Package channel applies inventory events from the external sales channel
// to the stock ledger and exposes the inbound HTTP boundary for them.
package channel

import (
	"errors"

	"github.com/google/uuid"

	"github.com/carewell-health/dispensary/internal/audit"
	"github.com/carewell-health/dispensary/internal/stock"
)

// Event is one inbound inventory update: the channel reports an absolute
// available quantity for a product key at a location.
type Event struct {
	ID           uuid.UUID
	SKU          string
	Available    int
	LocationCode string
	Raw          []byte
}

// Result describes how an event was processed.
type Result struct {
	Status   audit.Status
	Product  uuid.UUID
	Location stock.Location
	Prior    int
	Applied  int
	Delta    int
	Detail   string
}

// ErrMalformed indicates an event that failed validation before touching
// the ledger. The terminal audit row has already been written.
var ErrMalformed = errors.New("channel: malformed event")
