package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RepositoryPort abstracts ledger persistence.
type RepositoryPort interface {
	// GetLevel returns the row for (product, location). A missing row is
	// returned as a zero-quantity Level with no error.
	GetLevel(ctx context.Context, productID uuid.UUID, loc Location) (Level, error)
	// EnsureRow creates a zero-quantity row iff absent.
	EnsureRow(ctx context.Context, productID uuid.UUID, loc Location) error
	// SetOnHand overwrites the on-hand quantity and returns the prior value.
	SetOnHand(ctx context.Context, productID uuid.UUID, loc Location, qty int) (int, error)
	// DecrementIfAvailable atomically decrements on-hand by qty when the
	// current value covers it, returning the remaining quantity and true.
	// When stock is insufficient (or the row is missing) nothing changes
	// and it returns false.
	DecrementIfAvailable(ctx context.Context, productID uuid.UUID, loc Location, qty int) (int, bool, error)
}

// Ledger holds current on-hand quantities per (product, location).
type Ledger struct {
	repo RepositoryPort
}

// NewLedger builds Ledger.
func NewLedger(repo RepositoryPort) *Ledger {
	return &Ledger{repo: repo}
}

// OnHand returns the current quantity. A missing row reads as zero.
func (l *Ledger) OnHand(ctx context.Context, productID uuid.UUID, loc Location) (int, error) {
	level, err := l.repo.GetLevel(ctx, productID, loc)
	if err != nil {
		return 0, fmt.Errorf("get level: %w", err)
	}
	return level.OnHand, nil
}

// EnsureRow creates a zero-quantity row for (product, location) iff absent.
// Safe to retry unconditionally.
func (l *Ledger) EnsureRow(ctx context.Context, productID uuid.UUID, loc Location) error {
	return l.repo.EnsureRow(ctx, productID, loc)
}

// EnsureAllRows creates zero-quantity rows at every known location so a
// product is visible before its first stock movement.
func (l *Ledger) EnsureAllRows(ctx context.Context, productID uuid.UUID) error {
	for _, loc := range Locations() {
		if err := l.repo.EnsureRow(ctx, productID, loc); err != nil {
			return fmt.Errorf("ensure row %s: %w", loc, err)
		}
	}
	return nil
}

// ApplyAbsolute overwrites the on-hand quantity with the channel-reported
// value and returns the prior quantity so callers can audit the delta.
// Last writer wins; safe to replay with the same value.
func (l *Ledger) ApplyAbsolute(ctx context.Context, productID uuid.UUID, loc Location, qty int) (int, error) {
	if qty < 0 {
		return 0, ErrInvalidQuantity
	}
	prior, err := l.repo.SetOnHand(ctx, productID, loc, qty)
	if err != nil {
		return 0, fmt.Errorf("set on hand: %w", err)
	}
	return prior, nil
}

// ReserveAndCommit atomically checks availability and decrements on-hand in
// a single conditional update. On success it returns the remaining
// quantity. When stock is insufficient the row is left untouched and an
// *InsufficientStockError carrying the current on-hand value is returned.
// Must not be blindly retried after a timeout of unknown outcome.
func (l *Ledger) ReserveAndCommit(ctx context.Context, productID uuid.UUID, loc Location, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	remaining, ok, err := l.repo.DecrementIfAvailable(ctx, productID, loc, qty)
	if err != nil {
		return 0, fmt.Errorf("decrement: %w", err)
	}
	if ok {
		return remaining, nil
	}
	level, err := l.repo.GetLevel(ctx, productID, loc)
	if err != nil {
		return 0, fmt.Errorf("get level: %w", err)
	}
	return 0, &InsufficientStockError{Location: loc, OnHand: level.OnHand, Requested: qty}
}
