package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carewell-health/dispensary/internal/platform/db"
)

// Repository persists stock levels in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetLevel reads the row for (product, location). Missing rows read as
// zero quantity.
func (r *Repository) GetLevel(ctx context.Context, productID uuid.UUID, loc Location) (Level, error) {
	var level Level
	err := r.pool.QueryRow(ctx,
		`SELECT product_id, location, on_hand, updated_at FROM stock_levels WHERE product_id = $1 AND location = $2`,
		productID, string(loc)).
		Scan(&level.ProductID, &level.Location, &level.OnHand, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{ProductID: productID, Location: loc}, nil
		}
		return Level{}, err
	}
	return level, nil
}

// EnsureRow creates a zero-quantity row iff absent. Idempotent.
func (r *Repository) EnsureRow(ctx context.Context, productID uuid.UUID, loc Location) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO stock_levels (product_id, location, on_hand, updated_at)
VALUES ($1, $2, 0, NOW())
ON CONFLICT (product_id, location) DO NOTHING`, productID, string(loc))
	return err
}

// SetOnHand overwrites the quantity, creating the row when missing, and
// returns the prior quantity. The read and write share a transaction so the
// reported delta matches what was overwritten.
func (r *Repository) SetOnHand(ctx context.Context, productID uuid.UUID, loc Location, qty int) (int, error) {
	var prior int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT on_hand FROM stock_levels WHERE product_id = $1 AND location = $2 FOR UPDATE`,
			productID, string(loc)).Scan(&prior)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO stock_levels (product_id, location, on_hand, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (product_id, location) DO UPDATE SET on_hand = EXCLUDED.on_hand, updated_at = NOW()`,
			productID, string(loc), qty)
		return err
	})
	if err != nil {
		return 0, err
	}
	return prior, nil
}

// DecrementIfAvailable performs the conditional decrement that keeps
// concurrent dispense requests from jointly overdrawing a row: the
// availability check and the decrement are one statement.
func (r *Repository) DecrementIfAvailable(ctx context.Context, productID uuid.UUID, loc Location, qty int) (int, bool, error) {
	var remaining int
	err := r.pool.QueryRow(ctx,
		`UPDATE stock_levels
SET on_hand = on_hand - $3, updated_at = NOW()
WHERE product_id = $1 AND location = $2 AND on_hand >= $3
RETURNING on_hand`, productID, string(loc), qty).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return remaining, true, nil
}
