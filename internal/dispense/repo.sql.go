package dispense

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carewell-health/dispensary/internal/stock"
)

// Repository persists sale records in PostgreSQL. The table is append-only:
// nothing here updates or deletes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AppendSale inserts one record and returns it with id and timestamp set.
func (r *Repository) AppendSale(ctx context.Context, rec SaleRecord) (SaleRecord, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sale_records (product_id, location, quantity, unit_price, kind, patient_id, doctor, remarks, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
RETURNING id, created_at`,
		rec.ProductID, string(rec.Location), rec.Quantity, rec.UnitPrice, string(rec.Kind),
		rec.PatientID, rec.Doctor, rec.Remarks).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return SaleRecord{}, err
	}
	return rec, nil
}

// AppendAdjustment records the signed delta observed when an external
// absolute-set changed the on-hand quantity. Used by the channel applier.
func (r *Repository) AppendAdjustment(ctx context.Context, productID uuid.UUID, loc stock.Location, delta int, note string) error {
	if delta == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sale_records (product_id, location, quantity, unit_price, kind, patient_id, doctor, remarks, created_at)
VALUES ($1, $2, $3, 0, $4, '', '', $5, NOW())`,
		productID, string(loc), delta, string(KindAdjustment), note)
	if err != nil {
		return fmt.Errorf("append adjustment: %w", err)
	}
	return nil
}
