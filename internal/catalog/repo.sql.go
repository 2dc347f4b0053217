package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carewell-health/dispensary/internal/platform/db"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, sku, barcode, name, unit_price, created_at, updated_at`

func (r *Repository) scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Barcode, &p.Name, &p.UnitPrice, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// Get fetches a product by id, including registered aliases.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := r.scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return Product{}, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT alias FROM product_aliases WHERE product_id = $1 ORDER BY alias`, id)
	if err != nil {
		return Product{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return Product{}, err
		}
		p.Aliases = append(p.Aliases, alias)
	}
	return p, rows.Err()
}

// FindBySKU matches the canonical SKU case-insensitively.
func (r *Repository) FindBySKU(ctx context.Context, key string) (Product, error) {
	return r.scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE lower(sku) = $1`, key))
}

// FindByBarcode matches the barcode case-insensitively.
func (r *Repository) FindByBarcode(ctx context.Context, key string) (Product, error) {
	return r.scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE barcode <> '' AND lower(barcode) = $1`, key))
}

// FindByAlias matches a registered alias case-insensitively.
func (r *Repository) FindByAlias(ctx context.Context, key string) (Product, error) {
	return r.scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products p
JOIN product_aliases a ON a.product_id = p.id
WHERE lower(a.alias) = $1
ORDER BY a.id ASC
LIMIT 1`, key))
}

// UpsertBySKU inserts the product or updates the existing row with the same
// SKU. Empty barcode and unknown price never overwrite stored values. The
// returned flag reports whether a new row was created.
func (r *Repository) UpsertBySKU(ctx context.Context, product Product, priceKnown bool) (Product, bool, error) {
	var saved Product
	var created bool
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var existingID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM products WHERE lower(sku) = lower($1) FOR UPDATE`, product.SKU).Scan(&existingID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			created = true
			row := tx.QueryRow(ctx,
				`INSERT INTO products (id, sku, barcode, name, unit_price, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
RETURNING `+productColumns, product.ID, product.SKU, product.Barcode, product.Name, product.UnitPrice)
			saved, err = r.scanProduct(row)
			return err
		case err != nil:
			return err
		default:
			row := tx.QueryRow(ctx,
				`UPDATE products SET
    name = $2,
    barcode = CASE WHEN $3 <> '' THEN $3 ELSE barcode END,
    unit_price = CASE WHEN $4 THEN $5 ELSE unit_price END,
    updated_at = NOW()
WHERE id = $1
RETURNING `+productColumns, existingID, product.Name, product.Barcode, priceKnown, product.UnitPrice)
			saved, err = r.scanProduct(row)
			return err
		}
	})
	if err != nil {
		return Product{}, false, err
	}
	return saved, created, nil
}

// RegisterAlias records an alias for the product. Idempotent.
func (r *Repository) RegisterAlias(ctx context.Context, productID uuid.UUID, alias string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO product_aliases (product_id, alias) VALUES ($1, $2)
ON CONFLICT (product_id, lower(alias)) DO NOTHING`, productID, alias)
	return err
}
