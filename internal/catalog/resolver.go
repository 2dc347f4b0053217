package catalog

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
)

// LookupPort abstracts the exact-match lookups the resolver chains.
// Every method receives an already-normalized key and returns
// ErrProductNotFound when nothing matches.
type LookupPort interface {
	FindBySKU(ctx context.Context, key string) (Product, error)
	FindByBarcode(ctx context.Context, key string) (Product, error)
	FindByAlias(ctx context.Context, key string) (Product, error)
}

// Resolver maps an external product key (SKU, barcode or alias) to a product.
type Resolver struct {
	repo LookupPort
}

// NewResolver builds a Resolver.
func NewResolver(repo LookupPort) *Resolver {
	return &Resolver{repo: repo}
}

var keyFolder = cases.Fold()

// NormalizeKey trims surrounding whitespace and case-folds the key so that
// lookups are case-insensitive.
func NormalizeKey(raw string) string {
	return keyFolder.String(strings.TrimSpace(raw))
}

// Resolve finds the product for an external key. Lookup order is canonical
// SKU, then barcode, then registered alias; the first match wins. An
// unmatched key returns ErrProductNotFound and is never treated as a fault.
func (r *Resolver) Resolve(ctx context.Context, externalKey string) (Product, error) {
	key := NormalizeKey(externalKey)
	if key == "" {
		return Product{}, ErrProductNotFound
	}
	lookups := []func(context.Context, string) (Product, error){
		r.repo.FindBySKU,
		r.repo.FindByBarcode,
		r.repo.FindByAlias,
	}
	for _, find := range lookups {
		product, err := find(ctx, key)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, ErrProductNotFound) {
			return Product{}, err
		}
	}
	return Product{}, ErrProductNotFound
}
