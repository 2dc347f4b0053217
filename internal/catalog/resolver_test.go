package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryLookup struct {
	bySKU     map[string]Product
	byBarcode map[string]Product
	byAlias   map[string]Product
}

func newMemoryLookup() *memoryLookup {
	return &memoryLookup{
		bySKU:     make(map[string]Product),
		byBarcode: make(map[string]Product),
		byAlias:   make(map[string]Product),
	}
}

func lookup(m map[string]Product, key string) (Product, error) {
	if p, ok := m[key]; ok {
		return p, nil
	}
	return Product{}, ErrProductNotFound
}

func (l *memoryLookup) FindBySKU(ctx context.Context, key string) (Product, error) {
	return lookup(l.bySKU, key)
}

func (l *memoryLookup) FindByBarcode(ctx context.Context, key string) (Product, error) {
	return lookup(l.byBarcode, key)
}

func (l *memoryLookup) FindByAlias(ctx context.Context, key string) (Product, error) {
	return lookup(l.byAlias, key)
}

func TestResolvePrecedence(t *testing.T) {
	bySKU := Product{ID: uuid.New(), SKU: "AMOX-500"}
	byBarcode := Product{ID: uuid.New(), SKU: "OTHER-1"}
	byAlias := Product{ID: uuid.New(), SKU: "OTHER-2"}

	repo := newMemoryLookup()
	repo.bySKU[NormalizeKey("AMOX-500")] = bySKU
	repo.byBarcode[NormalizeKey("AMOX-500")] = byBarcode
	repo.byAlias[NormalizeKey("AMOX-500")] = byAlias

	resolver := NewResolver(repo)
	got, err := resolver.Resolve(context.Background(), "AMOX-500")
	require.NoError(t, err)
	require.Equal(t, bySKU.ID, got.ID)

	delete(repo.bySKU, NormalizeKey("AMOX-500"))
	got, err = resolver.Resolve(context.Background(), "AMOX-500")
	require.NoError(t, err)
	require.Equal(t, byBarcode.ID, got.ID)

	delete(repo.byBarcode, NormalizeKey("AMOX-500"))
	got, err = resolver.Resolve(context.Background(), "AMOX-500")
	require.NoError(t, err)
	require.Equal(t, byAlias.ID, got.ID)
}

func TestResolveNormalizesKey(t *testing.T) {
	product := Product{ID: uuid.New(), SKU: "PARA-650"}
	repo := newMemoryLookup()
	repo.bySKU[NormalizeKey("PARA-650")] = product

	resolver := NewResolver(repo)
	for _, raw := range []string{"para-650", "  PARA-650  ", "Para-650"} {
		got, err := resolver.Resolve(context.Background(), raw)
		require.NoError(t, err, "raw %q", raw)
		require.Equal(t, product.ID, got.ID)
	}
}

func TestResolveUnmatchedIsNotFound(t *testing.T) {
	resolver := NewResolver(newMemoryLookup())
	_, err := resolver.Resolve(context.Background(), "NOPE-1")
	require.ErrorIs(t, err, ErrProductNotFound)
	require.True(t, IsNotFound(err))

	_, err = resolver.Resolve(context.Background(), "   ")
	require.ErrorIs(t, err, ErrProductNotFound)
}
