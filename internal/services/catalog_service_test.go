package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
)

func TestCatalogCreateProduct(t *testing.T) {
	store := newTestStore(t, 5)
	svc := NewCatalogService(store)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, testBranch, models.CreateProductRequest{
		Name: "USB hub", UnitSalePrice: dec("18"), UnitCost: dec("11"), StockQuantity: 4,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.DefaultLowStockThreshold, p.LowStockThreshold)

	got, err := svc.GetProduct(ctx, testBranch, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "USB hub", got.Name)

	for name, req := range map[string]models.CreateProductRequest{
		"missing name":   {UnitSalePrice: dec("1")},
		"negative price": {Name: "x", UnitSalePrice: dec("-1")},
		"negative stock": {Name: "x", StockQuantity: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, testBranch, req)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
}

func TestCatalogAdjustStock(t *testing.T) {
	store := newTestStore(t, 5)
	svc := NewCatalogService(store)
	events := &recordingPublisher{}
	svc.Events = events
	ctx := context.Background()

	p, err := svc.AdjustStock(ctx, testBranch, "P1", models.AdjustStockRequest{Delta: 10, Reason: "delivery"})
	require.NoError(t, err)
	assert.Equal(t, 15, p.StockQuantity)
	assert.Equal(t, []string{models.EventProductUpdated}, events.types())

	_, err = svc.AdjustStock(ctx, testBranch, "P1", models.AdjustStockRequest{Delta: -16})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 15, stockOf(t, store, "P1"))

	_, err = svc.AdjustStock(ctx, testBranch, "P1", models.AdjustStockRequest{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = svc.AdjustStock(ctx, testBranch, "ghost", models.AdjustStockRequest{Delta: 1})
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestCatalogLowStock(t *testing.T) {
	store := newTestStore(t, 2)
	svc := NewCatalogService(store)

	low, err := svc.LowStock(context.Background(), testBranch)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "P1", low[0].ID)

	all, err := svc.ListProducts(context.Background(), testBranch)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCatalogAdjustStockRetriesOnContention(t *testing.T) {
	store := &contendedStore{Store: newTestStore(t, 5), failures: 2}
	svc := NewCatalogService(store)
	svc.Retry = WritePolicy(3, time.Millisecond)

	p, err := svc.AdjustStock(context.Background(), testBranch, "P1", models.AdjustStockRequest{Delta: 3, Reason: "recount"})
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, 8, p.StockQuantity)
	assert.Equal(t, 8, stockOf(t, store, "P1"))
}
