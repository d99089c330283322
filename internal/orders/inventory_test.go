package orders

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

func TestInventoryConcurrentDecrementsNeverOversell(t *testing.T) {
	db := dbtest.Open(t)
	vendor := dbtest.Vendor(t, db, "GH", 5.6, -0.2)
	product := dbtest.Product(t, db, vendor.ID, "10", 5)
	inv := NewInventory()

	var (
		wg   sync.WaitGroup
		sold atomic.Int32
	)
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				ok, err := inv.Decrement(context.Background(), tx, product.ID, nil, 1)
				if ok {
					sold.Add(1)
				}
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var stored models.Product
	require.NoError(t, db.First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, int32(5), sold.Load())
	assert.Equal(t, 0, stored.TotalQuantity)
}

func TestInventoryVariantStock(t *testing.T) {
	db := dbtest.Open(t)
	vendor := dbtest.Vendor(t, db, "GH", 5.6, -0.2)
	product := dbtest.Product(t, db, vendor.ID, "10", 100)
	variant := &models.ProductVariant{ProductID: product.ID, Title: "Large", Price: decimal.RequireFromString("12"), Quantity: 2}
	dbtest.MustCreate(t, db, variant)
	inv := NewInventory()
	ctx := t.Context()

	ok, err := inv.Decrement(ctx, db, product.ID, &variant.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = inv.Decrement(ctx, db, product.ID, &variant.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, inv.Release(ctx, db, product.ID, &variant.ID, 1))

	var storedVariant models.ProductVariant
	require.NoError(t, db.First(&storedVariant, "id = ?", variant.ID).Error)
	assert.Equal(t, 1, storedVariant.Quantity)

	var storedProduct models.Product
	require.NoError(t, db.First(&storedProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 100, storedProduct.TotalQuantity)
}

func TestInventoryRejectsBadInput(t *testing.T) {
	db := dbtest.Open(t)
	inv := NewInventory()

	_, err := inv.Decrement(t.Context(), db, dbtest.Product(t, db, dbtest.Vendor(t, db, "GH", 5.6, -0.2).ID, "10", 1).ID, nil, 0)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = inv.Decrement(t.Context(), nil, uuid.New(), nil, 1)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}
