package orders

import (
	"context"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type inventory struct{}

// NewInventory exposes the stock adjuster backed by products and product_variants.
func NewInventory() Inventory {
	return inventory{}
}

// Decrement takes qty from the variant's stock when a variant is given, else
// from the product. It reports false when stock is insufficient.
func (inventory) Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock decrement")
	}

	var res *gorm.DB
	if variantID != nil {
		res = tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ? AND product_id = ? AND quantity >= ?", *variantID, productID, qty).
			UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	} else {
		res = tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND total_quantity >= ?", productID, qty).
			UpdateColumn("total_quantity", gorm.Expr("total_quantity - ?", qty))
	}
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	return res.RowsAffected == 1, nil
}

// Release returns qty to stock, e.g. when an order is canceled.
func (inventory) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}

	var res *gorm.DB
	if variantID != nil {
		res = tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ? AND product_id = ?", *variantID, productID).
			UpdateColumn("quantity", gorm.Expr("quantity + ?", qty))
	} else {
		res = tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", productID).
			UpdateColumn("total_quantity", gorm.Expr("total_quantity + ?", qty))
	}
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	return nil
}
