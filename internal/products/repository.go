package product

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

// Repository loads the catalog data pricing and order creation read.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// LoadProducts returns products with vendor and regions, keyed by id.
// Missing ids are simply absent from the map.
func (r *Repository) LoadProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return map[uuid.UUID]*models.Product{}, nil
	}
	var rows []*models.Product
	if err := r.db.WithContext(ctx).
		Preload("Vendor").
		Preload("Regions").
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return lo.KeyBy(rows, func(p *models.Product) uuid.UUID { return p.ID }), nil
}

// LoadVariants returns variants keyed by id.
func (r *Repository) LoadVariants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.ProductVariant, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return map[uuid.UUID]*models.ProductVariant{}, nil
	}
	var rows []*models.ProductVariant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return lo.KeyBy(rows, func(v *models.ProductVariant) uuid.UUID { return v.ID }), nil
}

// LinkedOptions returns the eligible delivery options of each product.
func (r *Repository) LinkedOptions(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]OptionSet, error) {
	productIDs = lo.Uniq(productIDs)
	if len(productIDs) == 0 {
		return map[uuid.UUID]OptionSet{}, nil
	}
	var links []models.ProductDeliveryOption
	if err := r.db.WithContext(ctx).
		Preload("DeliveryOption").
		Where("product_id IN ?", productIDs).
		Find(&links).Error; err != nil {
		return nil, err
	}
	grouped := lo.GroupBy(links, func(l models.ProductDeliveryOption) uuid.UUID { return l.ProductID })
	out := make(map[uuid.UUID]OptionSet, len(grouped))
	for productID, group := range grouped {
		out[productID] = OptionSet(group)
	}
	return out, nil
}

// SetDefaultOption makes optionID the single default for (product, variant).
// Must run inside a transaction so the reset and the set commit together.
func (r *Repository) SetDefaultOption(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, optionID uuid.UUID) error {
	db := r.db.WithContext(ctx)

	var link models.ProductDeliveryOption
	scoped := db.Where("product_id = ? AND delivery_option_id = ?", productID, optionID)
	scoped = whereVariant(scoped, variantID)
	if err := scoped.First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "delivery option is not linked to product")
		}
		return err
	}

	reset := db.Model(&models.ProductDeliveryOption{}).Where("product_id = ? AND is_default", productID)
	if err := whereVariant(reset, variantID).Update("is_default", false).Error; err != nil {
		return err
	}
	return db.Model(&models.ProductDeliveryOption{}).Where("id = ?", link.ID).Update("is_default", true).Error
}

func whereVariant(db *gorm.DB, variantID *uuid.UUID) *gorm.DB {
	if variantID == nil {
		return db.Where("variant_id IS NULL")
	}
	return db.Where("variant_id = ?", *variantID)
}
