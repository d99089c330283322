package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

// Repository exposes persistence operations for buyer carts.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByOwner loads the owner's cart with its active lines, oldest first.
func (r *Repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Where("removed_at IS NULL").Order("created_at ASC")
		}).
		Where("owner_id = ?", ownerID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SoftRemoveLines stamps lines as removed without deleting them.
func (r *Repository) SoftRemoveLines(ctx context.Context, lineIDs []uuid.UUID, reason string, at time.Time) error {
	if len(lineIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id IN ? AND removed_at IS NULL", lineIDs).
		Updates(map[string]any{"removed_at": at, "removed_reason": reason}).Error
}

// SetDeliveryOption points every active line of productID at optionID.
func (r *Repository) SetDeliveryOption(ctx context.Context, cartID, productID, optionID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("cart_id = ? AND product_id = ? AND removed_at IS NULL", cartID, productID).
		Update("delivery_option_id", optionID)
	return res.RowsAffected, res.Error
}

// ClearByOwner deletes every line of the owner's cart. The cart row stays.
func (r *Repository) ClearByOwner(ctx context.Context, ownerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id IN (?)", r.db.Model(&models.Cart{}).Select("id").Where("owner_id = ?", ownerID)).
		Delete(&models.CartLine{}).Error
}
