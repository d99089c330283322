package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

// Repository exposes the coupon queries checkout needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ClippedCoupon(ctx context.Context, ownerID, couponID uuid.UUID) (*models.Coupon, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ClippedCoupon returns the coupon when the owner has clipped it, nil otherwise.
func (r *repository) ClippedCoupon(ctx context.Context, ownerID, couponID uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("id = ?", couponID).
		Where("EXISTS (?)", r.db.Model(&models.ClippedCoupon{}).
			Select("1").
			Where("clipped_coupons.coupon_id = coupons.id AND clipped_coupons.owner_id = ?", ownerID)).
		First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}
