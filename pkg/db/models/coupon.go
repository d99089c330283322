package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Coupon is either a fixed-amount or percentage discount.
type Coupon struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Code               string          `gorm:"column:code;not null;uniqueIndex"`
	DiscountAmount     decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	DiscountPercentage decimal.Decimal `gorm:"column:discount_percentage;type:numeric(5,2);not null;default:0"`
	ValidFrom          time.Time       `gorm:"column:valid_from;not null"`
	ValidUntil         time.Time       `gorm:"column:valid_until;not null"`
	Active             bool            `gorm:"column:active;not null;default:true"`
	MaxUses            int             `gorm:"column:max_uses;not null;default:1"`
	UsedCount          int             `gorm:"column:used_count;not null;default:0"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// IsValid reports whether the coupon can be redeemed at now.
func (c Coupon) IsValid(now time.Time) bool {
	return c.Active && !now.Before(c.ValidFrom) && !now.After(c.ValidUntil) && c.UsedCount < c.MaxUses
}

// Discount returns the amount taken off subtotal, rounded to cents.
func (c Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if c.DiscountAmount.IsPositive() {
		return c.DiscountAmount.Round(2)
	}
	return subtotal.Mul(c.DiscountPercentage).Div(decimal.NewFromInt(100)).Round(2)
}

// ClippedCoupon records that a buyer saved a coupon for use.
type ClippedCoupon struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID   uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	CouponID  uuid.UUID `gorm:"column:coupon_id;type:uuid;not null"`
	ClippedAt time.Time `gorm:"column:clipped_at;autoCreateTime"`
}

func (c *ClippedCoupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
