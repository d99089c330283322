package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart holds the buyer's pending purchase. One cart per owner; guests are keyed by session.
type Cart struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID    *uuid.UUID `gorm:"column:owner_id;type:uuid;uniqueIndex:ux_carts_owner"`
	SessionKey *string    `gorm:"column:session_key"`
	Lines      []CartLine `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CartLine is one product/variant in a cart. Removed lines keep their row with RemovedAt set.
type CartLine struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CartID           uuid.UUID  `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID        uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID        *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Quantity         int        `gorm:"column:quantity;not null"`
	DeliveryOptionID *uuid.UUID `gorm:"column:delivery_option_id;type:uuid"`
	RemovedAt        *time.Time `gorm:"column:removed_at"`
	RemovedReason    *string    `gorm:"column:removed_reason"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *CartLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
