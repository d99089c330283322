package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// DeliveryOption is a shipping method with a static cost and a transit window in days.
type DeliveryOption struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string              `gorm:"column:name;not null" json:"name"`
	Scope     enums.DeliveryScope `gorm:"column:scope;type:text;not null" json:"scope"`
	Carrier   *string             `gorm:"column:carrier" json:"carrier,omitempty"`
	MinDays   int                 `gorm:"column:min_days;not null" json:"min_days"`
	MaxDays   int                 `gorm:"column:max_days;not null" json:"max_days"`
	Cost      decimal.Decimal     `gorm:"column:cost;type:numeric(12,2);not null" json:"cost"`
	SameDay   bool                `gorm:"column:same_day;not null;default:false" json:"same_day"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime" json:"-"`
}

func (o *DeliveryOption) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// ProductDeliveryOption links a product (optionally a variant) to an eligible option.
type ProductDeliveryOption struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID        *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	DeliveryOptionID uuid.UUID       `gorm:"column:delivery_option_id;type:uuid;not null"`
	DeliveryOption   *DeliveryOption `gorm:"foreignKey:DeliveryOptionID"`
	IsDefault        bool            `gorm:"column:is_default;not null;default:false"`
}

func (p *ProductDeliveryOption) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
