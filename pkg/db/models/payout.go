package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Payout is the immutable record of one transfer attempt to a vendor.
type Payout struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	VendorID      uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null;index"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	ProductTotal  decimal.Decimal    `gorm:"column:product_total;type:numeric(12,2);not null"`
	DeliveryTotal decimal.Decimal    `gorm:"column:delivery_total;type:numeric(12,2);not null"`
	Status        enums.PayoutStatus `gorm:"column:status;type:text;not null"`
	TransactionID *string            `gorm:"column:transaction_id"`
	ErrorMessage  *string            `gorm:"column:error_message"`
	MatchScore    *float64           `gorm:"column:match_score"`
	Orders        []PayoutOrder      `gorm:"foreignKey:PayoutID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payout) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PayoutOrder links one vendor's share of an order to the single payout that covered it.
type PayoutOrder struct {
	PayoutID uuid.UUID `gorm:"column:payout_id;type:uuid;primaryKey"`
	OrderID  uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey;uniqueIndex:ux_payout_orders_order_vendor"`
	VendorID uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:ux_payout_orders_order_vendor"`
}
