package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Order is created exactly once per payment and afterwards only changes status.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     uuid.UUID         `gorm:"column:owner_id;type:uuid;not null;index"`
	AddressID   uuid.UUID         `gorm:"column:address_id;type:uuid;not null"`
	PaymentID   uuid.UUID         `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:ux_orders_payment"`
	OrderNumber string            `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	Subtotal    decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	DeliveryFee decimal.Decimal   `gorm:"column:delivery_fee;type:numeric(12,2);not null;default:0"`
	Total       decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	Status      enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	IP          *string           `gorm:"column:ip"`
	Lines       []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Vendors     []OrderVendor     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderVendor attaches a vendor to an order with the vendor's delivery fee snapshot.
type OrderVendor struct {
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;primaryKey"`
	VendorID    uuid.UUID       `gorm:"column:vendor_id;type:uuid;primaryKey;index"`
	DeliveryFee decimal.Decimal `gorm:"column:delivery_fee;type:numeric(12,2);not null;default:0"`
}

// OrderLine is one product per order with its price and delivery option frozen at order time.
type OrderLine struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	VariantID      *uuid.UUID       `gorm:"column:variant_id;type:uuid"`
	VendorID       *uuid.UUID       `gorm:"column:vendor_id;type:uuid;index"`
	Quantity       int              `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal  `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Amount         decimal.Decimal  `gorm:"column:amount;type:numeric(12,2);not null"`
	DeliveryOption json.RawMessage  `gorm:"column:delivery_option;type:jsonb"`
	Status         enums.LineStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ShippedAt      *time.Time       `gorm:"column:shipped_at"`
	DeliveredAt    *time.Time       `gorm:"column:delivered_at"`
	RefundReason   *string          `gorm:"column:refund_reason"`
	FailureReason  *string          `gorm:"column:failure_reason"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// DeliveryOptionSnapshot decodes the frozen delivery option, if any.
func (l OrderLine) DeliveryOptionSnapshot() (*DeliveryOption, error) {
	if len(l.DeliveryOption) == 0 || string(l.DeliveryOption) == "null" {
		return nil, nil
	}
	var opt DeliveryOption
	if err := json.Unmarshal(l.DeliveryOption, &opt); err != nil {
		return nil, err
	}
	return &opt, nil
}

// OrderCreationFailure records a paid order that could not be created after all retries.
type OrderCreationFailure struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PaymentReference string          `gorm:"column:payment_reference;not null;uniqueIndex"`
	OwnerID          uuid.UUID       `gorm:"column:owner_id;type:uuid;not null"`
	Attempts         int             `gorm:"column:attempts;not null"`
	LastError        string          `gorm:"column:last_error;not null"`
	Payload          json.RawMessage `gorm:"column:payload;type:jsonb"`
	AlertedAt        *time.Time      `gorm:"column:alerted_at"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (f *OrderCreationFailure) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
