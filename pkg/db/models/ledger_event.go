package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// LedgerEvent records an immutable money movement tied to an order.
type LedgerEvent struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     *uuid.UUID            `gorm:"column:order_id;type:uuid;index"`
	VendorID    *uuid.UUID            `gorm:"column:vendor_id;type:uuid"`
	PayoutID    *uuid.UUID            `gorm:"column:payout_id;type:uuid"`
	Type        enums.LedgerEventType `gorm:"column:type;type:text;not null"`
	AmountMinor int64                 `gorm:"column:amount_minor;not null"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
