package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment is a verified gateway charge. Reference is the idempotency key for order creation.
type Payment struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     uuid.UUID `gorm:"column:owner_id;type:uuid;not null"`
	Reference   string    `gorm:"column:reference;not null;uniqueIndex:ux_payments_reference"`
	AmountMinor int64     `gorm:"column:amount_minor;not null"`
	Verified    bool      `gorm:"column:verified;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
