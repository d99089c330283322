package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Vendor is a seller; its coordinates drive local delivery pricing.
type Vendor struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name            string    `gorm:"column:name;not null"`
	ShipFromCountry string    `gorm:"column:ship_from_country;size:2;not null"`
	Latitude        *float64  `gorm:"column:latitude"`
	Longitude       *float64  `gorm:"column:longitude"`
	NotifyEmail     *string   `gorm:"column:notify_email"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (v *Vendor) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// VendorPayoutMethod is where a vendor receives earnings.
type VendorPayoutMethod struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	VendorID      uuid.UUID                `gorm:"column:vendor_id;type:uuid;not null;index"`
	Method        enums.PayoutMethodType   `gorm:"column:method;type:text;not null"`
	Status        enums.PayoutMethodStatus `gorm:"column:status;type:text;not null"`
	AccountName   string                   `gorm:"column:account_name;not null;default:''"`
	BankName      *string                  `gorm:"column:bank_name"`
	AccountNumber *string                  `gorm:"column:account_number"`
	MomoNumber    *string                  `gorm:"column:momo_number"`
	MomoProvider  *string                  `gorm:"column:momo_provider"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (m *VendorPayoutMethod) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
