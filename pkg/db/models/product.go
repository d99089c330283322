package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Product represents the canonical vendor listing.
type Product struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	VendorID      uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	Vendor        *Vendor             `gorm:"foreignKey:VendorID"`
	Title         string              `gorm:"column:title;not null"`
	Price         decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	WeightKG      decimal.Decimal     `gorm:"column:weight_kg;type:numeric(10,3);not null;default:0"`
	VolumeM3      decimal.Decimal     `gorm:"column:volume_m3;type:numeric(10,4);not null;default:0"`
	TotalQuantity int                 `gorm:"column:total_quantity;not null;default:0"`
	Status        enums.ProductStatus `gorm:"column:status;type:text;not null;default:'published'"`
	Regions       []ProductRegion     `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// AvailableIn reports whether the product ships to country. No regions means everywhere.
func (p Product) AvailableIn(country string) bool {
	if len(p.Regions) == 0 {
		return true
	}
	for _, r := range p.Regions {
		if r.CountryCode == country {
			return true
		}
	}
	return false
}

// ProductVariant carries its own price and stock.
type ProductVariant struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Title     string          `gorm:"column:title"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null;default:0"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// ProductRegion restricts where a product can be shipped.
type ProductRegion struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	CountryCode string    `gorm:"column:country_code;size:2;not null"`
}

func (r *ProductRegion) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
