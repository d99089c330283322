package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Address is a buyer shipping address.
type Address struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	FullName    string    `gorm:"column:full_name;not null;default:''"`
	Line1       string    `gorm:"column:line1;not null;default:''"`
	City        string    `gorm:"column:city;not null;default:''"`
	Region      string    `gorm:"column:region;not null;default:''"`
	CountryCode string    `gorm:"column:country_code;size:2"`
	Latitude    *float64  `gorm:"column:latitude"`
	Longitude   *float64  `gorm:"column:longitude"`
	IsDefault   bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Profile carries buyer defaults used when no address is on file.
type Profile struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     uuid.UUID `gorm:"column:owner_id;type:uuid;not null;uniqueIndex"`
	FullName    string    `gorm:"column:full_name;not null;default:''"`
	Email       string    `gorm:"column:email;not null;default:''"`
	CountryCode *string   `gorm:"column:country_code;size:2"`
	Latitude    *float64  `gorm:"column:latitude"`
	Longitude   *float64  `gorm:"column:longitude"`
}

func (p *Profile) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
