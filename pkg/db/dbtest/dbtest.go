// Package dbtest opens throwaway sqlite databases with the full schema for tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Open returns an isolated in-memory database migrated with every model.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// TxRunner runs transactions against a test database.
type TxRunner struct {
	DB *gorm.DB
}

func (r TxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.DB.WithContext(ctx).Transaction(fn)
}

// MustCreate inserts value or fails the test.
func MustCreate(t *testing.T, db *gorm.DB, value any) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

// Vendor inserts a vendor shipping from country at the given coordinates.
func Vendor(t *testing.T, db *gorm.DB, country string, lat, lng float64) *models.Vendor {
	t.Helper()
	email := gofakeit.Email()
	v := &models.Vendor{
		Name:            gofakeit.Company(),
		ShipFromCountry: country,
		Latitude:        &lat,
		Longitude:       &lng,
		NotifyEmail:     &email,
	}
	MustCreate(t, db, v)
	return v
}

// Product inserts a published product with stock for vendor.
func Product(t *testing.T, db *gorm.DB, vendorID uuid.UUID, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		VendorID:      vendorID,
		Title:         gofakeit.ProductName(),
		Price:         decimal.RequireFromString(price),
		WeightKG:      decimal.RequireFromString("1"),
		VolumeM3:      decimal.RequireFromString("0.5"),
		TotalQuantity: stock,
		Status:        enums.ProductStatusPublished,
	}
	MustCreate(t, db, p)
	return p
}

// Option inserts a delivery option.
func Option(t *testing.T, db *gorm.DB, name string, scope enums.DeliveryScope, minDays, maxDays int, cost string) *models.DeliveryOption {
	t.Helper()
	o := &models.DeliveryOption{
		Name:    name,
		Scope:   scope,
		MinDays: minDays,
		MaxDays: maxDays,
		Cost:    decimal.RequireFromString(cost),
	}
	MustCreate(t, db, o)
	return o
}

// Link makes option eligible for product, optionally as the default.
func Link(t *testing.T, db *gorm.DB, productID, optionID uuid.UUID, isDefault bool) {
	t.Helper()
	MustCreate(t, db, &models.ProductDeliveryOption{
		ProductID:        productID,
		DeliveryOptionID: optionID,
		IsDefault:        isDefault,
	})
}

// Address inserts a default address for owner.
func Address(t *testing.T, db *gorm.DB, ownerID uuid.UUID, country string, lat, lng *float64) *models.Address {
	t.Helper()
	a := &models.Address{
		OwnerID:     ownerID,
		FullName:    gofakeit.Name(),
		Line1:       gofakeit.Street(),
		City:        gofakeit.City(),
		CountryCode: country,
		Latitude:    lat,
		Longitude:   lng,
		IsDefault:   true,
	}
	MustCreate(t, db, a)
	return a
}

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }
