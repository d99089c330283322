package payouts

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Payee is a vendor together with the verified method it is paid through.
type Payee struct {
	Vendor models.Vendor
	Method models.VendorPayoutMethod
}

// UnpaidOrder is one delivered order's share for a vendor that no payout covers yet.
type UnpaidOrder struct {
	OrderID      uuid.UUID
	OrderNumber  string
	ProductTotal decimal.Decimal
	DeliveryFee  decimal.Decimal
}

// Repository reads payout inputs and records payout attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Payees(ctx context.Context) ([]Payee, error)
	UnpaidOrders(ctx context.Context, vendorID uuid.UUID) ([]UnpaidOrder, error)
	CreatePayout(ctx context.Context, payout *models.Payout) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed payout repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Payees lists vendors with a verified payout method, oldest method first
// when a vendor has several.
func (r *repository) Payees(ctx context.Context) ([]Payee, error) {
	var methods []models.VendorPayoutMethod
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.PayoutMethodStatusVerified).
		Order("created_at ASC").
		Find(&methods).Error; err != nil {
		return nil, err
	}
	if len(methods) == 0 {
		return nil, nil
	}

	chosen := map[uuid.UUID]models.VendorPayoutMethod{}
	var order []uuid.UUID
	for _, m := range methods {
		if _, ok := chosen[m.VendorID]; ok {
			continue
		}
		chosen[m.VendorID] = m
		order = append(order, m.VendorID)
	}

	var vendors []models.Vendor
	if err := r.db.WithContext(ctx).Where("id IN ?", order).Find(&vendors).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Vendor, len(vendors))
	for _, v := range vendors {
		byID[v.ID] = v
	}

	payees := make([]Payee, 0, len(order))
	for _, id := range order {
		vendor, ok := byID[id]
		if !ok {
			continue
		}
		payees = append(payees, Payee{Vendor: vendor, Method: chosen[id]})
	}
	return payees, nil
}

// UnpaidOrders returns delivered orders of vendor with the vendor's product
// total (failed lines excluded) and delivery fee snapshot.
func (r *repository) UnpaidOrders(ctx context.Context, vendorID uuid.UUID) ([]UnpaidOrder, error) {
	type row struct {
		OrderID     uuid.UUID
		OrderNumber string
		DeliveryFee decimal.Decimal
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Table("orders AS o").
		Select("o.id AS order_id, o.order_number, ov.delivery_fee").
		Joins("JOIN order_vendors AS ov ON ov.order_id = o.id AND ov.vendor_id = ?", vendorID).
		Where("o.status = ?", enums.OrderStatusDelivered).
		Where("NOT EXISTS (SELECT 1 FROM payout_orders AS po WHERE po.order_id = o.id AND po.vendor_id = ?)", vendorID).
		Order("o.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, rw := range rows {
		ids[i] = rw.OrderID
	}
	var lines []models.OrderLine
	if err := r.db.WithContext(ctx).
		Select("order_id", "amount").
		Where("order_id IN ? AND vendor_id = ? AND status <> ?", ids, vendorID, enums.LineStatusFailed).
		Find(&lines).Error; err != nil {
		return nil, err
	}
	totals := map[uuid.UUID]decimal.Decimal{}
	for _, line := range lines {
		totals[line.OrderID] = totals[line.OrderID].Add(line.Amount)
	}

	out := make([]UnpaidOrder, len(rows))
	for i, rw := range rows {
		out[i] = UnpaidOrder{
			OrderID:      rw.OrderID,
			OrderNumber:  rw.OrderNumber,
			ProductTotal: totals[rw.OrderID],
			DeliveryFee:  rw.DeliveryFee,
		}
	}
	return out, nil
}

// CreatePayout inserts the payout and its order links.
func (r *repository) CreatePayout(ctx context.Context, payout *models.Payout) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(payout).Error; err != nil {
		return err
	}
	if len(payout.Orders) == 0 {
		return nil
	}
	for i := range payout.Orders {
		payout.Orders[i].PayoutID = payout.ID
	}
	return r.db.WithContext(ctx).Create(&payout.Orders).Error
}
