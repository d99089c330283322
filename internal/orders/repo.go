package orders

import (
	"context"
	"errors"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindOrderByPayment(ctx context.Context, paymentID uuid.UUID) (*models.Order, error) {
	return r.findOrder(ctx, "payment_id = ?", paymentID)
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.findOrder(ctx, "id = ?", orderID)
}

func (r *repository) findOrder(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Vendors").
		Where(query, arg).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("order_number = ?", number).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *repository) CreateLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) AttachVendors(ctx context.Context, vendors []models.OrderVendor) error {
	if len(vendors) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&vendors).Error
}

// UpdateOrderStatus moves the order only if it is still in from. The caller
// treats zero rows as a concurrent transition.
func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

// UpdateLineStatuses propagates status to every line that did not fail at creation.
func (r *repository) UpdateLineStatuses(ctx context.Context, orderID uuid.UUID, status enums.LineStatus, stamps map[string]any) error {
	updates := map[string]any{"status": status}
	for k, v := range stamps {
		updates[k] = v
	}
	return r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("order_id = ? AND status <> ?", orderID, enums.LineStatusFailed).
		Updates(updates).Error
}

func (r *repository) BuyerName(ctx context.Context, ownerID, addressID uuid.UUID) (string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("id = ? AND owner_id = ?", addressID, ownerID).
		Limit(1).
		Pluck("full_name", &names).Error
	if err != nil || len(names) == 0 {
		return "", err
	}
	return names[0], nil
}

// SaveFailure upserts the failure row for a payment reference.
func (r *repository) SaveFailure(ctx context.Context, failure *models.OrderCreationFailure) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_reference"}},
			DoUpdates: clause.AssignmentColumns([]string{"attempts", "last_error", "payload", "alerted_at", "updated_at"}),
		}).
		Create(failure).Error
}
