package orders

import (
	"context"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for payments, orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindOrderByPayment(ctx context.Context, paymentID uuid.UUID) (*models.Order, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	OrderNumberExists(ctx context.Context, number string) (bool, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLines(ctx context.Context, lines []models.OrderLine) error
	AttachVendors(ctx context.Context, vendors []models.OrderVendor) error
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error)
	UpdateLineStatuses(ctx context.Context, orderID uuid.UUID, status enums.LineStatus, stamps map[string]any) error
	BuyerName(ctx context.Context, ownerID, addressID uuid.UUID) (string, error)
	SaveFailure(ctx context.Context, failure *models.OrderCreationFailure) error
}

// Inventory decrements and restores product or variant stock.
type Inventory interface {
	Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) (bool, error)
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) error
}
