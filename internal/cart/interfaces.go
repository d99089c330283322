package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

// RemovedReasonRegion marks lines dropped because the product does not ship to the buyer.
const RemovedReasonRegion = "region_unavailable"

// CartRepository defines the persistence surface used by checkout and order creation.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error)
	SoftRemoveLines(ctx context.Context, lineIDs []uuid.UUID, reason string, at time.Time) error
	SetDeliveryOption(ctx context.Context, cartID, productID, optionID uuid.UUID) (int64, error)
	ClearByOwner(ctx context.Context, ownerID uuid.UUID) error
}
