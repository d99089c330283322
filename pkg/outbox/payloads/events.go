package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// PaymentLine is one cart line frozen at payment time.
type PaymentLine struct {
	ProductID        uuid.UUID  `json:"product_id" validate:"required"`
	VariantID        *uuid.UUID `json:"variant_id,omitempty"`
	Quantity         int        `json:"quantity" validate:"required,min=1"`
	DeliveryOptionID *uuid.UUID `json:"delivery_option_id,omitempty"`
}

// PaymentVerifiedEvent asks the order pipeline to turn a verified payment into an order.
type PaymentVerifiedEvent struct {
	OwnerID          uuid.UUID     `json:"owner_id" validate:"required"`
	PaymentReference string        `json:"payment_reference" validate:"required,max=200"`
	AmountMinor      int64         `json:"amount_minor" validate:"gte=0"`
	AddressID        uuid.UUID     `json:"address_id" validate:"required"`
	IP               string        `json:"ip,omitempty" validate:"omitempty,ip"`
	Lines            []PaymentLine `json:"lines" validate:"required,min=1,dive"`
}

// VendorOrderNotificationEvent tells a vendor a new order contains its products.
type VendorOrderNotificationEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	VendorID    uuid.UUID       `json:"vendor_id"`
	BuyerName   string          `json:"buyer_name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemsCount  int             `json:"items_count"`
	URL         string          `json:"url"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PayoutResultEvent reports the outcome of one payout attempt.
type PayoutResultEvent struct {
	PayoutID      uuid.UUID          `json:"payout_id"`
	VendorID      uuid.UUID          `json:"vendor_id"`
	Status        enums.PayoutStatus `json:"status"`
	Amount        decimal.Decimal    `json:"amount"`
	OrderIDs      []uuid.UUID        `json:"order_ids"`
	TransactionID string             `json:"transaction_id,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
}
