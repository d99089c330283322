package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/internal/delivery"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Coupon rejection reasons reported on a quote.
const (
	CouponNotClipped = "coupon_not_clipped"
	CouponExpired    = "coupon_not_valid"
)

// ReasonProductUnavailable marks cart lines whose product no longer exists.
const ReasonProductUnavailable = "product_unavailable"

// QuoteInput selects whose cart to price and when.
type QuoteInput struct {
	OwnerID  uuid.UUID
	CouponID *uuid.UUID
	// Now anchors delivery windows and coupon validity; zero means the service clock.
	Now time.Time
}

// Quote is the priced view of a cart. Computing it never mutates anything but
// the soft removal of lines that cannot ship to the buyer.
type Quote struct {
	OwnerID            uuid.UUID                     `json:"owner_id"`
	CartID             *uuid.UUID                    `json:"cart_id,omitempty"`
	BuyerCountry       string                        `json:"buyer_country"`
	Lines              []QuoteLine                   `json:"lines"`
	Subtotal           decimal.Decimal               `json:"subtotal"`
	DeliveryTotal      decimal.Decimal               `json:"delivery_total"`
	PackagingTotal     decimal.Decimal               `json:"packaging_total"`
	Discount           decimal.Decimal               `json:"discount"`
	GrandTotal         decimal.Decimal               `json:"grand_total"`
	CouponID           *uuid.UUID                    `json:"coupon_id,omitempty"`
	CouponRejected     string                        `json:"coupon_rejected,omitempty"`
	VendorFees         map[uuid.UUID]decimal.Decimal `json:"vendor_fees"`
	DeliveryRange      *delivery.Window              `json:"delivery_range,omitempty"`
	InvalidItems       []delivery.InvalidItem        `json:"invalid_items"`
	DeletedItems       []DeletedItem                 `json:"deleted_items"`
	DeliveryOptions    map[uuid.UUID]EligibleOptions `json:"delivery_options"`
	CoordinatesMissing bool                          `json:"coordinates_missing"`
	LocationSource     string                        `json:"location_source"`
}

// QuoteLine is one shippable cart line with its price and delivery estimate.
type QuoteLine struct {
	CartLineID     uuid.UUID             `json:"cart_line_id"`
	ProductID      uuid.UUID             `json:"product_id"`
	VariantID      *uuid.UUID            `json:"variant_id,omitempty"`
	VendorID       uuid.UUID             `json:"vendor_id"`
	Title          string                `json:"title"`
	Quantity       int                   `json:"quantity"`
	UnitPrice      decimal.Decimal       `json:"unit_price"`
	Amount         decimal.Decimal       `json:"amount"`
	PackagingFee   decimal.Decimal       `json:"packaging_fee"`
	Scope          enums.DeliveryScope   `json:"scope"`
	DeliveryOption models.DeliveryOption `json:"delivery_option"`
	Window         delivery.Window       `json:"window"`
}

// DeletedItem is a cart line removed while quoting.
type DeletedItem struct {
	CartLineID uuid.UUID `json:"cart_line_id"`
	ProductID  uuid.UUID `json:"product_id"`
	Title      string    `json:"title"`
	Reason     string    `json:"reason"`
}

// EligibleOptions lists a product's delivery options by scope.
type EligibleOptions struct {
	Local         []models.DeliveryOption `json:"local"`
	International []models.DeliveryOption `json:"international"`
}
