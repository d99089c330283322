package delivery

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

// Reasons reported for lines that cannot be priced.
const (
	ReasonNoDeliveryOption         = "no_delivery_option"
	ReasonRequiresInternational    = "requires_international_option"
	ReasonInternationalOptionLocal = "international_option_for_local"
	ReasonInvalidQuantity          = "invalid_quantity"
)

// QuoteRequest asks a carrier to rate one shipment.
type QuoteRequest struct {
	Carrier            string
	OriginCountry      string
	DestinationCountry string
	WeightKG           decimal.Decimal
	VolumeM3           decimal.Decimal
}

// Quote is a carrier rate with its transit estimate.
type Quote struct {
	Carrier string          `json:"carrier"`
	Cost    decimal.Decimal `json:"cost"`
	MinDays int             `json:"min_days"`
	MaxDays int             `json:"max_days"`
}

// Override exposes the quote's transit days to the schedule calculator.
func (q Quote) Override() *Override {
	return &Override{MinDays: q.MinDays, MaxDays: q.MaxDays}
}

// CarrierQuoter returns dynamic carrier quotes.
type CarrierQuoter interface {
	Quote(ctx context.Context, req QuoteRequest) (Quote, error)
}

// LineItem is one priced unit of a cart or order.
type LineItem struct {
	ProductID     uuid.UUID
	VariantID     *uuid.UUID
	Title         string
	VendorID      uuid.UUID
	VendorCountry string
	VendorCoords  *Coordinates
	Quantity      int
	WeightKG      decimal.Decimal
	VolumeM3      decimal.Decimal
	// Option is the buyer's choice or the product default.
	Option *models.DeliveryOption
	// DefaultInternational is the product's default international option, if any.
	DefaultInternational *models.DeliveryOption
}

// Destination is where the buyer receives the goods.
type Destination struct {
	CountryCode string
	Coords      *Coordinates
}

// InvalidItem is a line skipped because no valid option could ship it.
type InvalidItem struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	VendorID  uuid.UUID  `json:"vendor_id"`
	Title     string     `json:"title,omitempty"`
	Reason    string     `json:"reason"`
}

// PricedLine is an accepted line with the option that was actually used.
type PricedLine struct {
	Index        int
	Item         LineItem
	Option       models.DeliveryOption
	Scope        enums.DeliveryScope
	PackagingFee decimal.Decimal
}

// FeeResult carries the outcome of one pricing run.
type FeeResult struct {
	Total              decimal.Decimal
	DeliveryTotal      decimal.Decimal
	PackagingTotal     decimal.Decimal
	DynamicQuotes      map[uuid.UUID]Quote
	VendorFees         map[uuid.UUID]decimal.Decimal
	InvalidItems       []InvalidItem
	Lines              []PricedLine
	CoordinatesMissing bool
	BuyerCountry       string
}

// Engine prices delivery per vendor.
type Engine struct {
	cfg    config.PricingConfig
	quoter CarrierQuoter
	logg   *logger.Logger
}

// NewEngine builds the pricing engine. quoter may be nil, in which case
// international options are priced from their static cost.
func NewEngine(cfg config.PricingConfig, quoter CarrierQuoter, logg *logger.Logger) *Engine {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Engine{cfg: cfg, quoter: quoter, logg: logg}
}

// Compute prices items for dest. It never fails: carrier errors fall back to
// static costs and unshippable lines land in InvalidItems.
func (e *Engine) Compute(ctx context.Context, items []LineItem, dest Destination) FeeResult {
	buyerCountry := e.countryOrDefault(dest.CountryCode)
	res := FeeResult{
		Total:          decimal.Zero,
		DeliveryTotal:  decimal.Zero,
		PackagingTotal: decimal.Zero,
		DynamicQuotes:  map[uuid.UUID]Quote{},
		VendorFees:     map[uuid.UUID]decimal.Decimal{},
		BuyerCountry:   buyerCountry,
	}
	if dest.Coords == nil {
		res.CoordinatesMissing = true
		e.logg.Warn(ctx, "destination has no coordinates; delivery fee set to zero")
	}

	for i, item := range items {
		if item.Quantity < 1 {
			res.InvalidItems = append(res.InvalidItems, invalid(item, ReasonInvalidQuantity))
			continue
		}
		vendorCountry := e.countryOrDefault(item.VendorCountry)
		scope := enums.ScopeFor(vendorCountry, buyerCountry)

		opt, reason := resolveOption(item, scope)
		if reason != "" {
			res.InvalidItems = append(res.InvalidItems, invalid(item, reason))
			continue
		}

		packaging := e.packagingFee(item)
		res.Lines = append(res.Lines, PricedLine{Index: i, Item: item, Option: opt, Scope: scope, PackagingFee: packaging})
		if res.CoordinatesMissing {
			continue
		}
		res.PackagingTotal = res.PackagingTotal.Add(packaging)

		fee, priced := res.VendorFees[item.VendorID]
		if !priced {
			var quote *Quote
			if scope == enums.DeliveryScopeInternational {
				fee, quote = e.internationalFee(ctx, item, opt, vendorCountry, buyerCountry)
			} else {
				fee = e.localFee(item, opt, *dest.Coords)
			}
			if quote != nil {
				res.DynamicQuotes[item.VendorID] = *quote
			}
			res.VendorFees[item.VendorID] = fee
			continue
		}

		if quote, ok := res.DynamicQuotes[item.VendorID]; ok {
			extra := quote.Cost.Mul(e.cfg.ExtraItemSurchargeFraction).Round(2)
			res.VendorFees[item.VendorID] = fee.Add(extra)
		}
	}

	for _, fee := range res.VendorFees {
		res.DeliveryTotal = res.DeliveryTotal.Add(fee)
	}
	res.Total = res.DeliveryTotal.Add(res.PackagingTotal)
	return res
}

// LocalFee prices a local shipment for a known distance.
func (e *Engine) LocalFee(distanceKM float64, optionCost decimal.Decimal) decimal.Decimal {
	if !e.cfg.RateConfigured {
		return optionCost
	}
	if distanceKM <= e.cfg.ShortRangeKM {
		return e.cfg.BasePrice.Add(optionCost)
	}
	extraKM := decimal.NewFromFloat(distanceKM - e.cfg.ShortRangeKM)
	return extraKM.Mul(e.cfg.RatePerKM).Add(optionCost).Round(2)
}

func (e *Engine) localFee(item LineItem, opt models.DeliveryOption, dest Coordinates) decimal.Decimal {
	if item.VendorCoords == nil {
		return opt.Cost
	}
	return e.LocalFee(HaversineKM(*item.VendorCoords, dest), opt.Cost)
}

func (e *Engine) internationalFee(ctx context.Context, item LineItem, opt models.DeliveryOption, origin, destination string) (decimal.Decimal, *Quote) {
	static := opt.Cost
	if !static.IsPositive() {
		static = e.cfg.InternationalFallbackCost
	}
	if e.quoter == nil || opt.Carrier == nil || strings.TrimSpace(*opt.Carrier) == "" {
		return static, nil
	}

	qty := decimal.NewFromInt(int64(item.Quantity))
	quote, err := e.quoter.Quote(ctx, QuoteRequest{
		Carrier:            *opt.Carrier,
		OriginCountry:      origin,
		DestinationCountry: destination,
		WeightKG:           item.WeightKG.Mul(qty),
		VolumeM3:           item.VolumeM3.Mul(qty),
	})
	if err != nil {
		logCtx := e.logg.WithVendorID(ctx, item.VendorID.String())
		logCtx = e.logg.WithFields(logCtx, map[string]any{"carrier": *opt.Carrier, "error": err.Error()})
		e.logg.Warn(logCtx, "carrier quote failed; using static international cost")
		return static, nil
	}
	return quote.Cost, &quote
}

// packagingFee is (weight_rate*weight + volume_rate*volume) * quantity.
func (e *Engine) packagingFee(item LineItem) decimal.Decimal {
	perUnit := e.cfg.PackagingWeightRate.Mul(item.WeightKG).Add(e.cfg.PackagingVolumeRate.Mul(item.VolumeM3))
	return perUnit.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
}

func (e *Engine) countryOrDefault(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return strings.ToUpper(e.cfg.DefaultCountry)
	}
	return code
}

func resolveOption(item LineItem, scope enums.DeliveryScope) (models.DeliveryOption, string) {
	if scope == enums.DeliveryScopeInternational {
		if item.Option != nil && item.Option.Scope == enums.DeliveryScopeInternational {
			return *item.Option, ""
		}
		if item.DefaultInternational != nil {
			return *item.DefaultInternational, ""
		}
		return models.DeliveryOption{}, ReasonRequiresInternational
	}

	if item.Option == nil {
		return models.DeliveryOption{}, ReasonNoDeliveryOption
	}
	if item.Option.Scope == enums.DeliveryScopeInternational {
		return models.DeliveryOption{}, ReasonInternationalOptionLocal
	}
	return *item.Option, ""
}

func invalid(item LineItem, reason string) InvalidItem {
	return InvalidItem{
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		VendorID:  item.VendorID,
		Title:     item.Title,
		Reason:    reason,
	}
}
