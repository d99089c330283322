package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/address"
	"github.com/angelmondragon/fulfillment-backend/internal/cart"
	"github.com/angelmondragon/fulfillment-backend/internal/delivery"
	product "github.com/angelmondragon/fulfillment-backend/internal/products"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type locator interface {
	Locate(ctx context.Context, ownerID uuid.UUID) (address.Location, error)
}

// Service prices carts and manages delivery option choices.
type Service interface {
	Quote(ctx context.Context, input QuoteInput) (*Quote, error)
	SelectDeliveryOption(ctx context.Context, ownerID, productID, optionID uuid.UUID) error
	SetDefaultDeliveryOption(ctx context.Context, vendorID, productID uuid.UUID, variantID *uuid.UUID, optionID uuid.UUID) error
}

type service struct {
	tx             txRunner
	repo           Repository
	carts          cart.CartRepository
	catalog        *product.Repository
	locator        locator
	engine         *delivery.Engine
	calc           delivery.Calculator
	defaultCountry string
	logg           *logger.Logger
	now            func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	repo Repository,
	carts cart.CartRepository,
	catalog *product.Repository,
	locator locator,
	engine *delivery.Engine,
	calc delivery.Calculator,
	defaultCountry string,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if locator == nil {
		return nil, fmt.Errorf("buyer locator required")
	}
	if engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:             tx,
		repo:           repo,
		carts:          carts,
		catalog:        catalog,
		locator:        locator,
		engine:         engine,
		calc:           calc,
		defaultCountry: strings.ToUpper(strings.TrimSpace(defaultCountry)),
		logg:           logg,
		now:            time.Now,
	}, nil
}

func (s *service) Quote(ctx context.Context, input QuoteInput) (*Quote, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	now := input.Now
	if now.IsZero() {
		now = s.now()
	}
	ctx = s.logg.WithOwnerID(ctx, input.OwnerID.String())

	loc, err := s.locator.Locate(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		OwnerID:         input.OwnerID,
		BuyerCountry:    loc.CountryCode,
		Lines:           []QuoteLine{},
		Subtotal:        decimal.Zero,
		DeliveryTotal:   decimal.Zero,
		PackagingTotal:  decimal.Zero,
		Discount:        decimal.Zero,
		GrandTotal:      decimal.Zero,
		VendorFees:      map[uuid.UUID]decimal.Decimal{},
		InvalidItems:    []delivery.InvalidItem{},
		DeletedItems:    []DeletedItem{},
		DeliveryOptions: map[uuid.UUID]EligibleOptions{},
		LocationSource:  loc.Source,
	}

	record, err := s.carts.FindByOwner(ctx, input.OwnerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return quote, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	quote.CartID = &record.ID

	lines, err := s.pruneUnshippable(ctx, record.Lines, loc.CountryCode, now, quote)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return quote, nil
	}

	productIDs := lo.Map(lines, func(l lineContext, _ int) uuid.UUID { return l.product.ID })
	options, err := s.catalog.LinkedOptions(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery options")
	}

	items := make([]delivery.LineItem, len(lines))
	for i, l := range lines {
		opts := options[l.product.ID]
		items[i] = product.LineItem(l.product, l.line.VariantID, l.line.Quantity, l.line.DeliveryOptionID, opts)
		if _, seen := quote.DeliveryOptions[l.product.ID]; !seen {
			quote.DeliveryOptions[l.product.ID] = EligibleOptions{
				Local:         opts.ByScope(enums.DeliveryScopeLocal),
				International: opts.ByScope(enums.DeliveryScopeInternational),
			}
		}
	}

	fees := s.engine.Compute(ctx, items, loc.Destination())
	quote.BuyerCountry = fees.BuyerCountry
	quote.DeliveryTotal = fees.DeliveryTotal
	quote.PackagingTotal = fees.PackagingTotal
	quote.VendorFees = fees.VendorFees
	quote.InvalidItems = append(quote.InvalidItems, fees.InvalidItems...)
	quote.CoordinatesMissing = fees.CoordinatesMissing

	windows := make([]delivery.Window, 0, len(fees.Lines))
	for _, priced := range fees.Lines {
		l := lines[priced.Index]
		var override *delivery.Override
		if dq, ok := fees.DynamicQuotes[priced.Item.VendorID]; ok && priced.Scope == enums.DeliveryScopeInternational {
			override = dq.Override()
		}
		window := s.calc.Window(priced.Option, now, now, override)
		windows = append(windows, window)

		amount := l.unitPrice.Mul(decimal.NewFromInt(int64(l.line.Quantity)))
		quote.Subtotal = quote.Subtotal.Add(amount)
		quote.Lines = append(quote.Lines, QuoteLine{
			CartLineID:     l.line.ID,
			ProductID:      l.product.ID,
			VariantID:      l.line.VariantID,
			VendorID:       l.product.VendorID,
			Title:          l.product.Title,
			Quantity:       l.line.Quantity,
			UnitPrice:      l.unitPrice,
			Amount:         amount,
			PackagingFee:   priced.PackagingFee,
			Scope:          priced.Scope,
			DeliveryOption: priced.Option,
			Window:         window,
		})
	}
	if merged, ok := s.calc.OverallRange(windows, now); ok {
		quote.DeliveryRange = &merged
	}

	if input.CouponID != nil {
		if err := s.applyCoupon(ctx, input.OwnerID, *input.CouponID, now, quote); err != nil {
			return nil, err
		}
	}

	quote.GrandTotal = quote.Subtotal.Add(quote.DeliveryTotal).Add(quote.PackagingTotal).Sub(quote.Discount)
	if quote.GrandTotal.IsNegative() {
		quote.GrandTotal = decimal.Zero
	}
	return quote, nil
}

type lineContext struct {
	line      models.CartLine
	product   *models.Product
	unitPrice decimal.Decimal
}

// pruneUnshippable resolves each cart line's product and soft-removes lines
// whose product is restricted to regions that exclude the buyer's country.
func (s *service) pruneUnshippable(ctx context.Context, lines []models.CartLine, country string, now time.Time, quote *Quote) ([]lineContext, error) {
	products, err := s.catalog.LoadProducts(ctx, lo.Map(lines, func(l models.CartLine, _ int) uuid.UUID { return l.ProductID }))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	variantIDs := lo.FilterMap(lines, func(l models.CartLine, _ int) (uuid.UUID, bool) {
		if l.VariantID == nil {
			return uuid.Nil, false
		}
		return *l.VariantID, true
	})
	variants, err := s.catalog.LoadVariants(ctx, variantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variants")
	}

	kept := make([]lineContext, 0, len(lines))
	var removed []uuid.UUID
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			quote.InvalidItems = append(quote.InvalidItems, delivery.InvalidItem{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Reason:    ReasonProductUnavailable,
			})
			continue
		}
		if !p.AvailableIn(country) {
			removed = append(removed, line.ID)
			quote.DeletedItems = append(quote.DeletedItems, DeletedItem{
				CartLineID: line.ID,
				ProductID:  p.ID,
				Title:      p.Title,
				Reason:     cart.RemovedReasonRegion,
			})
			continue
		}

		price := p.Price
		if line.VariantID != nil {
			if v, ok := variants[*line.VariantID]; ok {
				price = v.Price
			}
		}
		kept = append(kept, lineContext{line: line, product: p, unitPrice: price})
	}

	if len(removed) > 0 {
		if err := s.carts.SoftRemoveLines(ctx, removed, cart.RemovedReasonRegion, now); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove unshippable cart lines")
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{"removed_lines": len(removed), "country": country})
		s.logg.Info(logCtx, "removed cart lines not available in buyer region")
	}
	return kept, nil
}

func (s *service) applyCoupon(ctx context.Context, ownerID, couponID uuid.UUID, now time.Time, quote *Quote) error {
	quote.CouponID = &couponID
	coupon, err := s.repo.ClippedCoupon(ctx, ownerID, couponID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	switch {
	case coupon == nil:
		quote.CouponRejected = CouponNotClipped
	case !coupon.IsValid(now):
		quote.CouponRejected = CouponExpired
	default:
		quote.Discount = coupon.Discount(quote.Subtotal)
	}
	return nil
}

// SelectDeliveryOption points the owner's cart lines for productID at optionID.
// The option must be linked to the product and match the scope the buyer and
// vendor countries require.
func (s *service) SelectDeliveryOption(ctx context.Context, ownerID, productID, optionID uuid.UUID) error {
	if ownerID == uuid.Nil || productID == uuid.Nil || optionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner, product and option ids are required")
	}

	record, err := s.carts.FindByOwner(ctx, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	products, err := s.catalog.LoadProducts(ctx, []uuid.UUID{productID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	p, ok := products[productID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	options, err := s.catalog.LinkedOptions(ctx, []uuid.UUID{productID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery options")
	}
	opt := options[productID].Find(optionID)
	if opt == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery option is not available for this product")
	}

	loc, err := s.locator.Locate(ctx, ownerID)
	if err != nil {
		return err
	}
	if required := enums.ScopeFor(s.vendorCountry(p), s.countryOrDefault(loc.CountryCode)); opt.Scope != required {
		return pkgerrors.New(pkgerrors.CodeUnshippable, fmt.Sprintf("a %s delivery option is required", required))
	}

	updated, err := s.carts.SetDeliveryOption(ctx, record.ID, productID, optionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart lines")
	}
	if updated == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
	}
	return nil
}

// SetDefaultDeliveryOption replaces the default option for one of vendorID's
// products or variants.
func (s *service) SetDefaultDeliveryOption(ctx context.Context, vendorID, productID uuid.UUID, variantID *uuid.UUID, optionID uuid.UUID) error {
	if vendorID == uuid.Nil || productID == uuid.Nil || optionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor, product and option ids are required")
	}
	products, err := s.catalog.LoadProducts(ctx, []uuid.UUID{productID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if p, ok := products[productID]; !ok || p.VendorID != vendorID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.catalog.WithTx(tx).SetDefaultOption(ctx, productID, variantID, optionID)
	})
}

func (s *service) vendorCountry(p *models.Product) string {
	if p.Vendor == nil {
		return s.defaultCountry
	}
	return s.countryOrDefault(p.Vendor.ShipFromCountry)
}

func (s *service) countryOrDefault(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return s.defaultCountry
	}
	return code
}
