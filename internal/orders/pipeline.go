package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/address"
	"github.com/angelmondragon/fulfillment-backend/internal/cart"
	"github.com/angelmondragon/fulfillment-backend/internal/delivery"
	"github.com/angelmondragon/fulfillment-backend/internal/ledger"
	product "github.com/angelmondragon/fulfillment-backend/internal/products"
	"github.com/angelmondragon/fulfillment-backend/pkg/alert"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	dbpkg "github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

// Failure reasons stored on order lines that could not be fulfilled.
const (
	FailureInsufficientStock  = "insufficient_stock"
	FailureVariantUnavailable = "variant_unavailable"
	FailureProductUnavailable = "product_unavailable"
)

const inFlightScope = "orders"

var validate = validator.New(validator.WithRequiredStructEnabled())

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type locator interface {
	Locate(ctx context.Context, ownerID uuid.UUID) (address.Location, error)
	LocateAddress(ctx context.Context, ownerID, addressID uuid.UUID) (address.Location, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

type inFlightGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	InFlightKey(scope, id string) string
}

// PipelineDeps wires the order pipeline. Guard, Alerts and Metrics are optional.
type PipelineDeps struct {
	Tx        txRunner
	Repo      Repository
	Catalog   *product.Repository
	Carts     cart.CartRepository
	Locator   locator
	Engine    *delivery.Engine
	Inventory Inventory
	Ledger    ledger.Service
	Outbox    outboxEmitter
	Guard     inFlightGuard
	Alerts    alert.Notifier
	Metrics   *metrics.PipelineMetrics
	Config    config.OrdersConfig
	Logger    *logger.Logger
}

// Pipeline turns verified payments into orders, at most once per payment reference.
type Pipeline struct {
	tx        txRunner
	repo      Repository
	catalog   *product.Repository
	carts     cart.CartRepository
	locator   locator
	engine    *delivery.Engine
	inventory Inventory
	ledger    ledger.Service
	outbox    outboxEmitter
	guard     inFlightGuard
	alerts    alert.Notifier
	metrics   *metrics.PipelineMetrics
	cfg       config.OrdersConfig
	logg      *logger.Logger
	now       func() time.Time
	suffix    func() string
}

// NewPipeline validates deps and applies defaults for unset retry settings.
func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("product repository required")
	case deps.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case deps.Locator == nil:
		return nil, fmt.Errorf("address locator required")
	case deps.Engine == nil:
		return nil, fmt.Errorf("pricing engine required")
	case deps.Inventory == nil:
		return nil, fmt.Errorf("inventory required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}

	cfg := deps.Config
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 2 * time.Second
	}
	if cfg.RetryCap < cfg.RetryBase {
		cfg.RetryCap = cfg.RetryBase
	}
	if cfg.NumberMaxAttempts <= 0 {
		cfg.NumberMaxAttempts = 5
	}
	if cfg.InFlightTTL <= 0 {
		cfg.InFlightTTL = 2 * time.Minute
	}

	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	alerts := deps.Alerts
	if alerts == nil {
		alerts = alert.NewLogNotifier(logg)
	}

	return &Pipeline{
		tx:        deps.Tx,
		repo:      deps.Repo,
		catalog:   deps.Catalog,
		carts:     deps.Carts,
		locator:   deps.Locator,
		engine:    deps.Engine,
		inventory: deps.Inventory,
		ledger:    deps.Ledger,
		outbox:    deps.Outbox,
		guard:     deps.Guard,
		alerts:    alerts,
		metrics:   deps.Metrics,
		cfg:       cfg,
		logg:      logg,
		now:       time.Now,
		suffix:    randomSuffix,
	}, nil
}

// Process creates the order for event, or returns the order already created
// for its payment reference. Transient failures are retried; once retries are
// exhausted the failure is persisted and an operator is alerted.
func (p *Pipeline) Process(ctx context.Context, event payloads.PaymentVerifiedEvent) (*models.Order, error) {
	if err := validate.Struct(event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment event")
	}
	ctx = p.logg.WithPaymentReference(ctx, event.PaymentReference)
	ctx = p.logg.WithOwnerID(ctx, event.OwnerID.String())

	release, err := p.acquire(ctx, event.PaymentReference)
	if err != nil {
		return nil, err
	}
	defer release()

	started := p.now()
	attempts := 0
	var order *models.Order
	backoff := retry.WithMaxRetries(p.cfg.MaxAttempts-1,
		retry.WithCappedDuration(p.cfg.RetryCap, retry.NewExponential(p.cfg.RetryBase)))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		attemptStart := p.now()
		created, existing, err := p.attempt(ctx, event)
		switch {
		case err == nil:
			order = created
			outcome := metrics.OutcomeCreated
			if existing {
				outcome = metrics.OutcomeExisting
			}
			p.metrics.Observe(outcome, p.now().Sub(attemptStart))
			return nil
		case pkgerrors.IsRetryable(err):
			p.metrics.Observe(metrics.OutcomeRetried, p.now().Sub(attemptStart))
			p.logg.Warn(p.logg.WithFields(ctx, map[string]any{"attempt": attempts, "error": err.Error()}), "order attempt failed; retrying")
			return retry.RetryableError(err)
		default:
			return err
		}
	})
	if err == nil {
		return order, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	if pkgerrors.IsRetryable(err) {
		p.metrics.Observe(metrics.OutcomeExhausted, p.now().Sub(started))
	} else {
		p.metrics.Observe(metrics.OutcomeRejected, p.now().Sub(started))
	}
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeIdempotency {
		p.logg.Warn(ctx, "payment reference belongs to another owner")
		return nil, err
	}
	p.recordFailure(ctx, event, attempts, err)
	return nil, err
}

// acquire takes the in-flight guard for reference. A Redis outage only
// degrades to the database unique constraints.
func (p *Pipeline) acquire(ctx context.Context, reference string) (func(), error) {
	if p.guard == nil {
		return func() {}, nil
	}
	key := p.guard.InFlightKey(inFlightScope, reference)
	ok, err := p.guard.SetNX(ctx, key, p.now().UTC().Format(time.RFC3339), p.cfg.InFlightTTL)
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "in-flight guard unavailable")
		return func() {}, nil
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order creation already in progress for payment")
	}
	return func() {
		if err := p.guard.Del(context.WithoutCancel(ctx), key); err != nil {
			p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "release in-flight guard")
		}
	}, nil
}

// existingOrder returns the order already created for the payment, if any.
func (p *Pipeline) existingOrder(ctx context.Context, repo Repository, event payloads.PaymentVerifiedEvent) (*models.Payment, *models.Order, error) {
	payment, err := repo.FindPaymentByReference(ctx, event.PaymentReference)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil {
		return nil, nil, nil
	}
	if payment.OwnerID != event.OwnerID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeIdempotency, "payment reference already used by another owner")
	}
	order, err := repo.FindOrderByPayment(ctx, payment.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for payment")
	}
	return payment, order, nil
}

func (p *Pipeline) attempt(ctx context.Context, event payloads.PaymentVerifiedEvent) (*models.Order, bool, error) {
	if _, order, err := p.existingOrder(ctx, p.repo, event); err != nil || order != nil {
		return order, order != nil, err
	}

	loc, err := p.locate(ctx, event)
	if err != nil {
		return nil, false, err
	}
	plan, err := p.plan(ctx, event, loc)
	if err != nil {
		return nil, false, err
	}

	var (
		order    *models.Order
		existing bool
	)
	err = p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)
		payment, found, err := p.existingOrder(ctx, repo, event)
		if err != nil {
			return err
		}
		if found != nil {
			order, existing = found, true
			return nil
		}
		if payment == nil {
			payment = &models.Payment{
				OwnerID:     event.OwnerID,
				Reference:   event.PaymentReference,
				AmountMinor: event.AmountMinor,
				Verified:    true,
			}
			if err := repo.CreatePayment(ctx, payment); err != nil {
				return err
			}
		}

		created, err := p.materialize(ctx, tx, repo, event, payment, plan)
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_orders_payment") || dbpkg.IsUniqueViolation(err, "ux_payments_reference") {
			if _, found, ferr := p.existingOrder(ctx, p.repo, event); ferr == nil && found != nil {
				return found, true, nil
			}
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "concurrent order creation")
		}
		if pkgerrors.As(err) != nil {
			return nil, false, err
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	if !existing {
		p.metrics.AddFailedLines(len(lo.Filter(order.Lines, func(l models.OrderLine, _ int) bool {
			return l.Status == enums.LineStatusFailed
		})))
		p.logg.Info(p.logg.WithFields(p.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"order_number": order.OrderNumber,
			"lines":        len(order.Lines),
			"vendors":      len(order.Vendors),
		}), "order created")
	}
	return order, existing, nil
}

// locate resolves the shipping address, falling back to the buyer's default
// location when the address on the payment is gone.
func (p *Pipeline) locate(ctx context.Context, event payloads.PaymentVerifiedEvent) (address.Location, error) {
	loc, err := p.locator.LocateAddress(ctx, event.OwnerID, event.AddressID)
	if err == nil {
		return loc, nil
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		return address.Location{}, err
	}
	p.logg.Warn(p.logg.WithField(ctx, "address_id", event.AddressID.String()), "payment address not found; using default location")
	return p.locator.Locate(ctx, event.OwnerID)
}

type plannedLine struct {
	line      payloads.PaymentLine
	product   *models.Product
	unitPrice decimal.Decimal
	option    json.RawMessage
	failure   string
}

type orderPlan struct {
	lines []plannedLine
	fees  delivery.FeeResult
}

// plan resolves prices and delivery fees outside the write transaction so
// carrier calls never hold row locks.
func (p *Pipeline) plan(ctx context.Context, event payloads.PaymentVerifiedEvent, loc address.Location) (*orderPlan, error) {
	productIDs := lo.Map(event.Lines, func(l payloads.PaymentLine, _ int) uuid.UUID { return l.ProductID })
	variantIDs := lo.FilterMap(event.Lines, func(l payloads.PaymentLine, _ int) (uuid.UUID, bool) {
		if l.VariantID == nil {
			return uuid.Nil, false
		}
		return *l.VariantID, true
	})

	products, err := p.catalog.LoadProducts(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	variants, err := p.catalog.LoadVariants(ctx, variantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	options, err := p.catalog.LinkedOptions(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery options")
	}

	plan := &orderPlan{}
	var (
		items    []delivery.LineItem
		itemLine []int
	)
	for _, line := range event.Lines {
		prod, ok := products[line.ProductID]
		if !ok {
			p.logg.Warn(p.logg.WithField(ctx, "product_id", line.ProductID.String()), "product on payment no longer exists")
			plan.lines = append(plan.lines, plannedLine{line: line, unitPrice: decimal.Zero, failure: FailureProductUnavailable})
			continue
		}
		planned := plannedLine{line: line, product: prod, unitPrice: prod.Price}
		if line.VariantID != nil {
			variant, ok := variants[*line.VariantID]
			if !ok || variant.ProductID != prod.ID {
				planned.failure = FailureVariantUnavailable
			} else {
				planned.unitPrice = variant.Price
			}
		}
		if planned.failure == "" {
			items = append(items, product.LineItem(prod, line.VariantID, line.Quantity, line.DeliveryOptionID, options[prod.ID]))
			itemLine = append(itemLine, len(plan.lines))
		}
		plan.lines = append(plan.lines, planned)
	}

	plan.fees = p.engine.Compute(ctx, items, loc.Destination())
	priced := map[int]bool{}
	for _, pl := range plan.fees.Lines {
		idx := itemLine[pl.Index]
		priced[idx] = true
		snapshot, err := json.Marshal(pl.Option)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "snapshot delivery option")
		}
		plan.lines[idx].option = snapshot
	}
	for _, idx := range itemLine {
		if priced[idx] {
			continue
		}
		plan.lines[idx].failure = invalidReason(plan.fees.InvalidItems, plan.lines[idx].line)
	}
	return plan, nil
}

func invalidReason(invalid []delivery.InvalidItem, line payloads.PaymentLine) string {
	for _, item := range invalid {
		if item.ProductID == line.ProductID && sameVariant(item.VariantID, line.VariantID) {
			return item.Reason
		}
	}
	return delivery.ReasonNoDeliveryOption
}

func sameVariant(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type stockKey struct {
	productID uuid.UUID
	variantID uuid.UUID
}

func keyOf(line payloads.PaymentLine) stockKey {
	k := stockKey{productID: line.ProductID}
	if line.VariantID != nil {
		k.variantID = *line.VariantID
	}
	return k
}

// materialize writes the order, its lines and vendors, and every side effect
// that must commit with them.
func (p *Pipeline) materialize(ctx context.Context, tx *gorm.DB, repo Repository, event payloads.PaymentVerifiedEvent, payment *models.Payment, plan *orderPlan) (*models.Order, error) {
	number, err := p.assignNumber(ctx, repo)
	if err != nil {
		return nil, err
	}
	if err := p.reserveStock(ctx, tx, plan); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:          uuid.New(),
		OwnerID:     event.OwnerID,
		AddressID:   event.AddressID,
		PaymentID:   payment.ID,
		OrderNumber: number,
		Status:      enums.OrderStatusPending,
	}
	if event.IP != "" {
		ip := event.IP
		order.IP = &ip
	}

	subtotal := decimal.Zero
	vendorAmounts := map[uuid.UUID]decimal.Decimal{}
	vendorItems := map[uuid.UUID]int{}
	var vendorOrder []uuid.UUID
	lines := make([]models.OrderLine, 0, len(plan.lines))
	for _, pl := range plan.lines {
		amount := pl.unitPrice.Mul(decimal.NewFromInt(int64(pl.line.Quantity))).Round(2)
		line := models.OrderLine{
			OrderID:        order.ID,
			ProductID:      pl.line.ProductID,
			VariantID:      pl.line.VariantID,
			Quantity:       pl.line.Quantity,
			UnitPrice:      pl.unitPrice,
			Amount:         amount,
			DeliveryOption: pl.option,
			Status:         enums.LineStatusPending,
		}
		if pl.failure != "" {
			reason := pl.failure
			line.Status = enums.LineStatusFailed
			line.FailureReason = &reason
		}
		// A product deleted since payment has no vendor to attribute the line to.
		if pl.product == nil {
			lines = append(lines, line)
			continue
		}

		vendorID := pl.product.VendorID
		line.VendorID = &vendorID
		if _, seen := vendorAmounts[vendorID]; !seen {
			vendorOrder = append(vendorOrder, vendorID)
			vendorAmounts[vendorID] = decimal.Zero
		}
		if pl.failure == "" {
			subtotal = subtotal.Add(amount)
			vendorAmounts[vendorID] = vendorAmounts[vendorID].Add(amount)
			vendorItems[vendorID] += line.Quantity
		}
		lines = append(lines, line)
	}

	packaging := map[uuid.UUID]decimal.Decimal{}
	if !plan.fees.CoordinatesMissing {
		for _, pl := range plan.fees.Lines {
			packaging[pl.Item.VendorID] = packaging[pl.Item.VendorID].Add(pl.PackagingFee)
		}
	}
	deliveryFee := decimal.Zero
	vendors := make([]models.OrderVendor, 0, len(vendorOrder))
	for _, vendorID := range vendorOrder {
		fee := decimal.Zero
		if vendorItems[vendorID] > 0 {
			fee = plan.fees.VendorFees[vendorID].Add(packaging[vendorID])
		}
		deliveryFee = deliveryFee.Add(fee)
		vendors = append(vendors, models.OrderVendor{OrderID: order.ID, VendorID: vendorID, DeliveryFee: fee})
	}

	order.Subtotal = subtotal
	order.DeliveryFee = deliveryFee
	order.Total = subtotal.Add(deliveryFee)

	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	if err := repo.CreateLines(ctx, lines); err != nil {
		return nil, err
	}
	if err := repo.AttachVendors(ctx, vendors); err != nil {
		return nil, err
	}
	order.Lines = lines
	order.Vendors = vendors

	if paid := order.Total.Mul(decimal.NewFromInt(100)).IntPart(); paid != event.AmountMinor {
		p.logg.Warn(p.logg.WithFields(ctx, map[string]any{"order_total_minor": paid, "paid_minor": event.AmountMinor}), "payment amount differs from order total")
	}

	metadata, err := json.Marshal(map[string]string{
		"payment_reference": event.PaymentReference,
		"order_number":      order.OrderNumber,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal ledger metadata")
	}
	if _, err := p.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
		OrderID:     &order.ID,
		Type:        enums.LedgerEventTypePaymentCaptured,
		AmountMinor: event.AmountMinor,
		Metadata:    metadata,
	}); err != nil {
		return nil, err
	}

	buyerName, err := repo.BuyerName(ctx, event.OwnerID, event.AddressID)
	if err != nil {
		return nil, err
	}
	for _, vendorID := range vendorOrder {
		if vendorItems[vendorID] == 0 {
			continue
		}
		if _, err := p.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderVendorNotification,
			AggregateType: enums.AggregateOrderVendor,
			AggregateID:   VendorNotificationID(order.ID, vendorID),
			Actor:         &outbox.ActorRef{OwnerID: &order.OwnerID},
			Data: payloads.VendorOrderNotificationEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				VendorID:    vendorID,
				BuyerName:   buyerName,
				TotalAmount: vendorAmounts[vendorID],
				ItemsCount:  vendorItems[vendorID],
				URL:         fmt.Sprintf("%s/%s/", p.cfg.DashboardURLPrefix, order.ID),
				CreatedAt:   p.now().UTC(),
			},
		}); err != nil {
			return nil, err
		}
	}

	if err := p.carts.WithTx(tx).ClearByOwner(ctx, event.OwnerID); err != nil {
		return nil, err
	}
	return order, nil
}

// VendorNotificationID is the deterministic outbox aggregate for one vendor of one order.
func VendorNotificationID(orderID, vendorID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(orderID, vendorID[:])
}

// reserveStock decrements once per (product, variant) and fails every line of
// a key whose stock is short.
func (p *Pipeline) reserveStock(ctx context.Context, tx *gorm.DB, plan *orderPlan) error {
	totals := map[stockKey]int{}
	var keys []stockKey
	for _, pl := range plan.lines {
		if pl.failure != "" {
			continue
		}
		k := keyOf(pl.line)
		if _, ok := totals[k]; !ok {
			keys = append(keys, k)
		}
		totals[k] += pl.line.Quantity
	}

	short := map[stockKey]bool{}
	for _, k := range keys {
		var variantID *uuid.UUID
		if k.variantID != uuid.Nil {
			v := k.variantID
			variantID = &v
		}
		ok, err := p.inventory.Decrement(ctx, tx, k.productID, variantID, totals[k])
		if err != nil {
			return err
		}
		if !ok {
			short[k] = true
		}
	}
	for i := range plan.lines {
		if plan.lines[i].failure == "" && short[keyOf(plan.lines[i].line)] {
			plan.lines[i].failure = FailureInsufficientStock
		}
	}
	return nil
}

// assignNumber picks an unused order number. The existence check keeps a
// collision from aborting the surrounding transaction.
func (p *Pipeline) assignNumber(ctx context.Context, repo Repository) (string, error) {
	for i := 0; i < p.cfg.NumberMaxAttempts; i++ {
		number := FormatOrderNumber(p.now(), p.suffix())
		exists, err := repo.OrderNumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique order number")
}

func (p *Pipeline) recordFailure(ctx context.Context, event payloads.PaymentVerifiedEvent, attempts int, cause error) {
	ctx = context.WithoutCancel(ctx)
	payload, err := json.Marshal(event)
	if err != nil {
		p.logg.Error(ctx, "marshal failed payment event", err)
	}
	failure := &models.OrderCreationFailure{
		PaymentReference: event.PaymentReference,
		OwnerID:          event.OwnerID,
		Attempts:         attempts,
		LastError:        cause.Error(),
		Payload:          payload,
	}

	subject := fmt.Sprintf("order creation failed for payment %s", event.PaymentReference)
	body := fmt.Sprintf("owner: %s\nattempts: %d\nerror: %v", event.OwnerID, attempts, cause)
	if err := p.alerts.Notify(ctx, subject, body); err != nil {
		p.logg.Error(ctx, "order failure alert not delivered", err)
	} else {
		at := p.now().UTC()
		failure.AlertedAt = &at
	}

	if err := p.repo.SaveFailure(ctx, failure); err != nil {
		p.logg.Error(ctx, "persist order creation failure", errors.Join(cause, err))
		return
	}
	p.logg.Error(p.logg.WithField(ctx, "attempts", attempts), "paid order could not be created", cause)
}
